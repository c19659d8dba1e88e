package tui

import (
	"strings"
	"testing"

	"github.com/visualix/visualix/internal/core"
)

func TestPlanMarkdown(t *testing.T) {
	plan := &core.WorkflowPlan{
		Prompt:    "warm and sharp",
		Reasoning: "Colour first, then detail.",
		ToolSequence: []core.ToolPlan{
			{ToolName: "adjust_temperature", Parameters: core.Params{"temperature": 20}},
			{ToolName: "sharpen", Parameters: core.Params{"strength": 1.5, "kernel": "unsharp|mask"}},
		},
		EstimatedTime:   12,
		ComplexityScore: 3,
		DroppedSteps:    []string{"teleport"},
	}

	md := PlanMarkdown(plan, []string{"sharpen: strength is high"}, "Warms the image.")
	for _, want := range []string{
		"> warm and sharp",
		"| 1 | `adjust_temperature` | temperature=20 |",
		`kernel=unsharp\|mask, strength=1.5`,
		"Dropped unknown tools: teleport",
		"- sharpen: strength is high",
		"## Explanation",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestPlanMarkdown_Empty(t *testing.T) {
	md := PlanMarkdown(&core.WorkflowPlan{}, nil, "")
	if !strings.Contains(md, "No tools were selected") {
		t.Errorf("unexpected markdown:\n%s", md)
	}
	if strings.Contains(md, "## Warnings") {
		t.Error("empty warnings should not render a section")
	}
}

func TestRenderMarkdown_Plain(t *testing.T) {
	out, err := RenderMarkdown("# Title\n\nbody text", 40, false)
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "body text") {
		t.Errorf("unexpected render:\n%s", out)
	}
}
