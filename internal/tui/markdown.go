package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/visualix/visualix/internal/core"
)

// PlanMarkdown renders a plan, its warnings and an optional explanation as
// Markdown.
func PlanMarkdown(plan *core.WorkflowPlan, warnings []string, explanation string) string {
	var b strings.Builder

	b.WriteString("# Workflow plan\n\n")
	if plan.Prompt != "" {
		fmt.Fprintf(&b, "> %s\n\n", plan.Prompt)
	}
	if plan.Reasoning != "" {
		b.WriteString(plan.Reasoning + "\n\n")
	}

	if plan.IsEmpty() {
		b.WriteString("_No tools were selected._\n\n")
	} else {
		b.WriteString("| # | Tool | Parameters | Why |\n|---|---|---|---|\n")
		for i, step := range plan.ToolSequence {
			fmt.Fprintf(&b, "| %d | `%s` | %s | %s |\n",
				i+1, step.ToolName, formatParams(step.Parameters), cell(step.Reasoning))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Estimated time: **%.0fs** · complexity **%d/10**\n\n", plan.EstimatedTime, plan.ComplexityScore)

	if len(plan.DroppedSteps) > 0 {
		fmt.Fprintf(&b, "Dropped unknown tools: %s\n\n", strings.Join(plan.DroppedSteps, ", "))
	}
	if len(warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range warnings {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\n")
	}
	if explanation != "" {
		b.WriteString("## Explanation\n\n" + explanation + "\n")
	}
	return b.String()
}

func formatParams(p core.Params) string {
	if len(p) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return cell(strings.Join(parts, ", "))
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderMarkdown renders md for the terminal. Without color the plain
// "notty" style is used.
func RenderMarkdown(md string, width int, color bool) (string, error) {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithStandardStyle("notty")
	if color {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
