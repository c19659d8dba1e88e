package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/visualix/visualix/internal/core"
)

// Explain asks the model for a user-facing summary of plan. Any failure
// falls back to BasicExplanation; Explain itself never fails.
func (p *Planner) Explain(ctx context.Context, plan *core.WorkflowPlan) string {
	if plan == nil {
		return ""
	}
	if p.agent == nil {
		return BasicExplanation(plan)
	}

	message, err := p.prompts.explainPrompt(plan)
	if err != nil {
		p.logger.Warn("building explain prompt failed", "error", err)
		return BasicExplanation(plan)
	}

	result, err := p.execute(ctx, core.ExecuteOptions{
		Prompt:      message,
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Format:      core.OutputFormatText,
		Timeout:     p.opts.Timeout,
	})
	if err != nil {
		p.logger.Warn("explanation failed, using local template", "error", err)
		return BasicExplanation(plan)
	}
	text := strings.TrimSpace(result.Output)
	if text == "" {
		return BasicExplanation(plan)
	}
	return text
}

// BasicExplanation renders plan with a fixed local template.
func BasicExplanation(plan *core.WorkflowPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I'll process your video request: '%s'\n\n", plan.Prompt)
	fmt.Fprintf(&b, "This will involve %d processing steps:\n", len(plan.ToolSequence))
	for i, step := range plan.ToolSequence {
		line := step.ExpectedOutput
		if line == "" {
			line = "Apply " + step.ToolName
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	fmt.Fprintf(&b, "\nEstimated processing time: %.0f seconds", plan.EstimatedTime)
	fmt.Fprintf(&b, "\nComplexity level: %d/5", plan.ComplexityScore)
	return b.String()
}
