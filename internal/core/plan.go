package core

// ToolPlan is one planned step of a workflow.
type ToolPlan struct {
	ToolName       string `json:"tool_name"`
	Parameters     Params `json:"parameters"`
	Reasoning      string `json:"reasoning,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// WorkflowPlan is the planner's answer for a single prompt.
// ToolSequence order is execution order; ExecutionType is advisory only.
type WorkflowPlan struct {
	Prompt          string     `json:"prompt"`
	Reasoning       string     `json:"reasoning"`
	ExecutionType   string     `json:"execution_type"`
	ToolSequence    []ToolPlan `json:"tool_sequence"`
	EstimatedTime   float64    `json:"estimated_time"`
	ComplexityScore int        `json:"complexity_score"`

	// DroppedSteps lists tool names removed because they are not registered.
	DroppedSteps []string `json:"dropped_steps,omitempty"`
}

// ToolNames returns the planned tool names in order.
func (p *WorkflowPlan) ToolNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.ToolSequence))
	for i, step := range p.ToolSequence {
		names[i] = step.ToolName
	}
	return names
}

// IsEmpty reports whether the plan has no steps.
func (p *WorkflowPlan) IsEmpty() bool {
	return p == nil || len(p.ToolSequence) == 0
}
