package core

import "time"

// ExecutionStatus is the outcome of a single tool attempt.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ToolExecution records one attempted tool run. Records are appended in
// execution order and never modified afterwards.
type ToolExecution struct {
	ToolName      string          `json:"tool_name"`
	Parameters    Params          `json:"parameters"`
	InputPath     string          `json:"input_path"`
	ExecutionTime float64         `json:"execution_time"`
	Status        ExecutionStatus `json:"status"`
	OutputPath    string          `json:"output_path,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Succeeded reports whether the tool succeeded.
func (t ToolExecution) Succeeded() bool {
	return t.Status == ExecutionSuccess
}

// WorkflowExecution is the terminal record of one workflow run.
type WorkflowExecution struct {
	WorkflowID         string          `json:"workflow_id"`
	GeminiReasoning    string          `json:"gemini_reasoning"`
	PlannedTools       []string        `json:"planned_tools"`
	ExecutedTools      []ToolExecution `json:"executed_tools"`
	TotalExecutionTime float64         `json:"total_execution_time"`
	Success            bool            `json:"success"`
	Cancelled          bool            `json:"cancelled,omitempty"`
}

// FinalOutput returns the output path of the last successful tool.
func (w *WorkflowExecution) FinalOutput() string {
	if w == nil {
		return ""
	}
	for i := len(w.ExecutedTools) - 1; i >= 0; i-- {
		if w.ExecutedTools[i].Succeeded() && w.ExecutedTools[i].OutputPath != "" {
			return w.ExecutedTools[i].OutputPath
		}
	}
	return ""
}

// FailureReason returns the error of the last failed tool.
func (w *WorkflowExecution) FailureReason() string {
	if w == nil {
		return ""
	}
	for i := len(w.ExecutedTools) - 1; i >= 0; i-- {
		if w.ExecutedTools[i].Status == ExecutionFailed {
			return w.ExecutedTools[i].Error
		}
	}
	return ""
}

// RunStatus is the state of an in-flight workflow run.
type RunStatus string

const (
	RunRunning         RunStatus = "running"
	RunCancelRequested RunStatus = "cancel_requested"
	RunCompleted       RunStatus = "completed"
	RunFailed          RunStatus = "failed"
	RunCancelled       RunStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// RunSnapshot is a point-in-time view of an in-flight run.
type RunSnapshot struct {
	JobID            string        `json:"job_id"`
	Status           RunStatus     `json:"status"`
	Progress         int           `json:"progress"`
	CurrentToolIndex int           `json:"current_tool_index"`
	CurrentTool      string        `json:"current_tool,omitempty"`
	TotalTools       int           `json:"total_tools"`
	StartedAt        time.Time     `json:"started_at"`
	ElapsedTime      time.Duration `json:"elapsed_time"`
}
