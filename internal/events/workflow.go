package events

import "time"

// Event type constants for workflow execution events.
const (
	TypeWorkflowStarted  = "workflow_started"
	TypeWorkflowProgress = "workflow_progress"
	TypeWorkflowFinished = "workflow_finished"
	TypeToolStarted      = "tool_started"
	TypeToolCompleted    = "tool_completed"
	TypeToolFailed       = "tool_failed"
)

// WorkflowStartedEvent is emitted when the engine begins a run.
type WorkflowStartedEvent struct {
	BaseEvent
	Tools []string `json:"tools"`
}

// NewWorkflowStartedEvent creates a workflow started event.
func NewWorkflowStartedEvent(jobID string, tools []string) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowStarted, jobID),
		Tools:     tools,
	}
}

// WorkflowProgressEvent reports progress after each tool.
type WorkflowProgressEvent struct {
	BaseEvent
	Progress   int `json:"progress"`
	Completed  int `json:"completed"`
	TotalTools int `json:"total_tools"`
}

// NewWorkflowProgressEvent creates a progress event.
func NewWorkflowProgressEvent(jobID string, progress, completed, total int) WorkflowProgressEvent {
	return WorkflowProgressEvent{
		BaseEvent:  NewBaseEvent(TypeWorkflowProgress, jobID),
		Progress:   progress,
		Completed:  completed,
		TotalTools: total,
	}
}

// WorkflowFinishedEvent is emitted once per run.
type WorkflowFinishedEvent struct {
	BaseEvent
	Success   bool          `json:"success"`
	Cancelled bool          `json:"cancelled"`
	Executed  int           `json:"executed"`
	Duration  time.Duration `json:"duration"`
}

// NewWorkflowFinishedEvent creates a workflow finished event.
func NewWorkflowFinishedEvent(jobID string, success, cancelled bool, executed int, d time.Duration) WorkflowFinishedEvent {
	return WorkflowFinishedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowFinished, jobID),
		Success:   success,
		Cancelled: cancelled,
		Executed:  executed,
		Duration:  d,
	}
}

// ToolStartedEvent is emitted before a tool runs.
type ToolStartedEvent struct {
	BaseEvent
	Tool      string `json:"tool"`
	Index     int    `json:"index"`
	InputPath string `json:"input_path"`
}

// NewToolStartedEvent creates a tool started event.
func NewToolStartedEvent(jobID, tool string, index int, input string) ToolStartedEvent {
	return ToolStartedEvent{
		BaseEvent: NewBaseEvent(TypeToolStarted, jobID),
		Tool:      tool,
		Index:     index,
		InputPath: input,
	}
}

// ToolCompletedEvent is emitted after a successful tool run.
type ToolCompletedEvent struct {
	BaseEvent
	Tool       string  `json:"tool"`
	Index      int     `json:"index"`
	OutputPath string  `json:"output_path"`
	Seconds    float64 `json:"execution_time"`
}

// NewToolCompletedEvent creates a tool completed event.
func NewToolCompletedEvent(jobID, tool string, index int, output string, seconds float64) ToolCompletedEvent {
	return ToolCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeToolCompleted, jobID),
		Tool:       tool,
		Index:      index,
		OutputPath: output,
		Seconds:    seconds,
	}
}

// ToolFailedEvent is emitted after a failed tool run.
type ToolFailedEvent struct {
	BaseEvent
	Tool  string `json:"tool"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// NewToolFailedEvent creates a tool failed event.
func NewToolFailedEvent(jobID, tool string, index int, errMsg string) ToolFailedEvent {
	return ToolFailedEvent{
		BaseEvent: NewBaseEvent(TypeToolFailed, jobID),
		Tool:      tool,
		Index:     index,
		Error:     errMsg,
	}
}
