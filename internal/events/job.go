package events

// Event type constants for job lifecycle events.
const (
	TypeJobCreated       = "job_created"
	TypeJobStatusChanged = "job_status_changed"
	TypeJobCompleted     = "job_completed"
	TypeJobFailed        = "job_failed"
	TypeJobCancelled     = "job_cancelled"
)

// JobCreatedEvent is emitted when an upload becomes a job.
type JobCreatedEvent struct {
	BaseEvent
	Filename string `json:"filename"`
}

// NewJobCreatedEvent creates a job created event.
func NewJobCreatedEvent(jobID, filename string) JobCreatedEvent {
	return JobCreatedEvent{
		BaseEvent: NewBaseEvent(TypeJobCreated, jobID),
		Filename:  filename,
	}
}

// JobStatusChangedEvent reports a persisted status transition.
type JobStatusChangedEvent struct {
	BaseEvent
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// NewJobStatusChangedEvent creates a status change event.
func NewJobStatusChangedEvent(jobID, status string, progress int, message string) JobStatusChangedEvent {
	return JobStatusChangedEvent{
		BaseEvent: NewBaseEvent(TypeJobStatusChanged, jobID),
		Status:    status,
		Progress:  progress,
		Message:   message,
	}
}

// JobCompletedEvent is emitted once when a job produces its output.
type JobCompletedEvent struct {
	BaseEvent
	OutputPath string  `json:"output_path"`
	Duration   float64 `json:"duration"`
}

// NewJobCompletedEvent creates a job completed event.
func NewJobCompletedEvent(jobID, outputPath string, duration float64) JobCompletedEvent {
	return JobCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeJobCompleted, jobID),
		OutputPath: outputPath,
		Duration:   duration,
	}
}

// JobFailedEvent is emitted once when a job fails.
type JobFailedEvent struct {
	BaseEvent
	Error string `json:"error"`
}

// NewJobFailedEvent creates a job failed event.
func NewJobFailedEvent(jobID, errMsg string) JobFailedEvent {
	return JobFailedEvent{
		BaseEvent: NewBaseEvent(TypeJobFailed, jobID),
		Error:     errMsg,
	}
}

// JobCancelledEvent is emitted once when a job is cancelled.
type JobCancelledEvent struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

// NewJobCancelledEvent creates a job cancelled event.
func NewJobCancelledEvent(jobID, reason string) JobCancelledEvent {
	return JobCancelledEvent{
		BaseEvent: NewBaseEvent(TypeJobCancelled, jobID),
		Reason:    reason,
	}
}
