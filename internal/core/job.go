package core

import "time"

// JobStatus is the persisted lifecycle state of a job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{JobPending, JobProcessing, JobCompleted, JobFailed, JobCancelled}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, v := range AllJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Cancellable reports whether a job in this status may be cancelled.
func (s JobStatus) Cancellable() bool {
	return s == JobPending || s == JobProcessing
}

// VideoMetadata describes an input video.
type VideoMetadata struct {
	Duration   float64 `json:"duration"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int     `json:"frame_count"`
	Format     string  `json:"format"`
	Codec      string  `json:"codec,omitempty"`
	SizeBytes  int64   `json:"size_bytes"`
}

// JobInfo is the durable record of one processing job.
type JobInfo struct {
	ID               string             `json:"job_id"`
	Status           JobStatus          `json:"status"`
	Prompt           string             `json:"prompt,omitempty"`
	OriginalFilename string             `json:"original_filename"`
	InputPath        string             `json:"input_path"`
	OutputPath       string             `json:"output_path,omitempty"`
	Progress         int                `json:"progress"`
	Error            string             `json:"error,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
	Metadata         *VideoMetadata     `json:"metadata,omitempty"`
	Plan             *WorkflowPlan      `json:"plan,omitempty"`
	Execution        *WorkflowExecution `json:"execution,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Apply merges an update into the job.
func (j *JobInfo) Apply(u JobUpdate, now time.Time) {
	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Prompt != nil {
		j.Prompt = *u.Prompt
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	if u.OutputPath != nil {
		j.OutputPath = *u.OutputPath
	}
	if u.Plan != nil {
		j.Plan = u.Plan
	}
	if u.Warnings != nil {
		j.Warnings = u.Warnings
	}
	if u.Execution != nil {
		j.Execution = u.Execution
	}
	if u.Metadata != nil {
		j.Metadata = u.Metadata
	}
	j.UpdatedAt = now
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
