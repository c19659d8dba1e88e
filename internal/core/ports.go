package core

import (
	"context"
	"time"
)

// =============================================================================
// Agent Port
// =============================================================================

// Agent defines the contract for the language model backend used to plan workflows.
type Agent interface {
	// Name returns the adapter identifier (e.g., "genai", "gemini-cli").
	Name() string

	// Ping checks if the backend is reachable and authenticated.
	Ping(ctx context.Context) error

	// Execute runs a prompt through the backend and returns the result.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
}

// OutputFormat specifies the expected output format.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// ExecuteOptions configures an agent execution.
type ExecuteOptions struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	Format       OutputFormat
	Timeout      time.Duration
}

// DefaultExecuteOptions returns sensible defaults.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		MaxTokens:   2048,
		Temperature: 0.3,
		Format:      OutputFormatText,
		Timeout:     2 * time.Minute,
	}
}

// ExecuteResult contains the output of an agent execution.
type ExecuteResult struct {
	Output       string
	TokensIn     int
	TokensOut    int
	Duration     time.Duration
	Model        string
	FinishReason string
}

// TotalTokens returns the sum of input and output tokens.
func (r *ExecuteResult) TotalTokens() int {
	return r.TokensIn + r.TokensOut
}

// =============================================================================
// JobStore Port
// =============================================================================

// JobUpdate carries the optional fields of a status transition.
// Nil pointers leave the stored value untouched.
type JobUpdate struct {
	Status     JobStatus
	Progress   *int
	Prompt     *string
	Error      *string
	OutputPath *string
	Plan       *WorkflowPlan
	Warnings   []string
	Execution  *WorkflowExecution
	Metadata   *VideoMetadata
}

// JobFilter narrows a job listing.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

// JobStore persists job records.
type JobStore interface {
	// Create stores a new job. Fails with a conflict error if the id exists.
	Create(ctx context.Context, job *JobInfo) error

	// Get returns the job or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*JobInfo, error)

	// SetStatus applies an update and bumps UpdatedAt.
	SetStatus(ctx context.Context, id string, update JobUpdate) (*JobInfo, error)

	// List returns jobs ordered by creation time, newest first.
	List(ctx context.Context, filter JobFilter) ([]*JobInfo, int, error)

	// Delete removes the job record. Deleting a missing job is not an error.
	Delete(ctx context.Context, id string) error

	// CountByStatus returns the number of jobs in each status.
	CountByStatus(ctx context.Context) (map[JobStatus]int, error)

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// MediaProber Port
// =============================================================================

// MediaProber extracts metadata from a video file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (*VideoMetadata, error)
}
