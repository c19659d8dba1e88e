package testutil

import (
	"time"

	"github.com/visualix/visualix/internal/core"
)

// NewTestPlan builds a plan whose steps run the named tools with no
// parameters. Use functional options to override specific fields.
func NewTestPlan(tools []string, opts ...func(*core.WorkflowPlan)) *core.WorkflowPlan {
	plan := &core.WorkflowPlan{
		Prompt:          "test prompt",
		Reasoning:       "test reasoning",
		ExecutionType:   "sequential",
		EstimatedTime:   30,
		ComplexityScore: 2,
		ToolSequence:    make([]core.ToolPlan, 0, len(tools)),
	}
	for _, name := range tools {
		plan.ToolSequence = append(plan.ToolSequence, core.ToolPlan{
			ToolName:   name,
			Parameters: core.Params{},
		})
	}
	for _, opt := range opts {
		opt(plan)
	}
	return plan
}

// NewTestJob creates a pending job with sensible defaults.
func NewTestJob(id string, opts ...func(*core.JobInfo)) *core.JobInfo {
	now := time.Now()
	job := &core.JobInfo{
		ID:               id,
		Status:           core.JobPending,
		OriginalFilename: "clip.mp4",
		InputPath:        "uploads/" + id + "_clip.mp4",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}
