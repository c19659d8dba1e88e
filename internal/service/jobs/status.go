package jobs

import (
	"context"
	"fmt"

	"github.com/visualix/visualix/internal/core"
)

// StatusReport merges the stored job with the live run, if any.
type StatusReport struct {
	JobID       string                  `json:"job_id"`
	Status      core.JobStatus          `json:"status"`
	Progress    int                     `json:"progress"`
	Message     string                  `json:"message"`
	CurrentTool string                  `json:"current_tool,omitempty"`
	OutputPath  string                  `json:"-"`
	Execution   *core.WorkflowExecution `json:"workflow_execution,omitempty"`
	Warnings    []string                `json:"warnings,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// Status reports where a job stands.
func (s *Service) Status(ctx context.Context, id string) (*StatusReport, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		OutputPath: job.OutputPath,
		Execution:  job.Execution,
		Warnings:   job.Warnings,
		Error:      job.Error,
	}

	var snap *core.RunSnapshot
	if job.Status == core.JobProcessing {
		snap = s.engine.GetStatus(id)
		if snap != nil {
			report.Progress = snap.Progress
			report.CurrentTool = snap.CurrentTool
		}
	}
	report.Message = statusMessage(job, snap, s.isActive(id))
	return report, nil
}

func statusMessage(job *core.JobInfo, snap *core.RunSnapshot, active bool) string {
	switch job.Status {
	case core.JobPending:
		return "Video uploaded and ready for processing"
	case core.JobProcessing:
		switch {
		case snap != nil && snap.Status == core.RunCancelRequested:
			return "Cancelling after the current step..."
		case snap != nil && snap.CurrentToolIndex < snap.TotalTools:
			return fmt.Sprintf("Processing video (step %d of %d)...", snap.CurrentToolIndex+1, snap.TotalTools)
		case snap != nil:
			return "Finalizing video processing..."
		case active:
			return "Queued for processing"
		default:
			return "Processing video..."
		}
	case core.JobCompleted:
		return "Video processing completed successfully"
	case core.JobFailed:
		if job.Error == "" {
			return "Processing failed: Unknown error"
		}
		return "Processing failed: " + job.Error
	case core.JobCancelled:
		return "Job was cancelled"
	default:
		return "Status: " + string(job.Status)
	}
}
