package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/visualix/visualix/internal/events"
)

// Follow prints the events of one job as lines until the job ends, the
// stream closes or ctx is done. JSON mode writes one object per event.
func Follow(ctx context.Context, w io.Writer, mode OutputMode, jobID string, ch <-chan events.Event) Outcome {
	started := time.Now()
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return Outcome{JobID: jobID, Status: "unknown", Error: ctx.Err().Error()}
		case e, ok := <-ch:
			if !ok {
				return Outcome{JobID: jobID, Status: "unknown", Error: "event stream closed"}
			}
			if e.JobID() != jobID {
				continue
			}
			switch mode {
			case ModeJSON:
				_ = enc.Encode(e)
			case ModeQuiet:
			default:
				if line := describe(e); line != "" {
					fmt.Fprintf(w, "%s  %s\n", e.Timestamp().Format("15:04:05"), line)
				}
			}
			if out, done := terminal(e, jobID, started); done {
				return out
			}
		}
	}
}

func terminal(e events.Event, jobID string, started time.Time) (Outcome, bool) {
	switch ev := e.(type) {
	case events.JobCompletedEvent:
		return Outcome{JobID: jobID, Status: "completed", OutputPath: ev.OutputPath, Duration: time.Since(started)}, true
	case events.JobFailedEvent:
		return Outcome{JobID: jobID, Status: "failed", Error: ev.Error, Duration: time.Since(started)}, true
	case events.JobCancelledEvent:
		return Outcome{JobID: jobID, Status: "cancelled", Error: ev.Reason, Duration: time.Since(started)}, true
	}
	return Outcome{}, false
}

func describe(e events.Event) string {
	switch ev := e.(type) {
	case events.JobStatusChangedEvent:
		if ev.Message != "" {
			return fmt.Sprintf("status %s: %s", ev.Status, ev.Message)
		}
		return "status " + ev.Status
	case events.WorkflowStartedEvent:
		return fmt.Sprintf("workflow started with %d tools", len(ev.Tools))
	case events.ToolStartedEvent:
		return fmt.Sprintf("[%d] %s started", ev.Index+1, ev.Tool)
	case events.ToolCompletedEvent:
		return fmt.Sprintf("[%d] %s done in %.1fs", ev.Index+1, ev.Tool, ev.Seconds)
	case events.ToolFailedEvent:
		return fmt.Sprintf("[%d] %s failed: %s", ev.Index+1, ev.Tool, ev.Error)
	case events.WorkflowProgressEvent:
		return fmt.Sprintf("progress %d%% (%d/%d)", ev.Progress, ev.Completed, ev.TotalTools)
	case events.JobCompletedEvent:
		return "completed: " + ev.OutputPath
	case events.JobFailedEvent:
		return "failed: " + ev.Error
	case events.JobCancelledEvent:
		return "cancelled"
	}
	return ""
}
