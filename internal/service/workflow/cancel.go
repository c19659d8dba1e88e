package workflow

import (
	"context"
	"errors"

	"github.com/visualix/visualix/internal/control"
	"github.com/visualix/visualix/internal/core"
)

// Cancel asks the run for jobID to stop before its next tool. It reports
// whether a running workflow accepted the request; the tool currently
// executing, if any, is allowed to finish.
func (e *Engine) Cancel(jobID string) bool {
	e.mu.RLock()
	state, ok := e.runs[jobID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	if !state.plane.Cancel() {
		return false
	}

	e.logger.WithJob(jobID).Info("cancellation requested", "current_tool", state.snapshot(e.now()).CurrentTool)
	if e.bus != nil {
		e.bus.PublishPriority(control.NewCancelRequestedEvent(jobID, "cancelled by user"))
	}
	return true
}

// IsCancelled reports whether err represents a user or context cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return core.HasCode(err, core.CodeCancelled)
}
