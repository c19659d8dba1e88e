package workflow

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/visualix/visualix/internal/control"
	"github.com/visualix/visualix/internal/core"
)

// runState is the ephemeral bookkeeping for one in-flight run. The loop
// writes it, pollers and Cancel read it concurrently; every mutable field is
// atomic so no reader observes a torn value.
type runState struct {
	jobID     string
	total     int
	startedAt time.Time
	plane     *control.Plane

	index     atomic.Int32
	completed atomic.Int32
	progress  atomic.Int32
	current   atomic.Value // string
	outcome   atomic.Value // core.RunStatus, set just before the plane turns terminal
}

func newRunState(jobID string, total int, now time.Time) *runState {
	s := &runState{
		jobID:     jobID,
		total:     total,
		startedAt: now,
		plane:     control.New(),
	}
	s.current.Store("")
	return s
}

// begin records that the tool at index is about to run.
func (s *runState) begin(index int, tool string) {
	s.index.Store(int32(index))
	s.current.Store(tool)
}

// complete records one more finished tool and returns the new progress.
// Progress never decreases.
func (s *runState) complete() int {
	done := int(s.completed.Add(1))
	p := progressOf(done, s.total)
	for {
		old := s.progress.Load()
		if int32(p) <= old || s.progress.CompareAndSwap(old, int32(p)) {
			break
		}
	}
	return int(s.progress.Load())
}

// finish stores the outcome and turns the plane terminal.
func (s *runState) finish(outcome core.RunStatus) {
	s.outcome.Store(outcome)
	s.plane.Finish()
}

func (s *runState) status() core.RunStatus {
	switch s.plane.State() {
	case control.Running:
		return core.RunRunning
	case control.CancelRequested:
		return core.RunCancelRequested
	}
	if v, ok := s.outcome.Load().(core.RunStatus); ok {
		return v
	}
	return core.RunFailed
}

func (s *runState) snapshot(now time.Time) *core.RunSnapshot {
	current, _ := s.current.Load().(string)
	return &core.RunSnapshot{
		JobID:            s.jobID,
		Status:           s.status(),
		Progress:         int(s.progress.Load()),
		CurrentToolIndex: int(s.index.Load()),
		CurrentTool:      current,
		TotalTools:       s.total,
		StartedAt:        s.startedAt,
		ElapsedTime:      now.Sub(s.startedAt),
	}
}

// progressOf returns round(100 * done / total).
func progressOf(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
