// Package workflow runs planned tool chains over a video, one tool at a
// time, and keeps the per-job run state used for progress polling and
// cooperative cancellation.
package workflow

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/logging"
)

// ToolLookup resolves tool names to factories.
type ToolLookup interface {
	Lookup(name string) (core.ToolFactory, error)
}

// Recorder receives execution measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ToolFinished(tool string, success bool, d time.Duration)
	WorkflowFinished(status core.RunStatus, d time.Duration)
}

// Engine executes workflow plans. Independent jobs may run concurrently;
// each job id has at most one active run.
type Engine struct {
	tools    ToolLookup
	bus      events.Publisher
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time

	mu   sync.RWMutex
	runs map[string]*runState
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventPublisher publishes workflow and tool events to p.
func WithEventPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.bus = p }
}

// WithRecorder reports tool and workflow timings to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine resolving tools through lookup.
func NewEngine(lookup ToolLookup, opts ...Option) *Engine {
	e := &Engine{
		tools:  lookup,
		logger: logging.NewNop(),
		now:    time.Now,
		runs:   make(map[string]*runState),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine")
	return e
}

// ExecuteWorkflow runs plan against inputPath for jobID and returns the
// execution record. Tool failures never surface as errors: they are
// recorded in the returned WorkflowExecution. The only error is a conflict
// when jobID already has an active run.
//
// Cancellation (Cancel or ctx) is observed before each tool starts. A tool
// that is already running always finishes; it receives a context that is
// not cancelled with ctx.
func (e *Engine) ExecuteWorkflow(ctx context.Context, jobID, inputPath string, plan *core.WorkflowPlan) (*core.WorkflowExecution, error) {
	if plan == nil {
		plan = &core.WorkflowPlan{}
	}
	total := len(plan.ToolSequence)

	state, err := e.register(jobID, total)
	if err != nil {
		return nil, err
	}
	defer e.release(jobID, state)

	logger := e.logger.WithJob(jobID)
	exec := &core.WorkflowExecution{
		WorkflowID:      jobID,
		GeminiReasoning: plan.Reasoning,
		PlannedTools:    plan.ToolNames(),
		ExecutedTools:   make([]core.ToolExecution, 0, total),
	}

	logger.Info("workflow started", "tools", total, "input", inputPath)
	e.publish(events.NewWorkflowStartedEvent(jobID, exec.PlannedTools))

	toolCtx := context.WithoutCancel(ctx)
	current := inputPath
	var cancelled, failed bool

	for i, step := range plan.ToolSequence {
		if state.plane.IsCancelled() || ctx.Err() != nil {
			cancelled = true
			logger.Info("workflow cancelled", "completed", i, "total", total)
			break
		}

		state.begin(i, step.ToolName)
		e.publish(events.NewToolStartedEvent(jobID, step.ToolName, i, current))

		rec := e.runStep(toolCtx, step, current)
		exec.ExecutedTools = append(exec.ExecutedTools, rec)

		if e.recorder != nil {
			e.recorder.ToolFinished(rec.ToolName, rec.Succeeded(), time.Duration(rec.ExecutionTime*float64(time.Second)))
		}

		if !rec.Succeeded() {
			failed = true
			logger.Error("tool failed", "tool", rec.ToolName, "index", i, "error", rec.Error)
			e.publish(events.NewToolFailedEvent(jobID, rec.ToolName, i, rec.Error))
			break
		}

		if rec.OutputPath != "" {
			current = rec.OutputPath
		}
		progress := state.complete()
		logger.Debug("tool completed", "tool", rec.ToolName, "index", i, "seconds", rec.ExecutionTime)
		e.publish(events.NewToolCompletedEvent(jobID, rec.ToolName, i, rec.OutputPath, rec.ExecutionTime))
		e.publish(events.NewWorkflowProgressEvent(jobID, progress, i+1, total))
	}

	exec.Cancelled = cancelled
	exec.Success = !cancelled && !failed && len(exec.ExecutedTools) == total

	outcome := core.RunCompleted
	switch {
	case cancelled:
		outcome = core.RunCancelled
	case !exec.Success:
		outcome = core.RunFailed
	}
	state.finish(outcome)

	elapsed := e.now().Sub(state.startedAt)
	exec.TotalExecutionTime = elapsed.Seconds()

	logger.Info("workflow finished",
		"status", outcome,
		"executed", len(exec.ExecutedTools),
		"planned", total,
		"seconds", exec.TotalExecutionTime)
	e.publish(events.NewWorkflowFinishedEvent(jobID, exec.Success, cancelled, len(exec.ExecutedTools), elapsed))
	if e.recorder != nil {
		e.recorder.WorkflowFinished(outcome, elapsed)
	}
	return exec, nil
}

// runStep executes one planned tool and converts every outcome, including
// a panic, into a ToolExecution record.
func (e *Engine) runStep(ctx context.Context, step core.ToolPlan, input string) (rec core.ToolExecution) {
	start := e.now()
	rec = core.ToolExecution{
		ToolName:   step.ToolName,
		Parameters: step.Parameters.Clone(),
		InputPath:  input,
		Status:     core.ExecutionFailed,
	}
	defer func() {
		if r := recover(); r != nil {
			rec.Status = core.ExecutionFailed
			rec.OutputPath = ""
			rec.Error = fmt.Sprintf("tool %s panicked: %v", step.ToolName, r)
		}
		rec.ExecutionTime = e.now().Sub(start).Seconds()
	}()

	factory, err := e.tools.Lookup(step.ToolName)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	result, err := factory().Execute(ctx, input, step.Parameters.Clone())
	switch {
	case err != nil:
		rec.Error = err.Error()
	case result == nil:
		rec.Error = fmt.Sprintf("tool %s returned no result", step.ToolName)
	case !result.Success:
		rec.Error = result.ErrorMessage
		if rec.Error == "" {
			rec.Error = fmt.Sprintf("tool %s reported failure", step.ToolName)
		}
	default:
		if result.OutputPath != "" {
			if _, statErr := os.Stat(result.OutputPath); statErr != nil {
				rec.Error = core.ErrStorage("output file missing: " + result.OutputPath).WithCause(statErr).Error()
				return rec
			}
		}
		rec.Status = core.ExecutionSuccess
		rec.OutputPath = result.OutputPath
	}
	return rec
}

// GetStatus returns a snapshot of the active run for jobID, or nil when no
// run is active.
func (e *Engine) GetStatus(jobID string) *core.RunSnapshot {
	e.mu.RLock()
	state, ok := e.runs[jobID]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	return state.snapshot(e.now())
}

// Cleanup discards the run state for jobID. It is a no-op when none exists.
func (e *Engine) Cleanup(jobID string) {
	e.mu.Lock()
	delete(e.runs, jobID)
	e.mu.Unlock()
}

// ActiveJobs returns the ids of runs in progress, sorted.
func (e *Engine) ActiveJobs() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (e *Engine) register(jobID string, total int) (*runState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.runs[jobID]; exists {
		return nil, core.ErrConflict(core.CodeRunActive, "workflow already running for job "+jobID)
	}
	state := newRunState(jobID, total, e.now())
	e.runs[jobID] = state
	return state, nil
}

// release removes state unless a later run has replaced it.
func (e *Engine) release(jobID string, state *runState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runs[jobID] == state {
		delete(e.runs, jobID)
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
