package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/events"
)

const persistTimeout = 10 * time.Second

// activeRun tracks a queued or running workflow owned by this process.
type activeRun struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
	timedOut atomic.Bool
	userStop atomic.Bool
}

// ProcessResult is returned when a job has been accepted for processing.
type ProcessResult struct {
	Job      *core.JobInfo      `json:"job"`
	Plan     *core.WorkflowPlan `json:"plan"`
	Warnings []string           `json:"warnings"`
}

// CancelResult describes a cancellation.
type CancelResult struct {
	JobID           string         `json:"job_id"`
	PreviousStatus  core.JobStatus `json:"previous_status"`
	WorkflowStopped bool           `json:"workflow_stopped"`
	Message         string         `json:"message"`
}

// Analyze plans prompt and screens the plan. The plan is returned even when
// warnings are present.
func (s *Service) Analyze(ctx context.Context, prompt string, meta *core.VideoMetadata) (*core.WorkflowPlan, []string, error) {
	start := s.now()
	plan, err := s.planner.Analyze(ctx, prompt, meta)
	if s.recorder != nil {
		s.recorder.PlannerRequest(err, s.now().Sub(start))
	}
	if err != nil {
		return nil, nil, err
	}
	return plan, s.planner.Validate(plan), nil
}

// Process plans prompt for the job and starts the workflow in the
// background. A plan with no steps is refused and leaves the job untouched.
func (s *Service) Process(ctx context.Context, id, prompt string) (*ProcessResult, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == core.JobProcessing || s.isActive(id) {
		return nil, core.ErrConflict(core.CodeRunActive, "job is already processing")
	}
	if prompt == "" {
		prompt = job.Prompt
	}

	meta := job.Metadata
	if meta == nil && s.prober != nil {
		if meta, err = s.prober.Probe(ctx, job.InputPath); err != nil {
			return nil, err
		}
	}

	plan, warnings, err := s.Analyze(ctx, prompt, meta)
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		return nil, core.ErrValidation(core.CodeEmptyPlan,
			"no tools could be planned for this request; try rephrasing the prompt").
			WithDetail("warnings", warnings)
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	run := &activeRun{ctx: runCtx, cancel: cancel, done: make(chan struct{})}
	if !s.claim(id, run) {
		cancel()
		return nil, core.ErrConflict(core.CodeRunActive, "job is already processing")
	}

	job, err = s.store.SetStatus(ctx, id, core.JobUpdate{
		Status:     core.JobProcessing,
		Progress:   core.IntPtr(0),
		Prompt:     core.StringPtr(strings.TrimSpace(prompt)),
		Error:      core.StringPtr(""),
		OutputPath: core.StringPtr(""),
		Plan:       plan,
		Warnings:   warnings,
		Metadata:   meta,
	})
	if err != nil {
		cancel()
		s.release(id)
		return nil, err
	}

	s.logger.WithJob(id).Info("job accepted", "tools", plan.ToolNames(), "warnings", len(warnings))
	s.publish(events.NewJobStatusChangedEvent(id, string(core.JobProcessing), 0, "Queued for processing"))
	s.refreshCounts(ctx)

	s.start(id, job.InputPath, plan, run)
	return &ProcessResult{Job: job, Plan: plan, Warnings: warnings}, nil
}

func (s *Service) claim(id string, run *activeRun) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.active[id]; exists {
		return false
	}
	s.active[id] = run
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	run, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		close(run.done)
	}
}

func (s *Service) lookup(id string) *activeRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id]
}

// start runs the workflow once a concurrency slot is free.
func (s *Service) start(id, input string, plan *core.WorkflowPlan, run *activeRun) {
	ctx, cancel := run.ctx, run.cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(id)
		defer cancel()

		logger := s.logger.WithJob(id)
		if err := s.sem.Acquire(ctx, 1); err != nil {
			reason := "cancelled while queued"
			if !run.userStop.Load() {
				reason = "service shutting down"
			}
			logger.Info("job left the queue", "reason", reason)
			s.finishCancelled(id, reason, 0, nil)
			return
		}
		defer s.sem.Release(1)
		run.started.Store(true)

		if s.recorder != nil {
			s.recorder.RunStarted()
			defer s.recorder.RunEnded()
		}

		if s.cfg.Timeout > 0 {
			watchdog := time.AfterFunc(s.cfg.Timeout, func() {
				run.timedOut.Store(true)
				logger.Warn("job exceeded timeout, cancelling", "timeout", s.cfg.Timeout)
				s.engine.Cancel(id)
				cancel()
			})
			defer watchdog.Stop()
		}

		exec, err := s.engine.ExecuteWorkflow(ctx, id, input, plan)
		s.engine.Cleanup(id)
		s.complete(id, plan, exec, err, run)
	}()
}

// complete persists the outcome of a run.
func (s *Service) complete(id string, plan *core.WorkflowPlan, exec *core.WorkflowExecution, runErr error, run *activeRun) {
	logger := s.logger.WithJob(id)
	switch {
	case runErr != nil:
		logger.Error("workflow could not start", "error", runErr)
		s.finishFailed(id, runErr.Error(), nil)

	case exec.Success:
		output := exec.FinalOutput()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if _, err := s.store.SetStatus(ctx, id, core.JobUpdate{
			Status:     core.JobCompleted,
			Progress:   core.IntPtr(100),
			OutputPath: core.StringPtr(output),
			Error:      core.StringPtr(""),
			Execution:  exec,
		}); err != nil {
			logger.Error("persisting completed job failed", "error", err)
			return
		}
		logger.Info("job completed", "output", output, "seconds", exec.TotalExecutionTime)
		s.publish(events.NewJobCompletedEvent(id, output, exec.TotalExecutionTime))
		s.refreshCounts(ctx)

	case exec.Cancelled && run.timedOut.Load():
		s.finishFailed(id, fmt.Sprintf("job exceeded timeout of %s", s.cfg.Timeout), exec)

	case exec.Cancelled:
		s.finishCancelled(id, "cancelled by user", completedProgress(exec, plan), exec)

	default:
		reason := exec.FailureReason()
		if reason == "" {
			reason = "Workflow execution failed"
		}
		s.finishFailed(id, reason, exec)
	}
}

func (s *Service) finishFailed(id, reason string, exec *core.WorkflowExecution) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := s.store.SetStatus(ctx, id, core.JobUpdate{
		Status:    core.JobFailed,
		Error:     core.StringPtr(reason),
		Execution: exec,
	}); err != nil {
		s.logger.WithJob(id).Error("persisting failed job failed", "error", err)
		return
	}
	s.logger.WithJob(id).Error("job failed", "error", reason)
	s.publish(events.NewJobFailedEvent(id, reason))
	s.refreshCounts(ctx)
}

func (s *Service) finishCancelled(id, reason string, progress int, exec *core.WorkflowExecution) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := s.store.SetStatus(ctx, id, core.JobUpdate{
		Status:    core.JobCancelled,
		Progress:  core.IntPtr(progress),
		Execution: exec,
	}); err != nil {
		s.logger.WithJob(id).Error("persisting cancelled job failed", "error", err)
		return
	}
	s.publish(events.NewJobCancelledEvent(id, reason))
	s.refreshCounts(ctx)
}

func completedProgress(exec *core.WorkflowExecution, plan *core.WorkflowPlan) int {
	total := len(plan.ToolSequence)
	if exec == nil || total == 0 {
		return 0
	}
	done := 0
	for _, t := range exec.ExecutedTools {
		if t.Succeeded() {
			done++
		}
	}
	return done * 100 / total
}

// Cancel stops a pending or processing job. A tool that is already running
// finishes first; if it was the last planned tool the job still completes.
func (s *Service) Cancel(ctx context.Context, id string) (*CancelResult, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	run := s.lookup(id)
	if !job.Status.Cancellable() && run == nil {
		return nil, core.ErrState(core.CodeInvalidState, "cannot cancel job with status: "+string(job.Status))
	}

	res := &CancelResult{JobID: id, PreviousStatus: job.Status, Message: "Job cancelled successfully"}
	if run == nil {
		if _, err := s.store.SetStatus(ctx, id, core.JobUpdate{Status: core.JobCancelled}); err != nil {
			return nil, err
		}
		s.publish(events.NewJobCancelledEvent(id, "cancelled by user"))
		s.refreshCounts(ctx)
		s.logger.WithJob(id).Info("job cancelled", "previous_status", job.Status)
		return res, nil
	}

	run.userStop.Store(true)
	res.WorkflowStopped = s.engine.Cancel(id)
	run.cancel()
	if res.WorkflowStopped {
		res.Message += " (workflow was running and has been stopped)"
	}
	s.publish(events.NewJobStatusChangedEvent(id, string(job.Status), job.Progress, "Cancellation requested"))
	s.logger.WithJob(id).Info("cancellation requested", "running", run.started.Load())
	return res, nil
}

// Wait blocks until the job is no longer queued or running in this process
// and returns its final record.
func (s *Service) Wait(ctx context.Context, id string) (*core.JobInfo, error) {
	if run := s.lookup(id); run != nil {
		select {
		case <-run.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.store.Get(ctx, id)
}

// Close cancels queued work and waits for running workflows to stop. Runs
// still going when ctx expires are cancelled before their next tool.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	for _, id := range s.queued() {
		if run := s.lookup(id); run != nil {
			run.cancel()
		}
	}

	select {
	case <-done:
		s.stop()
		return nil
	case <-ctx.Done():
	}

	s.stop()
	for _, id := range s.ActiveJobs() {
		s.engine.Cancel(id)
	}
	<-done
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ErrTimeout("job service shutdown timed out; running jobs were cancelled")
	}
	return ctx.Err()
}

func (s *Service) queued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, run := range s.active {
		if !run.started.Load() {
			ids = append(ids, id)
		}
	}
	return ids
}
