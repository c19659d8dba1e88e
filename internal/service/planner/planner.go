// Package planner turns natural-language editing requests into workflow
// plans by consulting a language model over the tool catalog.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
)

// Options configures a Planner.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// DropUnknownSteps removes steps naming unregistered tools from parsed
	// plans. When false such steps are kept and surface as validator
	// warnings and, if executed, as failed steps.
	DropUnknownSteps bool

	// RequestsPerMinute caps model calls; zero disables the limit.
	RequestsPerMinute float64
	Burst             int
}

// DefaultOptions returns the planning defaults.
func DefaultOptions() Options {
	return Options{
		Temperature:      0.1,
		MaxTokens:        2048,
		Timeout:          2 * time.Minute,
		DropUnknownSteps: true,
	}
}

// Planner produces, refines and explains workflow plans.
type Planner struct {
	agent   core.Agent
	catalog Catalog
	prompts *promptRenderer
	opts    Options
	logger  *logging.Logger
	system  string
	limiter *RateLimiter
}

// New creates a planner. agent may be nil, in which case Analyze and Refine
// fail with AGENT_UNAVAILABLE and Explain uses the local template.
func New(agent core.Agent, catalog Catalog, opts Options, logger *logging.Logger) (*Planner, error) {
	if catalog == nil {
		return nil, fmt.Errorf("planner requires a tool catalog")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	defaults := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	prompts, err := newPromptRenderer()
	if err != nil {
		return nil, err
	}
	system, err := prompts.systemPrompt(catalog.DescribeAll())
	if err != nil {
		return nil, err
	}

	return &Planner{
		agent:   agent,
		catalog: catalog,
		prompts: prompts,
		opts:    opts,
		logger:  logger.WithComponent("planner"),
		system:  system,
		limiter: NewRateLimiter(opts.RequestsPerMinute, opts.Burst),
	}, nil
}

// Available reports whether a model backend is configured.
func (p *Planner) Available() bool {
	return p.agent != nil
}

// Agent returns the configured backend, or nil.
func (p *Planner) Agent() core.Agent {
	return p.agent
}

// Analyze asks the model for a plan for prompt. The model is called once;
// a transport failure is PLANNING_FAILED and an unusable answer is
// MALFORMED_PLAN_RESPONSE.
func (p *Planner) Analyze(ctx context.Context, prompt string, meta *core.VideoMetadata) (*core.WorkflowPlan, error) {
	prompt = strings.TrimSpace(prompt)
	if err := CheckPrompt(prompt); err != nil {
		return nil, err
	}

	message, err := p.prompts.analyzePrompt(prompt, meta)
	if err != nil {
		return nil, core.ErrExecution(core.CodePlanningFailed, "building planner prompt").WithCause(err)
	}

	p.logger.Info("analyzing prompt", "prompt_length", len(prompt))
	plan, err := p.plan(ctx, message, prompt)
	if err != nil {
		return nil, err
	}
	p.logger.Info("generated workflow plan",
		"tools", len(plan.ToolSequence),
		"dropped", len(plan.DroppedSteps),
		"complexity", plan.ComplexityScore)
	return plan, nil
}

// Refine re-plans with user feedback. On failure the original plan is
// returned together with the error.
func (p *Planner) Refine(ctx context.Context, plan *core.WorkflowPlan, feedback string) (*core.WorkflowPlan, error) {
	if plan == nil {
		return nil, core.ErrValidation(core.CodeEmptyPlan, "no plan to refine")
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return plan, core.ErrValidation(core.CodeEmptyPrompt, "feedback cannot be empty")
	}

	message, err := p.prompts.refinePrompt(plan, feedback)
	if err != nil {
		return plan, core.ErrExecution(core.CodePlanningFailed, "building refine prompt").WithCause(err)
	}

	p.logger.Info("refining workflow plan", "tools", len(plan.ToolSequence))
	refined, err := p.plan(ctx, message, plan.Prompt)
	if err != nil {
		return plan, err
	}
	return refined, nil
}

// Validate checks plan against this planner's catalog.
func (p *Planner) Validate(plan *core.WorkflowPlan) []string {
	return Validate(plan, p.catalog)
}

func (p *Planner) plan(ctx context.Context, message, prompt string) (*core.WorkflowPlan, error) {
	if p.agent == nil {
		return nil, core.ErrExecution(core.CodeAgentUnavailable, "no planner backend configured")
	}

	result, err := p.execute(ctx, core.ExecuteOptions{
		Prompt:       message,
		SystemPrompt: p.system,
		Model:        p.opts.Model,
		MaxTokens:    p.opts.MaxTokens,
		Temperature:  p.opts.Temperature,
		Format:       core.OutputFormatJSON,
		Timeout:      p.opts.Timeout,
	})
	if err != nil {
		p.logger.Error("planner call failed", "agent", p.agent.Name(), "error", err)
		planErr := core.ErrExecution(core.CodePlanningFailed, "failed to analyze prompt: "+err.Error()).WithCause(err)
		planErr.Retryable = core.IsRetryable(err)
		return nil, planErr
	}

	plan, err := ParseResponse(result.Output, prompt)
	if err != nil {
		p.logger.Error("unusable planner response", "error", err, "response_length", len(result.Output))
		return nil, err
	}

	if p.opts.DropUnknownSteps {
		if dropped := DropUnknownSteps(plan, p.catalog.Has); len(dropped) > 0 {
			p.logger.Warn("dropped unknown tools from plan", "tools", dropped)
		}
	}
	return plan, nil
}

// execute calls the model once the rate limiter allows it.
func (p *Planner) execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, core.ErrRateLimit("planner rate limit: " + err.Error()).WithCause(err)
	}
	return p.agent.Execute(ctx, opts)
}

// CheckPrompt rejects empty and oversized prompts.
func CheckPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return core.ErrValidation(core.CodeEmptyPrompt, "prompt cannot be empty")
	}
	if n := utf8.RuneCountInString(prompt); n > core.MaxPromptLength {
		return core.ErrValidation(core.CodePromptTooLong,
			fmt.Sprintf("prompt is %d characters, maximum is %d", n, core.MaxPromptLength))
	}
	return nil
}
