// Package process runs external media commands (ffmpeg, ffprobe, planner
// CLIs) with timeouts, process-group cleanup and error classification.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
)

// Command describes one external invocation.
type Command struct {
	Path    string
	Args    []string
	Stdin   string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Result captures the output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger         *logging.Logger
	defaultTimeout time.Duration
	gracePeriod    time.Duration
	preflight      func() error
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithDefaultTimeout sets the timeout applied when a command has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *ExecRunner) { r.defaultTimeout = d }
}

// WithGracePeriod sets how long a cancelled process may take to exit
// after SIGTERM before it is killed.
func WithGracePeriod(d time.Duration) Option {
	return func(r *ExecRunner) { r.gracePeriod = d }
}

// WithPreflight installs a check run before every command.
func WithPreflight(check func() error) Option {
	return func(r *ExecRunner) { r.preflight = check }
}

// NewExecRunner creates a runner.
func NewExecRunner(logger *logging.Logger, opts ...Option) *ExecRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &ExecRunner{
		logger:         logger.WithComponent("process"),
		defaultTimeout: 30 * time.Minute,
		gracePeriod:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Path == "" {
		return nil, core.ErrValidation("NO_PATH", "command path not configured")
	}
	if r.preflight != nil {
		if err := r.preflight(); err != nil {
			return nil, err
		}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- binary paths come from validated config
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	configureProcAttr(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = r.gracePeriod

	r.logger.Debug("process: starting", "cmd", c.String(), "timeout", timeout)
	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.logger.Warn("process: timed out", "cmd", c.Path, "duration", result.Duration, "timeout", timeout)
		return result, core.ErrTimeout(fmt.Sprintf("%s timed out after %v", c.Path, timeout))
	case errors.Is(ctx.Err(), context.Canceled):
		r.logger.Info("process: cancelled", "cmd", c.Path, "duration", result.Duration)
		return result, core.ErrState(core.CodeCancelled, "command cancelled")
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Error("process: command failed",
				"cmd", c.Path,
				"exit_code", result.ExitCode,
				"duration", result.Duration,
				"stderr", Tail(result.Stderr, 2000),
			)
			return result, classify(c.Path, result)
		}
		return result, fmt.Errorf("running %s: %w", c.Path, err)
	}

	r.logger.Debug("process: completed", "cmd", c.Path, "duration", result.Duration)
	return result, nil
}

func classify(path string, result *Result) error {
	msg := lastLines(result.Stderr, 3)
	if msg == "" {
		msg = "(no error output)"
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such file") || strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "no space left"):
		return core.ErrStorage(fmt.Sprintf("%s: %s", path, msg)).WithDetail("exit_code", result.ExitCode)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "quota"):
		return core.ErrRateLimit(msg)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		return core.ErrAuth(msg)
	}
	return core.ErrExecution("COMMAND_FAILED",
		fmt.Sprintf("%s exited with code %d: %s", path, result.ExitCode, msg)).
		WithDetail("exit_code", result.ExitCode)
}

// Tail returns at most n trailing bytes of s.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

// LookPath reports whether the binary can be found.
func LookPath(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return core.ErrNotFound("binary", path).WithCause(err)
	}
	return nil
}
