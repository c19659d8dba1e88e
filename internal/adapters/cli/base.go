// Package cli runs the planner through a locally installed model CLI.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/process"
)

// AgentConfig holds adapter configuration.
type AgentConfig struct {
	Name    string
	Path    string
	Model   string
	Timeout time.Duration
	WorkDir string
	Env     []string
}

// BaseAdapter provides common CLI execution functionality.
type BaseAdapter struct {
	config AgentConfig
	runner process.Runner
	logger *logging.Logger
}

// NewBaseAdapter creates a new base adapter.
func NewBaseAdapter(cfg AgentConfig, runner process.Runner, logger *logging.Logger) *BaseAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &BaseAdapter{config: cfg, runner: runner, logger: logger}
}

// Config returns the adapter configuration.
func (b *BaseAdapter) Config() AgentConfig {
	return b.config
}

// ExecuteCommand runs the CLI with args. A zero timeout uses the configured one.
func (b *BaseAdapter) ExecuteCommand(ctx context.Context, args []string, stdin string, timeout time.Duration) (*process.Result, error) {
	if timeout == 0 {
		timeout = b.config.Timeout
	}
	parts := strings.Fields(b.config.Path)
	if len(parts) == 0 {
		return nil, core.ErrValidation("NO_PATH", "adapter path not configured")
	}

	cmd := process.Command{
		Path:    parts[0],
		Args:    append(parts[1:], args...),
		Stdin:   stdin,
		Dir:     b.config.WorkDir,
		Env:     b.config.Env,
		Timeout: timeout,
	}
	b.logger.Debug("cli: executing", "cmd", cmd.Path, "args", len(cmd.Args), "stdin_bytes", len(stdin))

	result, err := b.runner.Run(ctx, cmd)
	if err != nil {
		if result != nil && result.ExitCode != 0 {
			return result, b.classifyError(result)
		}
		return result, err
	}
	return result, nil
}

// classifyError converts a failed run into a domain error.
func (b *BaseAdapter) classifyError(result *process.Result) error {
	msg := strings.TrimSpace(result.Stderr)
	if msg == "" {
		msg = extractErrorFromOutput(result.Stdout)
	}
	if msg == "" {
		msg = "(no error message captured)"
	}
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, []string{"rate limit", "too many requests", "429", "quota", "resource_exhausted"}):
		return core.ErrRateLimit(msg)
	case containsAny(lower, []string{"unauthorized", "authentication", "api key", "permission_denied"}):
		return core.ErrAuth(msg)
	case containsAny(lower, []string{"connection", "network", "unreachable"}):
		return core.ErrNetwork(msg)
	}
	return core.ErrExecution("CLI_ERROR",
		fmt.Sprintf("command failed with exit code %d: %s", result.ExitCode, process.Tail(msg, 500)))
}

// extractErrorFromOutput looks for a JSON error object on stdout, falling
// back to the last plain line.
func extractErrorFromOutput(stdout string) string {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return msg
		}
		if errObj, ok := obj["error"].(map[string]interface{}); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, "{") {
			if len(line) > 200 {
				return line[:200] + "..."
			}
			return line
		}
	}
	return ""
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?(-[a-zA-Z0-9.]+)?`)

// GetVersion retrieves the CLI version.
func (b *BaseAdapter) GetVersion(ctx context.Context, versionArg string) (string, error) {
	result, err := b.ExecuteCommand(ctx, []string{versionArg}, "", 30*time.Second)
	if err != nil {
		return "", err
	}
	output := result.Stdout + result.Stderr
	if match := versionPattern.FindString(output); match != "" {
		return match, nil
	}
	return strings.TrimSpace(output), nil
}

// CheckAvailability verifies the CLI is installed.
func (b *BaseAdapter) CheckAvailability(_ context.Context) error {
	parts := strings.Fields(b.config.Path)
	if len(parts) == 0 {
		return core.ErrValidation("NO_PATH", "adapter path not configured")
	}
	return process.LookPath(parts[0])
}

// TokenEstimate provides a rough token count, about four characters per token.
func TokenEstimate(text string) int {
	return len(text) / 4
}
