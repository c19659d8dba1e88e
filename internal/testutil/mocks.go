package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/process"
)

// MockAgent implements core.Agent for testing.
type MockAgent struct {
	name        string
	executeFunc func(context.Context, core.ExecuteOptions) (*core.ExecuteResult, error)
	pingFunc    func(context.Context) error
	calls       []MockCall
	mu          sync.Mutex
}

// MockCall records a call to the mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

// NewMockAgent creates a new mock agent.
func NewMockAgent(name string) *MockAgent {
	return &MockAgent{
		name:  name,
		calls: make([]MockCall, 0),
	}
}

// Name returns the mock name.
func (m *MockAgent) Name() string {
	return m.name
}

// Ping mocks availability check.
func (m *MockAgent) Ping(ctx context.Context) error {
	m.recordCall("Ping", nil)
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

// Execute mocks prompt execution.
func (m *MockAgent) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	m.recordCall("Execute", opts)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, opts)
	}

	promptPreview := opts.Prompt
	if len(promptPreview) > 50 {
		promptPreview = promptPreview[:50]
	}

	return &core.ExecuteResult{
		Output:    fmt.Sprintf("Mock response for: %s", promptPreview),
		TokensIn:  100,
		TokensOut: 50,
		Duration:  time.Millisecond * 100,
	}, nil
}

// WithExecuteFunc sets a custom execute function.
func (m *MockAgent) WithExecuteFunc(fn func(context.Context, core.ExecuteOptions) (*core.ExecuteResult, error)) *MockAgent {
	m.executeFunc = fn
	return m
}

// WithPingFunc sets a custom ping function.
func (m *MockAgent) WithPingFunc(fn func(context.Context) error) *MockAgent {
	m.pingFunc = fn
	return m
}

// WithError configures the mock to return an error.
func (m *MockAgent) WithError(err error) *MockAgent {
	m.executeFunc = func(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
		return nil, err
	}
	return m
}

// WithResponse configures a fixed response.
func (m *MockAgent) WithResponse(output string) *MockAgent {
	return m.WithResponses(output)
}

// WithResponses answers successive calls with outputs in order; the last
// output repeats once the list is exhausted.
func (m *MockAgent) WithResponses(outputs ...string) *MockAgent {
	var (
		mu sync.Mutex
		n  int
	)
	m.executeFunc = func(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
		mu.Lock()
		i := n
		if n < len(outputs)-1 {
			n++
		}
		mu.Unlock()
		output := outputs[i]
		return &core.ExecuteResult{
			Output:    output,
			TokensIn:  100,
			TokensOut: len(output) / 4,
			Duration:  time.Millisecond * 50,
		}, nil
	}
	return m
}

// Calls returns recorded calls.
func (m *MockAgent) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.calls...)
}

// LastOptions returns the options of the most recent Execute call.
func (m *MockAgent) LastOptions() (core.ExecuteOptions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if opts, ok := m.calls[i].Args.(core.ExecuteOptions); ok {
			return opts, true
		}
	}
	return core.ExecuteOptions{}, false
}

// CallCount returns number of calls to a method.
func (m *MockAgent) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears call history.
func (m *MockAgent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]MockCall, 0)
}

func (m *MockAgent) recordCall(method string, args interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// MockToolCall records one Execute invocation.
type MockToolCall struct {
	VideoPath string
	Params    core.Params
}

// MockTool implements core.Tool. By default it succeeds and writes a small
// file named "<stem>_<tool><ext>" next to its input.
type MockTool struct {
	name        string
	params      map[string]core.ParamSpec
	executeFunc func(context.Context, string, core.Params) (*core.ToolResult, error)
	calls       []MockToolCall
	mu          sync.Mutex
}

// NewMockTool creates a succeeding mock tool.
func NewMockTool(name string) *MockTool {
	return &MockTool{name: name, params: map[string]core.ParamSpec{}}
}

// Name returns the tool name.
func (m *MockTool) Name() string { return m.name }

// Description returns a fixed description.
func (m *MockTool) Description() string { return "mock tool " + m.name }

// Parameters returns the configured schema.
func (m *MockTool) Parameters() map[string]core.ParamSpec { return m.params }

// Execute records the call and runs the configured behaviour.
func (m *MockTool) Execute(ctx context.Context, videoPath string, params core.Params) (*core.ToolResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockToolCall{VideoPath: videoPath, Params: params})
	fn := m.executeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, videoPath, params)
	}
	return WriteOutput(videoPath, m.name)
}

// Factory returns a zero-argument factory yielding this mock.
func (m *MockTool) Factory() core.ToolFactory {
	return func() core.Tool { return m }
}

// WithParams sets the parameter schema.
func (m *MockTool) WithParams(params map[string]core.ParamSpec) *MockTool {
	m.params = params
	return m
}

// WithExecuteFunc sets a custom execute function.
func (m *MockTool) WithExecuteFunc(fn func(context.Context, string, core.Params) (*core.ToolResult, error)) *MockTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executeFunc = fn
	return m
}

// WithFailure makes the tool report Success=false with msg.
func (m *MockTool) WithFailure(msg string) *MockTool {
	return m.WithExecuteFunc(func(context.Context, string, core.Params) (*core.ToolResult, error) {
		return &core.ToolResult{Success: false, ErrorMessage: msg}, nil
	})
}

// WithError makes the tool return err.
func (m *MockTool) WithError(err error) *MockTool {
	return m.WithExecuteFunc(func(context.Context, string, core.Params) (*core.ToolResult, error) {
		return nil, err
	})
}

// WithPanic makes the tool panic with v.
func (m *MockTool) WithPanic(v interface{}) *MockTool {
	return m.WithExecuteFunc(func(context.Context, string, core.Params) (*core.ToolResult, error) {
		panic(v)
	})
}

// WithGate blocks each call after signalling started until release is
// closed, then succeeds normally.
func (m *MockTool) WithGate(started chan<- struct{}, release <-chan struct{}) *MockTool {
	return m.WithExecuteFunc(func(_ context.Context, videoPath string, _ core.Params) (*core.ToolResult, error) {
		started <- struct{}{}
		<-release
		return WriteOutput(videoPath, m.name)
	})
}

// Calls returns recorded calls.
func (m *MockTool) Calls() []MockToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockToolCall{}, m.calls...)
}

// CallCount returns the number of Execute calls.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// WriteOutput writes "<stem>_<tool><ext>" next to videoPath and returns a
// successful result pointing at it.
func WriteOutput(videoPath, tool string) (*core.ToolResult, error) {
	ext := filepath.Ext(videoPath)
	out := strings.TrimSuffix(videoPath, ext) + "_" + tool + ext
	if err := os.WriteFile(out, []byte(tool), 0o600); err != nil {
		return nil, err
	}
	return &core.ToolResult{
		Success:       true,
		OutputPath:    out,
		ExecutionTime: time.Millisecond,
	}, nil
}

// MockRunner implements process.Runner. Commands are recorded; runFunc
// decides the outcome.
type MockRunner struct {
	runFunc func(context.Context, process.Command) (*process.Result, error)
	calls   []process.Command
	mu      sync.Mutex
}

// NewMockRunner returns a runner that succeeds with empty output.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// WithRunFunc sets a custom run function.
func (m *MockRunner) WithRunFunc(fn func(context.Context, process.Command) (*process.Result, error)) *MockRunner {
	m.runFunc = fn
	return m
}

// WithStdout answers every command with stdout.
func (m *MockRunner) WithStdout(stdout string) *MockRunner {
	return m.WithRunFunc(func(context.Context, process.Command) (*process.Result, error) {
		return &process.Result{Stdout: stdout}, nil
	})
}

// Run records cmd and runs the configured behaviour.
func (m *MockRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	fn := m.runFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, cmd)
	}
	return &process.Result{}, nil
}

// Calls returns recorded commands.
func (m *MockRunner) Calls() []process.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]process.Command{}, m.calls...)
}

// Ensure interfaces are implemented
var _ core.Agent = (*MockAgent)(nil)
var _ core.Tool = (*MockTool)(nil)
var _ process.Runner = (*MockRunner)(nil)
