package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/process"
	"github.com/visualix/visualix/internal/testutil"
	"github.com/visualix/visualix/internal/tools"
)

func newRegistry(t *testing.T, mocks ...*testutil.MockTool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, m := range mocks {
		if err := r.Register(m.Factory()); err != nil {
			t.Fatalf("Register(%s): %v", m.Name(), err)
		}
	}
	return r
}

func newInput(t *testing.T) string {
	t.Helper()
	return testutil.TempVideo(t, t.TempDir(), "input.mp4")
}

func TestExecuteWorkflow_AllSucceed(t *testing.T) {
	a, b, c := testutil.NewMockTool("a"), testutil.NewMockTool("b"), testutil.NewMockTool("c")
	engine := NewEngine(newRegistry(t, a, b, c))
	input := newInput(t)
	plan := testutil.NewTestPlan([]string{"a", "b", "c"})

	exec, err := engine.ExecuteWorkflow(context.Background(), "job-1", input, plan)
	if err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}
	if !exec.Success {
		t.Fatalf("expected success, got %+v", exec.ExecutedTools)
	}
	if exec.WorkflowID != "job-1" || exec.GeminiReasoning != plan.Reasoning {
		t.Errorf("identity fields = %q/%q", exec.WorkflowID, exec.GeminiReasoning)
	}
	if len(exec.ExecutedTools) != 3 {
		t.Fatalf("executed = %d, want 3", len(exec.ExecutedTools))
	}
	for i, name := range exec.PlannedTools {
		if exec.ExecutedTools[i].ToolName != name {
			t.Errorf("executed[%d] = %s, want %s", i, exec.ExecutedTools[i].ToolName, name)
		}
	}

	// Each tool consumes the previous tool's output.
	if got := a.Calls()[0].VideoPath; got != input {
		t.Errorf("a input = %q, want %q", got, input)
	}
	if got := b.Calls()[0].VideoPath; got != exec.ExecutedTools[0].OutputPath {
		t.Errorf("b input = %q, want %q", got, exec.ExecutedTools[0].OutputPath)
	}
	if got := c.Calls()[0].VideoPath; got != exec.ExecutedTools[1].OutputPath {
		t.Errorf("c input = %q, want %q", got, exec.ExecutedTools[1].OutputPath)
	}
	if exec.FinalOutput() != exec.ExecutedTools[2].OutputPath {
		t.Errorf("FinalOutput() = %q", exec.FinalOutput())
	}

	if engine.GetStatus("job-1") != nil {
		t.Error("run state must be gone after completion")
	}
}

func TestExecuteWorkflow_StopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name    string
		failing *testutil.MockTool
		wantErr string
	}{
		{"reported failure", testutil.NewMockTool("b").WithFailure("bad frame"), "bad frame"},
		{"returned error", testutil.NewMockTool("b").WithError(errors.New("exit status 1")), "exit status 1"},
		{"panic", testutil.NewMockTool("b").WithPanic("index out of range"), "panicked: index out of range"},
		{"missing output", testutil.NewMockTool("b").WithExecuteFunc(func(context.Context, string, core.Params) (*core.ToolResult, error) {
			return &core.ToolResult{Success: true, OutputPath: "/nonexistent/out.mp4"}, nil
		}), core.CodeStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, c := testutil.NewMockTool("a"), testutil.NewMockTool("c")
			engine := NewEngine(newRegistry(t, a, tt.failing, c))

			exec, err := engine.ExecuteWorkflow(context.Background(), "job", newInput(t), testutil.NewTestPlan([]string{"a", "b", "c"}))
			if err != nil {
				t.Fatalf("ExecuteWorkflow() error = %v", err)
			}
			if exec.Success {
				t.Fatal("expected failure")
			}
			if len(exec.ExecutedTools) != 2 {
				t.Fatalf("executed = %d, want 2", len(exec.ExecutedTools))
			}
			rec := exec.ExecutedTools[1]
			if rec.Status != core.ExecutionFailed || !strings.Contains(rec.Error, tt.wantErr) {
				t.Errorf("record = %+v, want error containing %q", rec, tt.wantErr)
			}
			if rec.OutputPath != "" {
				t.Errorf("failed record has output %q", rec.OutputPath)
			}
			if c.CallCount() != 0 {
				t.Error("tools after the failure must not run")
			}
			if exec.FailureReason() != rec.Error {
				t.Errorf("FailureReason() = %q", exec.FailureReason())
			}
			if engine.GetStatus("job") != nil {
				t.Error("run state must be gone after failure")
			}
		})
	}
}

func TestExecuteWorkflow_UnknownToolRecorded(t *testing.T) {
	engine := NewEngine(newRegistry(t))
	exec, err := engine.ExecuteWorkflow(context.Background(), "job", newInput(t), testutil.NewTestPlan([]string{"unknown_tool_x"}))
	if err != nil {
		t.Fatalf("ExecuteWorkflow() error = %v", err)
	}
	if exec.Success || len(exec.ExecutedTools) != 1 {
		t.Fatalf("exec = %+v", exec)
	}
	if !strings.Contains(exec.ExecutedTools[0].Error, "unknown_tool_x") {
		t.Errorf("error %q should name the tool", exec.ExecutedTools[0].Error)
	}
}

func TestExecuteWorkflow_SuccessDerivation(t *testing.T) {
	tests := []struct {
		name        string
		mocks       []*testutil.MockTool
		tools       []string
		wantSuccess bool
		wantRan     int
	}{
		{"empty plan", nil, nil, true, 0},
		{"single tool", []*testutil.MockTool{testutil.NewMockTool("a")}, []string{"a"}, true, 1},
		{"single failure", []*testutil.MockTool{testutil.NewMockTool("a").WithFailure("bad")}, []string{"a"}, false, 1},
		{"unknown tool", nil, []string{"missing"}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(newRegistry(t, tt.mocks...))
			exec, err := engine.ExecuteWorkflow(context.Background(), "job", newInput(t), testutil.NewTestPlan(tt.tools))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, exec.Success)
			assert.False(t, exec.Cancelled)
			assert.Len(t, exec.ExecutedTools, tt.wantRan)
			assert.Nil(t, engine.GetStatus("job"), "run state released")
		})
	}
}

func TestExecuteWorkflow_CancelBetweenTools(t *testing.T) {
	started, release := make(chan struct{}, 1), make(chan struct{})
	a := testutil.NewMockTool("a").WithGate(started, release)
	b := testutil.NewMockTool("b")
	engine := NewEngine(newRegistry(t, a, b))

	type outcome struct {
		exec *core.WorkflowExecution
		err  error
	}
	input := newInput(t)
	done := make(chan outcome, 1)
	go func() {
		exec, err := engine.ExecuteWorkflow(context.Background(), "job", input, testutil.NewTestPlan([]string{"a", "b"}))
		done <- outcome{exec, err}
	}()

	<-started
	snap := engine.GetStatus("job")
	if snap == nil || snap.Status != core.RunRunning || snap.CurrentTool != "a" || snap.TotalTools != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if !engine.Cancel("job") {
		t.Fatal("Cancel() = false for a running job")
	}
	if engine.Cancel("job") {
		t.Error("second Cancel() should report no transition")
	}
	if s := engine.GetStatus("job"); s == nil || s.Status != core.RunCancelRequested {
		t.Errorf("status after cancel = %+v", s)
	}

	close(release)
	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.exec.Success || !res.exec.Cancelled {
		t.Errorf("exec = %+v", res.exec)
	}
	if len(res.exec.ExecutedTools) != 1 || !res.exec.ExecutedTools[0].Succeeded() {
		t.Errorf("in-flight tool should finish normally: %+v", res.exec.ExecutedTools)
	}
	if b.CallCount() != 0 {
		t.Error("tool after cancellation must not run")
	}
	if engine.GetStatus("job") != nil {
		t.Error("run state must be gone after cancellation")
	}
}

func TestExecuteWorkflow_DuplicateJobRejected(t *testing.T) {
	started, release := make(chan struct{}, 1), make(chan struct{})
	a := testutil.NewMockTool("a").WithGate(started, release)
	engine := NewEngine(newRegistry(t, a))

	input := newInput(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.ExecuteWorkflow(context.Background(), "job", input, testutil.NewTestPlan([]string{"a"}))
	}()
	<-started

	exec, err := engine.ExecuteWorkflow(context.Background(), "job", newInput(t), testutil.NewTestPlan([]string{"a"}))
	if exec != nil || !core.HasCode(err, core.CodeRunActive) {
		t.Errorf("duplicate run = %v, %v", exec, err)
	}

	close(release)
	<-done
	if a.CallCount() != 1 {
		t.Errorf("tool ran %d times, want 1", a.CallCount())
	}
}

func TestExecuteWorkflow_ContextCancelledBeforeStart(t *testing.T) {
	a := testutil.NewMockTool("a")
	engine := NewEngine(newRegistry(t, a))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := engine.ExecuteWorkflow(ctx, "job", newInput(t), testutil.NewTestPlan([]string{"a"}))
	if err != nil {
		t.Fatal(err)
	}
	if !exec.Cancelled || exec.Success || len(exec.ExecutedTools) != 0 || a.CallCount() != 0 {
		t.Errorf("exec = %+v", exec)
	}
}

func TestExecuteWorkflow_ContextDoesNotInterruptRunningTool(t *testing.T) {
	var toolCtxErr error
	a := testutil.NewMockTool("a")
	ctx, cancel := context.WithCancel(context.Background())
	a.WithExecuteFunc(func(toolCtx context.Context, videoPath string, _ core.Params) (*core.ToolResult, error) {
		cancel()
		toolCtxErr = toolCtx.Err()
		return testutil.WriteOutput(videoPath, "a")
	})
	b := testutil.NewMockTool("b")
	engine := NewEngine(newRegistry(t, a, b))

	exec, err := engine.ExecuteWorkflow(ctx, "job", newInput(t), testutil.NewTestPlan([]string{"a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	if toolCtxErr != nil {
		t.Errorf("tool context was cancelled: %v", toolCtxErr)
	}
	if len(exec.ExecutedTools) != 1 || !exec.Cancelled || b.CallCount() != 0 {
		t.Errorf("exec = %+v", exec)
	}
}

func TestExecuteWorkflow_ProgressMonotonic(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()
	progress := bus.Subscribe(events.TypeWorkflowProgress)

	gates := make([]chan struct{}, 3)
	started := make(chan struct{}, 3)
	mocks := make([]*testutil.MockTool, 3)
	names := []string{"a", "b", "c"}
	for i, name := range names {
		gates[i] = make(chan struct{})
		mocks[i] = testutil.NewMockTool(name).WithGate(started, gates[i])
	}
	engine := NewEngine(newRegistry(t, mocks...), WithEventPublisher(bus))

	input := newInput(t)
	done := make(chan *core.WorkflowExecution, 1)
	go func() {
		exec, _ := engine.ExecuteWorkflow(context.Background(), "job", input, testutil.NewTestPlan(names))
		done <- exec
	}()

	var sampled []int
	for i := range names {
		<-started
		snap := engine.GetStatus("job")
		if snap == nil {
			t.Fatal("status missing mid-run")
		}
		if snap.CurrentToolIndex != i {
			t.Errorf("CurrentToolIndex = %d, want %d", snap.CurrentToolIndex, i)
		}
		sampled = append(sampled, snap.Progress)
		close(gates[i])
	}
	exec := <-done

	want := []int{0, 33, 67}
	for i := range want {
		if sampled[i] != want[i] {
			t.Errorf("sampled progress = %v, want %v", sampled, want)
			break
		}
	}
	if !exec.Success {
		t.Fatalf("exec = %+v", exec)
	}

	var published []int
	for len(progress) > 0 {
		ev := (<-progress).(events.WorkflowProgressEvent)
		published = append(published, ev.Progress)
	}
	if len(published) != 3 || published[0] != 33 || published[1] != 67 || published[2] != 100 {
		t.Errorf("published progress = %v", published)
	}
}

func TestCancelAndCleanup_NoActiveRun(t *testing.T) {
	engine := NewEngine(newRegistry(t))
	if engine.Cancel("missing") {
		t.Error("Cancel() on missing job should be false")
	}
	engine.Cleanup("missing")
	engine.Cleanup("missing")
	if engine.GetStatus("missing") != nil {
		t.Error("GetStatus() on missing job should be nil")
	}
	if len(engine.ActiveJobs()) != 0 {
		t.Error("no active jobs expected")
	}
}

type recordingRecorder struct {
	mu        sync.Mutex
	tools     []string
	workflows []core.RunStatus
}

func (r *recordingRecorder) ToolFinished(tool string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, tool)
}

func (r *recordingRecorder) WorkflowFinished(status core.RunStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows = append(r.workflows, status)
}

func TestExecuteWorkflow_RecordsMetrics(t *testing.T) {
	rec := &recordingRecorder{}
	engine := NewEngine(newRegistry(t, testutil.NewMockTool("a"), testutil.NewMockTool("b").WithFailure("x")), WithRecorder(rec))

	_, _ = engine.ExecuteWorkflow(context.Background(), "job", newInput(t), testutil.NewTestPlan([]string{"a", "b"}))

	if len(rec.tools) != 2 || len(rec.workflows) != 1 || rec.workflows[0] != core.RunFailed {
		t.Errorf("recorder = %+v", rec)
	}
}

// Brightness then contrast through the real tool implementations, with
// ffmpeg replaced by a runner that writes the requested output file.
func TestExecuteWorkflow_BrightnessThenContrast(t *testing.T) {
	dir := t.TempDir()
	input := testutil.TempVideo(t, dir, "clip.mp4")
	runner := testutil.NewMockRunner()
	runner.WithRunFunc(func(ctx context.Context, cmd process.Command) (*process.Result, error) {
		out := cmd.Args[len(cmd.Args)-1]
		return &process.Result{}, os.WriteFile(out, []byte("frames"), 0o600)
	})
	registry := tools.NewDefaultRegistry(tools.Env{Runner: runner, OutputDir: filepath.Join(dir, "out")})
	engine := NewEngine(registry)

	plan := &core.WorkflowPlan{
		Reasoning: "brighten then add contrast",
		ToolSequence: []core.ToolPlan{
			{ToolName: "adjust_brightness", Parameters: core.Params{"brightness": 20}},
			{ToolName: "adjust_contrast", Parameters: core.Params{"contrast": 1.2}},
		},
		EstimatedTime:   10,
		ComplexityScore: 1,
	}
	exec, err := engine.ExecuteWorkflow(context.Background(), "job", input, plan)
	if err != nil {
		t.Fatal(err)
	}
	if !exec.Success || len(exec.ExecutedTools) != 2 {
		t.Fatalf("exec = %+v", exec)
	}
	first, second := exec.ExecutedTools[0], exec.ExecutedTools[1]
	if second.InputPath != first.OutputPath {
		t.Errorf("second input = %q, want %q", second.InputPath, first.OutputPath)
	}
	wantFinal := filepath.Join(dir, "out", "clip_adjust_brightness_adjust_contrast.mp4")
	if exec.FinalOutput() != wantFinal {
		t.Errorf("FinalOutput() = %q, want %q", exec.FinalOutput(), wantFinal)
	}
	sum := first.ExecutionTime + second.ExecutionTime
	if exec.TotalExecutionTime < sum {
		t.Errorf("total %v < sum of steps %v", exec.TotalExecutionTime, sum)
	}
	calls := runner.Calls()
	if len(calls) != 2 || !containsArg(calls[0].Args, "eq=brightness=0.2") || !containsArg(calls[1].Args, "eq=contrast=1.2") {
		t.Errorf("ffmpeg calls = %+v", calls)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
