package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/process"
)

// fakeFFmpeg writes a small file at the output path (last argument).
type fakeFFmpeg struct {
	mu    sync.Mutex
	calls []process.Command
	err   error
	empty bool
}

func (f *fakeFFmpeg) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if f.err != nil {
		return &process.Result{ExitCode: 1}, f.err
	}
	out := cmd.Args[len(cmd.Args)-1]
	data := []byte("frames")
	if f.empty {
		data = nil
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return nil, err
	}
	return &process.Result{}, nil
}

func newInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("video"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFilterTool_Execute(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	input := newInput(t, dir, "clip.mp4")
	runner := &fakeFFmpeg{}

	r := NewDefaultRegistry(Env{Runner: runner, OutputDir: outDir, FFmpegPath: "/usr/bin/ffmpeg"})
	factory, _ := r.Lookup("adjust_brightness")

	res, err := factory().Execute(context.Background(), input, core.Params{"brightness": 20})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %q", res.ErrorMessage)
	}
	want := filepath.Join(outDir, "clip_adjust_brightness.mp4")
	if res.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, want)
	}
	if len(runner.calls) != 1 || runner.calls[0].Path != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected calls: %+v", runner.calls)
	}
	args := runner.calls[0].Args
	found := false
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) && args[i+1] == "eq=brightness=0.2" {
			found = true
		}
	}
	if !found {
		t.Errorf("filter not passed to ffmpeg: %v", args)
	}
}

func TestFilterTool_ExecuteFailures(t *testing.T) {
	dir := t.TempDir()
	input := newInput(t, dir, "clip.mov")

	t.Run("missing input", func(t *testing.T) {
		tool := NewDefaultRegistry(Env{Runner: &fakeFFmpeg{}, OutputDir: dir})
		f, _ := tool.Lookup("apply_blur")
		_, err := f().Execute(context.Background(), filepath.Join(dir, "nope.mp4"), nil)
		if !core.HasCode(err, core.CodeStorageFailure) {
			t.Errorf("expected STORAGE_FAILURE, got %v", err)
		}
	})

	t.Run("invalid parameter", func(t *testing.T) {
		runner := &fakeFFmpeg{}
		f, _ := NewDefaultRegistry(Env{Runner: runner, OutputDir: dir}).Lookup("apply_blur")
		_, err := f().Execute(context.Background(), input, core.Params{"strength": 0})
		if !core.HasCode(err, core.CodeInvalidParameter) {
			t.Errorf("expected INVALID_PARAMETER, got %v", err)
		}
		if len(runner.calls) != 0 {
			t.Error("ffmpeg must not run with invalid parameters")
		}
	})

	t.Run("ffmpeg failure", func(t *testing.T) {
		runner := &fakeFFmpeg{err: errors.New("exit status 1")}
		f, _ := NewDefaultRegistry(Env{Runner: runner, OutputDir: dir}).Lookup("apply_blur")
		res, err := f().Execute(context.Background(), input, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Success || res.ErrorMessage == "" {
			t.Errorf("expected failed result, got %+v", res)
		}
	})

	t.Run("empty output", func(t *testing.T) {
		runner := &fakeFFmpeg{empty: true}
		f, _ := NewDefaultRegistry(Env{Runner: runner, OutputDir: dir}).Lookup("apply_blur")
		res, err := f().Execute(context.Background(), input, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Success {
			t.Error("empty output should fail")
		}
	})
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		dir   string
		input string
		tool  string
		want  string
	}{
		{"basic", "/out", "/up/clip.mp4", "apply_blur", "/out/clip_apply_blur.mp4"},
		{"chained", "/out", "/out/clip_apply_blur.mp4", "apply_sepia", "/out/clip_apply_blur_apply_sepia.mp4"},
		{"no extension", "/out", "/up/clip", "flip_video", "/out/clip_flip_video.mp4"},
		{"same tool twice", "/out", "/out/clip_apply_blur.mp4", "apply_blur", "/out/clip_apply_blur_apply_blur.mp4"},
		{"collision", "/out", "/out/a_x.mp4", "x", "/out/a_x_x.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.dir, tt.input, tt.tool); got != tt.want {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
