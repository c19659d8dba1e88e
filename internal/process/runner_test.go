//go:build !windows

package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/visualix/visualix/internal/core"
)

func TestExecRunner_Success(t *testing.T) {
	r := NewExecRunner(nil)
	res, err := r.Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo hello; echo warn >&2"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "warn" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestExecRunner_Stdin(t *testing.T) {
	r := NewExecRunner(nil)
	res, err := r.Run(context.Background(), Command{Path: "cat", Stdin: "piped"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "piped" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	r := NewExecRunner(nil)
	res, err := r.Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo 'Invalid filter' >&2; exit 3"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !core.IsCategory(err, core.ErrCatExecution) {
		t.Errorf("expected execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid filter") {
		t.Errorf("error should carry stderr: %v", err)
	}
}

func TestExecRunner_StorageClassification(t *testing.T) {
	r := NewExecRunner(nil)
	_, err := r.Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo '/x/out.mp4: No such file or directory' >&2; exit 1"}})
	if !core.HasCode(err, core.CodeStorageFailure) {
		t.Errorf("expected STORAGE_FAILURE, got %v", err)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	r := NewExecRunner(nil, WithGracePeriod(100*time.Millisecond))
	start := time.Now()
	_, err := r.Run(context.Background(), Command{Path: "sleep", Args: []string{"5"}, Timeout: 100 * time.Millisecond})
	if !core.IsCategory(err, core.ErrCatTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("process was not terminated promptly")
	}
}

func TestExecRunner_Cancelled(t *testing.T) {
	r := NewExecRunner(nil, WithGracePeriod(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, Command{Path: "sleep", Args: []string{"5"}})
	if !core.HasCode(err, core.CodeCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestExecRunner_Preflight(t *testing.T) {
	blocked := errors.New("disk full")
	r := NewExecRunner(nil, WithPreflight(func() error { return blocked }))
	if _, err := r.Run(context.Background(), Command{Path: "true"}); !errors.Is(err, blocked) {
		t.Fatalf("expected preflight error, got %v", err)
	}
}

func TestExecRunner_NoPath(t *testing.T) {
	if _, err := NewExecRunner(nil).Run(context.Background(), Command{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestTail(t *testing.T) {
	if got := Tail("abcdef", 3); got != "...def" {
		t.Errorf("Tail() = %q", got)
	}
	if got := Tail("ab", 3); got != "ab" {
		t.Errorf("Tail() = %q", got)
	}
}
