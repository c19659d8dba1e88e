package control

import (
	"sync"
	"testing"

	"github.com/visualix/visualix/internal/core"
)

func TestPlane_Transitions(t *testing.T) {
	cp := New()
	if cp.State() != Running {
		t.Fatalf("initial state = %v", cp.State())
	}
	if err := cp.CheckCancelled(); err != nil {
		t.Fatalf("CheckCancelled() = %v", err)
	}

	if !cp.Cancel() {
		t.Fatal("first Cancel() should transition")
	}
	if cp.Cancel() {
		t.Fatal("second Cancel() should not transition")
	}
	if !cp.IsCancelled() {
		t.Fatal("IsCancelled() = false")
	}
	if err := cp.CheckCancelled(); !core.HasCode(err, core.CodeCancelled) {
		t.Fatalf("CheckCancelled() = %v", err)
	}

	if prev := cp.Finish(); prev != CancelRequested {
		t.Errorf("Finish() left %v", prev)
	}
	if cp.Cancel() {
		t.Error("Cancel() after Finish must not transition")
	}
	if cp.State() != Terminal {
		t.Errorf("state = %v", cp.State())
	}
}

func TestPlane_ConcurrentCancelTransitionsOnce(t *testing.T) {
	cp := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cp.Cancel() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("transitions = %d, want 1", wins)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{Running: "running", CancelRequested: "cancel_requested", Terminal: "terminal", State(9): "unknown"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
