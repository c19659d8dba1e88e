package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewJobCreatedEvent("job-1", "clip.mp4"))

	select {
	case received := <-ch:
		if received.EventType() != TypeJobCreated {
			t.Errorf("expected %s, got %s", TypeJobCreated, received.EventType())
		}
		if received.JobID() != "job-1" {
			t.Errorf("expected job-1, got %s", received.JobID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEventBus_SubscribeByType(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	toolCh := bus.Subscribe(TypeToolStarted, TypeToolCompleted)
	allCh := bus.Subscribe()

	bus.Publish(NewWorkflowStartedEvent("job-1", []string{"apply_blur"}))
	bus.Publish(NewToolStartedEvent("job-1", "apply_blur", 0, "/in.mp4"))

	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("allCh missing event %d", i)
		}
	}

	select {
	case received := <-toolCh:
		if received.EventType() != TypeToolStarted {
			t.Errorf("expected tool_started, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("toolCh should receive tool event")
	}
	select {
	case e := <-toolCh:
		t.Errorf("unexpected event %s", e.EventType())
	default:
	}
}

func TestEventBus_SubscribeJob(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.SubscribeJob("job-2")
	bus.Publish(NewJobFailedEvent("job-1", "boom"))
	bus.Publish(NewJobFailedEvent("job-2", "boom"))

	select {
	case e := <-ch:
		if e.JobID() != "job-2" {
			t.Errorf("received event for %s", e.JobID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for job-2 event")
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected extra event for %s", e.JobID())
	default:
	}
}

func TestEventBus_RingBufferDrops(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	ch := bus.Subscribe()
	for i := 0; i < 20; i++ {
		bus.Publish(NewWorkflowProgressEvent("job-1", i, i, 20))
	}

	if bus.DroppedCount() != 15 {
		t.Errorf("DroppedCount() = %d, want 15", bus.DroppedCount())
	}
	first := (<-ch).(WorkflowProgressEvent)
	if first.Progress != 15 {
		t.Errorf("oldest retained progress = %d, want 15", first.Progress)
	}
}

func TestEventBus_PriorityNeverDrops(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	priorityCh := bus.SubscribePriority()
	for i := 0; i < 100; i++ {
		bus.Publish(NewWorkflowProgressEvent("job-1", 1, 1, 100))
	}
	bus.PublishPriority(NewJobFailedEvent("job-1", "tool crashed"))

	select {
	case e := <-priorityCh:
		if e.EventType() != TypeJobFailed {
			t.Errorf("expected job_failed, got %s", e.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("priority event not delivered")
	}
}

func TestEventBus_UnsubscribeAndClose(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	other := bus.Subscribe()
	bus.Close()
	bus.Close()
	if _, ok := <-other; ok {
		t.Error("channel should be closed after Close")
	}
	bus.Publish(NewJobCreatedEvent("job", "x"))

	late := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := New(1000)
	defer bus.Close()
	ch := bus.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(NewWorkflowProgressEvent("job", j, j, 50))
			}
		}()
	}
	wg.Wait()

	if got := len(ch); got != 500 {
		t.Errorf("received %d events, want 500", got)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (r *recordingPublisher) Publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func TestForwarder_Run(t *testing.T) {
	bus := New(10)
	defer bus.Close()
	pub := &recordingPublisher{}
	fwd := NewForwarder(bus, pub, "vx", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	// Wait for the forwarder's subscription before publishing.
	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.RLock()
		n := len(bus.subscribers)
		bus.mu.RUnlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(NewToolCompletedEvent("job.1", "apply_sepia", 0, "/out/a.mp4", 1.5))

	deadline = time.Now().Add(time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if pub.count() != 1 {
		t.Fatalf("published %d messages, want 1", pub.count())
	}
	if pub.subjects[0] != "vx.tool_completed.job_1" {
		t.Errorf("subject = %q", pub.subjects[0])
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["tool"] != "apply_sepia" || decoded["job_id"] != "job.1" {
		t.Errorf("payload = %v", decoded)
	}
}
