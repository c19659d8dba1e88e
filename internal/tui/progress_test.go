package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visualix/visualix/internal/events"
)

func feed(t *testing.T, m RunModel, evs ...events.Event) RunModel {
	t.Helper()
	for _, e := range evs {
		next, _ := m.Update(eventMsg{event: e})
		m = next.(RunModel)
	}
	return m
}

func TestRunModel_TracksSteps(t *testing.T) {
	m := NewRunModel("job-1", "uploads/job-1_clip.mp4", []string{"blur", "sharpen"}, nil, nil)
	m = feed(t, m,
		events.NewWorkflowStartedEvent("job-1", []string{"blur", "sharpen"}),
		events.NewToolStartedEvent("job-1", "blur", 0, "in.mp4"),
	)

	if got := m.Steps()[0].State; got != StepRunning {
		t.Fatalf("step 0 state = %v, want running", got)
	}
	if !strings.Contains(m.View(), "step 1 of 2") {
		t.Errorf("view missing step message:\n%s", m.View())
	}

	m = feed(t, m,
		events.NewToolCompletedEvent("job-1", "blur", 0, "out.mp4", 1.25),
		events.NewWorkflowProgressEvent("job-1", 50, 1, 2),
		events.NewToolStartedEvent("job-1", "sharpen", 1, "out.mp4"),
		events.NewToolFailedEvent("job-1", "sharpen", 1, "ffmpeg exited with status 1"),
	)
	steps := m.Steps()
	if steps[0].State != StepDone || steps[0].Seconds != 1.25 {
		t.Errorf("step 0 = %+v", steps[0])
	}
	if steps[1].State != StepFailed || steps[1].Error == "" {
		t.Errorf("step 1 = %+v", steps[1])
	}
	if m.percent != 0.5 {
		t.Errorf("percent = %v, want 0.5", m.percent)
	}
	if m.Outcome().Finished() {
		t.Error("outcome should not be finished before a job event")
	}
}

func TestRunModel_IgnoresOtherJobs(t *testing.T) {
	m := NewRunModel("job-1", "clip.mp4", []string{"blur"}, nil, nil)
	m = feed(t, m, events.NewToolStartedEvent("job-2", "blur", 0, "x"))
	if m.Steps()[0].State != StepPending {
		t.Errorf("foreign event changed state: %+v", m.Steps()[0])
	}
}

func TestRunModel_TerminalEvents(t *testing.T) {
	tests := []struct {
		name   string
		event  events.Event
		status string
	}{
		{"completed", events.NewJobCompletedEvent("job-1", "/out/job-1_clip_blur.mp4", 2), "completed"},
		{"failed", events.NewJobFailedEvent("job-1", "boom"), "failed"},
		{"cancelled", events.NewJobCancelledEvent("job-1", "cancelled by user"), "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRunModel("job-1", "clip.mp4", []string{"blur"}, nil, nil)
			next, cmd := m.Update(eventMsg{event: tt.event})
			m = next.(RunModel)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if got := m.Outcome().Status; got != tt.status {
				t.Errorf("status = %q, want %q", got, tt.status)
			}
		})
	}
}

func TestRunModel_CancelKeyCallsOnce(t *testing.T) {
	calls := 0
	m := NewRunModel("job-1", "clip.mp4", []string{"blur"}, nil, func() { calls++ })

	for i := 0; i < 3; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = next.(RunModel)
	}
	if calls != 1 {
		t.Errorf("onCancel called %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Errorf("view missing cancel message:\n%s", m.View())
	}
}

func TestRunModel_StreamClosed(t *testing.T) {
	ch := make(chan events.Event)
	close(ch)
	m := NewRunModel("job-1", "clip.mp4", nil, ch, nil)

	msg := waitForEvent(ch)()
	next, _ := m.Update(msg)
	if got := next.(RunModel).Outcome().Status; got != "unknown" {
		t.Errorf("status = %q, want unknown", got)
	}
}

func TestFollow_Plain(t *testing.T) {
	ch := make(chan events.Event, 8)
	ch <- events.NewToolStartedEvent("other", "blur", 0, "x")
	ch <- events.NewToolStartedEvent("job-1", "blur", 0, "x")
	ch <- events.NewToolCompletedEvent("job-1", "blur", 0, "y", 0.5)
	ch <- events.NewJobCompletedEvent("job-1", "/out.mp4", 0.5)

	var buf bytes.Buffer
	out := Follow(context.Background(), &buf, ModePlain, "job-1", ch)

	if out.Status != "completed" || out.OutputPath != "/out.mp4" {
		t.Errorf("outcome = %+v", out)
	}
	text := buf.String()
	if !strings.Contains(text, "[1] blur started") || !strings.Contains(text, "completed: /out.mp4") {
		t.Errorf("unexpected output:\n%s", text)
	}
	if strings.Count(text, "blur started") != 1 {
		t.Errorf("foreign job event printed:\n%s", text)
	}
}

func TestFollow_JSON(t *testing.T) {
	ch := make(chan events.Event, 2)
	ch <- events.NewJobFailedEvent("job-1", "tool failed")

	var buf bytes.Buffer
	out := Follow(context.Background(), &buf, ModeJSON, "job-1", ch)
	if out.Status != "failed" || out.Error != "tool failed" {
		t.Errorf("outcome = %+v", out)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded["type"] != events.TypeJobFailed {
		t.Errorf("type = %v", decoded["type"])
	}
}

func TestFollow_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := Follow(ctx, &bytes.Buffer{}, ModeQuiet, "job-1", make(chan events.Event))
	if out.Status != "unknown" || out.Error == "" {
		t.Errorf("outcome = %+v", out)
	}
}
