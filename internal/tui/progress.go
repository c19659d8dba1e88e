package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/visualix/visualix/internal/events"
)

// StepState is the display state of one plan step.
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepDone
	StepFailed
)

// Step is one tool of the plan as shown on screen.
type Step struct {
	Tool    string
	State   StepState
	Seconds float64
	Error   string
}

// Outcome is how a watched job ended.
type Outcome struct {
	JobID      string
	Status     string
	OutputPath string
	Error      string
	Duration   time.Duration
}

// Finished reports whether a terminal job event was seen.
func (o Outcome) Finished() bool {
	return o.Status != ""
}

type eventMsg struct{ event events.Event }

type streamClosedMsg struct{}

// waitForEvent blocks on the next bus event.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

// RunModel renders the progress of a single job run.
type RunModel struct {
	jobID    string
	input    string
	steps    []Step
	events   <-chan events.Event
	onCancel func()

	spinner    spinner.Model
	bar        progress.Model
	percent    float64
	status     string
	cancelling bool
	outcome    Outcome
	started    time.Time
}

// NewRunModel creates a progress view for jobID running tools in order.
// onCancel is called once when the user interrupts.
func NewRunModel(jobID, input string, tools []string, ch <-chan events.Event, onCancel func()) RunModel {
	steps := make([]Step, len(tools))
	for i, t := range tools {
		steps[i] = Step{Tool: t}
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = RunningStyle

	return RunModel{
		jobID:    jobID,
		input:    input,
		steps:    steps,
		events:   ch,
		onCancel: onCancel,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:   "Queued for processing",
		started:  time.Now(),
	}
}

// Outcome returns the terminal state seen so far.
func (m RunModel) Outcome() Outcome {
	return m.outcome
}

// Steps returns a copy of the step states.
func (m RunModel) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// Init starts the spinner and the event pump.
func (m RunModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles bus events, keys and animation frames.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.onCancel != nil {
				m.cancelling = true
				m.status = "Cancelling after the current step..."
				m.onCancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = clamp(msg.Width-20, 10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		if bar, ok := model.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case streamClosedMsg:
		if !m.outcome.Finished() {
			m.outcome = Outcome{JobID: m.jobID, Status: "unknown", Error: "event stream closed"}
		}
		return m, tea.Quit

	case eventMsg:
		cmd := m.apply(msg.event)
		if m.outcome.Finished() {
			return m, tea.Sequence(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, waitForEvent(m.events))
	}
	return m, nil
}

// apply folds one event into the model.
func (m *RunModel) apply(e events.Event) tea.Cmd {
	if e.JobID() != m.jobID {
		return nil
	}
	switch ev := e.(type) {
	case events.JobStatusChangedEvent:
		if ev.Message != "" && !m.cancelling {
			m.status = ev.Message
		}
	case events.WorkflowStartedEvent:
		if len(m.steps) == 0 {
			for _, t := range ev.Tools {
				m.steps = append(m.steps, Step{Tool: t})
			}
		}
		m.status = "Processing video..."
	case events.ToolStartedEvent:
		if s := m.step(ev.Index); s != nil {
			s.State = StepRunning
		}
		if !m.cancelling {
			m.status = fmt.Sprintf("Processing video (step %d of %d)...", ev.Index+1, len(m.steps))
		}
	case events.ToolCompletedEvent:
		if s := m.step(ev.Index); s != nil {
			s.State = StepDone
			s.Seconds = ev.Seconds
		}
	case events.ToolFailedEvent:
		if s := m.step(ev.Index); s != nil {
			s.State = StepFailed
			s.Error = ev.Error
		}
	case events.WorkflowProgressEvent:
		m.percent = float64(ev.Progress) / 100
		return m.bar.SetPercent(m.percent)
	case events.JobCompletedEvent:
		m.percent = 1
		m.status = "Video processing completed successfully"
		m.outcome = Outcome{JobID: m.jobID, Status: "completed", OutputPath: ev.OutputPath, Duration: time.Since(m.started)}
		return m.bar.SetPercent(1)
	case events.JobFailedEvent:
		m.status = "Processing failed: " + ev.Error
		m.outcome = Outcome{JobID: m.jobID, Status: "failed", Error: ev.Error, Duration: time.Since(m.started)}
	case events.JobCancelledEvent:
		m.status = "Job was cancelled"
		m.outcome = Outcome{JobID: m.jobID, Status: "cancelled", Error: ev.Reason, Duration: time.Since(m.started)}
	}
	return nil
}

func (m *RunModel) step(i int) *Step {
	if i < 0 || i >= len(m.steps) {
		return nil
	}
	return &m.steps[i]
}

// View renders the run.
func (m RunModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("visualix • " + filepath.Base(m.input)))
	b.WriteString("\n")

	for i, s := range m.steps {
		b.WriteString(renderStep(i, s, m.spinner.View()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n")

	switch m.outcome.Status {
	case "completed":
		b.WriteString(CompletedStyle.Render("✓ " + m.status))
		b.WriteString("\n" + MutedStyle.Render(m.outcome.OutputPath))
	case "failed":
		b.WriteString(FailedStyle.Render("✗ " + m.status))
	case "cancelled":
		b.WriteString(SkippedStyle.Render("○ " + m.status))
	default:
		b.WriteString(m.spinner.View() + " " + m.status)
		b.WriteString("\n" + FooterStyle.Render("q / ctrl+c to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func renderStep(i int, s Step, spin string) string {
	label := fmt.Sprintf("%d. %s", i+1, s.Tool)
	switch s.State {
	case StepRunning:
		return TaskStyle.Render(spin + " " + RunningStyle.Render(label))
	case StepDone:
		return TaskStyle.Render(CompletedStyle.Render("✓ "+label) + MutedStyle.Render(fmt.Sprintf(" %.1fs", s.Seconds)))
	case StepFailed:
		return TaskStyle.Render(FailedStyle.Render("✗ "+label) + " " + ErrorTextStyle.Render(s.Error))
	default:
		return TaskStyle.Render(PendingStyle.Render("· " + label))
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunProgress shows m until the job ends or ctx is done.
func RunProgress(ctx context.Context, m RunModel, opts ...tea.ProgramOption) (Outcome, error) {
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Outcome{}, err
	}
	if rm, ok := final.(RunModel); ok {
		return rm.Outcome(), nil
	}
	return m.Outcome(), nil
}
