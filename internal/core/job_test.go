package core

import (
	"testing"
	"time"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		status      JobStatus
		terminal    bool
		cancellable bool
	}{
		{JobPending, false, true},
		{JobProcessing, false, true},
		{JobCompleted, true, false},
		{JobFailed, true, false},
		{JobCancelled, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Error("expected valid status")
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.Cancellable(); got != tt.cancellable {
				t.Errorf("Cancellable() = %v, want %v", got, tt.cancellable)
			}
		})
	}
	if JobStatus("bogus").Valid() {
		t.Error("unexpected valid status")
	}
}

func TestJobInfo_Apply(t *testing.T) {
	job := &JobInfo{ID: "j1", Status: JobPending, Error: "keep"}
	now := time.Now()
	job.Apply(JobUpdate{Status: JobProcessing, Progress: IntPtr(40)}, now)

	if job.Status != JobProcessing || job.Progress != 40 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Error != "keep" {
		t.Errorf("unset field was overwritten: %q", job.Error)
	}
	if !job.UpdatedAt.Equal(now) {
		t.Error("UpdatedAt not bumped")
	}
}

func TestWorkflowExecution_FinalOutputAndFailure(t *testing.T) {
	exec := &WorkflowExecution{
		ExecutedTools: []ToolExecution{
			{ToolName: "a", Status: ExecutionSuccess, OutputPath: "/out/a.mp4"},
			{ToolName: "b", Status: ExecutionSuccess, OutputPath: "/out/b.mp4"},
			{ToolName: "c", Status: ExecutionFailed, Error: "boom"},
		},
	}
	if got := exec.FinalOutput(); got != "/out/b.mp4" {
		t.Errorf("FinalOutput() = %q", got)
	}
	if got := exec.FailureReason(); got != "boom" {
		t.Errorf("FailureReason() = %q", got)
	}

	var nilExec *WorkflowExecution
	if nilExec.FinalOutput() != "" || nilExec.FailureReason() != "" {
		t.Error("nil execution should be empty")
	}
}

func TestWorkflowPlan_ToolNames(t *testing.T) {
	plan := &WorkflowPlan{ToolSequence: []ToolPlan{{ToolName: "x"}, {ToolName: "y"}}}
	names := plan.ToolNames()
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Fatalf("ToolNames() = %v", names)
	}
	if !(&WorkflowPlan{}).IsEmpty() {
		t.Error("expected empty plan")
	}
}
