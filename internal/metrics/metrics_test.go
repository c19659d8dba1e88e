package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/visualix/visualix/internal/core"
)

func TestMetrics_ToolAndWorkflow(t *testing.T) {
	m := New()
	m.ToolFinished("adjust_brightness", true, 2*time.Second)
	m.ToolFinished("adjust_brightness", false, time.Second)
	m.ToolFinished("apply_blur", true, time.Second)
	m.WorkflowFinished(core.RunCompleted, 3*time.Second)

	if got := testutil.ToFloat64(m.toolRuns.WithLabelValues("adjust_brightness", "success")); got != 1 {
		t.Errorf("brightness success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.toolRuns.WithLabelValues("adjust_brightness", "failed")); got != 1 {
		t.Errorf("brightness failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.workflowRuns.WithLabelValues("completed")); got != 1 {
		t.Errorf("workflow completed = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.toolDuration); n != 2 {
		t.Errorf("tool duration series = %d, want 2", n)
	}
}

func TestMetrics_JobCountsAndPlanner(t *testing.T) {
	m := New()
	m.SetJobCounts(map[core.JobStatus]int{core.JobPending: 2, core.JobCompleted: 5})
	if got := testutil.ToFloat64(m.jobsByStatus.WithLabelValues("completed")); got != 5 {
		t.Errorf("completed gauge = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.jobsByStatus.WithLabelValues("failed")); got != 0 {
		t.Errorf("failed gauge = %v, want 0", got)
	}

	m.PlannerRequest(nil, time.Second)
	m.PlannerRequest(core.ErrRateLimit("slow down"), time.Second)
	m.PlannerRequest(errors.New("plain"), time.Second)
	if got := testutil.ToFloat64(m.plannerRequests.WithLabelValues("rate_limit")); got != 1 {
		t.Errorf("rate_limit = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.plannerRequests.WithLabelValues("internal")); got != 1 {
		t.Errorf("internal = %v, want 1", got)
	}

	m.RunStarted()
	m.RunStarted()
	m.RunEnded()
	if got := testutil.ToFloat64(m.activeRuns); got != 1 {
		t.Errorf("active runs = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.UploadAccepted(1024)
	m.CleanupRan(3, 4096)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"visualix_storage_upload_bytes_total 1024",
		"visualix_storage_cleanup_files_total 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
