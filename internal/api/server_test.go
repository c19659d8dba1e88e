package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
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
	"github.com/visualix/visualix/internal/service/jobs"
	"github.com/visualix/visualix/internal/storage"
	"github.com/visualix/visualix/internal/testutil"
)

type fakeJobs struct {
	mu       sync.Mutex
	store    *testutil.MemoryJobStore
	uploaded []byte
	plan     *core.WorkflowPlan
	warnings []string
	err      error
	report   *jobs.StatusReport
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{store: testutil.NewMemoryJobStore()}
}

func (f *fakeJobs) Create(ctx context.Context, req jobs.CreateRequest) (*core.JobInfo, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploaded = data
	f.mu.Unlock()
	job := testutil.NewTestJob("job-new", func(j *core.JobInfo) {
		j.OriginalFilename = req.Filename
		j.Prompt = req.Prompt
	})
	return job, f.store.Create(ctx, job)
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*core.JobInfo, error) {
	return f.store.Get(ctx, id)
}

func (f *fakeJobs) List(ctx context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error) {
	return f.store.List(ctx, filter)
}

func (f *fakeJobs) Delete(ctx context.Context, id string) error {
	if _, err := f.store.Get(ctx, id); err != nil {
		return err
	}
	return f.store.Delete(ctx, id)
}

func (f *fakeJobs) Stats(context.Context) (*jobs.Stats, error) {
	return &jobs.Stats{TotalJobs: 3, StatusCounts: map[core.JobStatus]int{core.JobCompleted: 3}}, nil
}

func (f *fakeJobs) Analyze(_ context.Context, prompt string, _ *core.VideoMetadata) (*core.WorkflowPlan, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, nil, core.ErrValidation(core.CodeEmptyPrompt, "prompt cannot be empty")
	}
	return f.plan, f.warnings, nil
}

func (f *fakeJobs) Process(ctx context.Context, id, _ string) (*jobs.ProcessResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	job, err := f.store.SetStatus(ctx, id, core.JobUpdate{Status: core.JobProcessing})
	if err != nil {
		return nil, err
	}
	return &jobs.ProcessResult{Job: job, Plan: f.plan, Warnings: f.warnings}, nil
}

func (f *fakeJobs) Cancel(ctx context.Context, id string) (*jobs.CancelResult, error) {
	job, err := f.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Cancellable() {
		return nil, core.ErrState(core.CodeInvalidState, "cannot cancel job with status: "+string(job.Status))
	}
	return &jobs.CancelResult{JobID: id, PreviousStatus: job.Status, Message: "Job cancelled successfully"}, nil
}

func (f *fakeJobs) Status(ctx context.Context, id string) (*jobs.StatusReport, error) {
	if f.report != nil {
		return f.report, nil
	}
	job, err := f.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &jobs.StatusReport{JobID: id, Status: job.Status, Progress: job.Progress, OutputPath: job.OutputPath}, nil
}

type fakePlanner struct{}

func (fakePlanner) Explain(_ context.Context, plan *core.WorkflowPlan) string {
	return "This workflow runs " + strings.Join(plan.ToolNames(), ", ")
}

func (fakePlanner) Validate(plan *core.WorkflowPlan) []string {
	if plan.IsEmpty() {
		return []string{"Workflow has no tools selected"}
	}
	return nil
}

func (fakePlanner) Available() bool { return true }

type fakeCatalog struct{}

func (fakeCatalog) DescribeAll() map[string]core.ToolDescriptor {
	return map[string]core.ToolDescriptor{
		"blur":              {Name: "blur", Category: "filter", Description: "Blur the video"},
		"adjust_brightness": {Name: "adjust_brightness", Category: "color", Description: "Brightness"},
	}
}

func (fakeCatalog) ByCategory() map[string][]string {
	return map[string][]string{"filter": {"blur"}, "color": {"adjust_brightness"}}
}

type fakeFiles struct{ dir string }

func (f fakeFiles) AllowedFormats() []string      { return []string{".mp4", ".mov"} }
func (f fakeFiles) MaxFileSize() int64            { return 500 * 1024 * 1024 }
func (f fakeFiles) Dirs() []string                { return []string{f.dir} }
func (f fakeFiles) Stats() (storage.Stats, error) { return storage.Stats{TotalFiles: 2}, nil }

type fakeCleaner struct{ runs int }

func (c *fakeCleaner) RunOnce(context.Context) storage.CleanupResult {
	c.runs++
	return storage.CleanupResult{FilesDeleted: 4}
}

func (c *fakeCleaner) Stats() storage.CleanupStats { return storage.CleanupStats{Runs: c.runs} }

func newTestServer(t *testing.T) (*Server, *fakeJobs, *events.EventBus) {
	t.Helper()
	fj := newFakeJobs()
	fj.plan = testutil.NewTestPlan([]string{"blur"})
	bus := events.New(16)
	t.Cleanup(bus.Close)
	srv := NewServer(Deps{
		Jobs:    fj,
		Planner: fakePlanner{},
		Tools:   fakeCatalog{},
		Files:   fakeFiles{dir: t.TempDir()},
		Cleaner: &fakeCleaner{},
		Bus:     bus,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "visualix_jobs 1\n")
		}),
	}, WithVersion("test"))
	return srv, fj, bus
}

func do(t *testing.T, srv *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, srv *Server, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return do(t, srv, method, path, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, true, body["planner_enabled"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "visualix_jobs")
}

func TestUpload(t *testing.T) {
	srv, fj, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "make it brighter"))
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("video-bytes"))
	require.NoError(t, mw.Close())

	rec := do(t, srv, http.MethodPost, "/api/v1/videos", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, "job-new", resp.JobID)
	assert.Equal(t, "clip.mp4", resp.Filename)
	assert.Equal(t, core.JobPending, resp.Status)
	assert.Equal(t, "video-bytes", string(fj.uploaded))

	job, err := fj.store.Get(context.Background(), "job-new")
	require.NoError(t, err)
	assert.Equal(t, "make it brighter", job.Prompt)
}

func TestUpload_NoFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "x"))
	require.NoError(t, mw.Close())

	rec := do(t, srv, http.MethodPost, "/api/v1/videos", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/videos", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob(id, func(j *core.JobInfo) {
			j.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		})))
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/jobs?limit=2&offset=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[JobListResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.PageSize)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "a", resp.Jobs[0].ID)

	for _, q := range []string{"limit=0", "limit=101", "limit=x", "offset=-1"} {
		rec = do(t, srv, http.MethodGet, "/api/v1/jobs?"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/jobs/missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
	assert.NotEmpty(t, body.Code)
}

func TestJobStatus_OutputURL(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("done", func(j *core.JobInfo) {
		j.Status = core.JobCompleted
		j.OutputPath = "/tmp/done_processed.mp4"
		j.Progress = 100
	})))

	rec := do(t, srv, http.MethodGet, "/api/v1/jobs/done/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "/api/v1/jobs/done/result", body["output_url"])
	assert.Equal(t, "completed", body["status"])
	assert.NotContains(t, body, "OutputPath")
}

func TestProcessAndCancel(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	fj.warnings = []string{"careful"}
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1")))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/j1/process", ProcessRequest{Prompt: "blur"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[ProcessResponse](t, rec)
	assert.Equal(t, core.JobProcessing, resp.Status)
	assert.Equal(t, []string{"blur"}, resp.Plan.ToolNames())
	assert.Equal(t, []string{"careful"}, resp.Warnings)

	rec = do(t, srv, http.MethodPost, "/api/v1/jobs/j1/cancel", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := fj.store.SetStatus(context.Background(), "j1", core.JobUpdate{Status: core.JobCompleted})
	require.NoError(t, err)
	rec = do(t, srv, http.MethodPost, "/api/v1/jobs/j1/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcess_EmptyPlan(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	fj.err = core.ErrValidation(core.CodeEmptyPlan, "no tools could be planned")
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1")))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/j1/process", ProcessRequest{Prompt: "???"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeEmptyPlan, decode[errorResponse](t, rec).Code)
}

func TestProcess_RejectsUnknownFields(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1")))
	rec := do(t, srv, http.MethodPost, "/api/v1/jobs/j1/process", strings.NewReader(`{"promt":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlans(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/plans/analyze", AnalyzeRequest{Prompt: "blur it"})
	require.Equal(t, http.StatusOK, rec.Code)
	analyzed := decode[PlanResponse](t, rec)
	assert.Equal(t, []string{"blur"}, analyzed.Plan.ToolNames())
	assert.NotNil(t, analyzed.Warnings)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/plans/analyze", AnalyzeRequest{Prompt: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/plans/explain", PlanRequest{Plan: analyzed.Plan})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[PlanResponse](t, rec).Explanation, "blur")

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/plans/validate", PlanRequest{Plan: &core.WorkflowPlan{}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, false, body["valid"])

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/plans/validate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_PlannerUnavailable(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	fj.err = core.ErrExecution(core.CodeAgentUnavailable, "no planner backend configured")
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/plans/analyze", AnalyzeRequest{Prompt: "blur"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestToolsFormatsStatsCleanup(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/tools", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tools struct {
		Tools []ToolInfo `json:"tools"`
		Total int        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	assert.Equal(t, 2, tools.Total)
	assert.Equal(t, "adjust_brightness", tools.Tools[0].Name)
	assert.Equal(t, "color", tools.Tools[0].Category)

	rec = do(t, srv, http.MethodGet, "/api/v1/formats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".mov")

	rec = do(t, srv, http.MethodGet, "/api/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_jobs":3`)

	rec = do(t, srv, http.MethodPost, "/api/v1/cleanup", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"files_deleted":4`)

	rec = do(t, srv, http.MethodGet, "/api/v1/system", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResultDownload(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	out := filepath.Join(t.TempDir(), "j1_processed.mp4")
	require.NoError(t, os.WriteFile(out, []byte("rendered"), 0o600))
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1", func(j *core.JobInfo) {
		j.Status = core.JobCompleted
		j.OutputPath = out
	})))
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j2")))

	rec := do(t, srv, http.MethodGet, "/api/v1/jobs/j1/result", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rendered", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="processed_clip.mp4"`)

	rec = do(t, srv, http.MethodGet, "/api/v1/jobs/j2/result", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1")))

	rec := do(t, srv, http.MethodDelete, "/api/v1/jobs/j1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/api/v1/jobs/j1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobEvents_TerminalJobClosesStream(t *testing.T) {
	srv, fj, _ := newTestServer(t)
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1", func(j *core.JobInfo) {
		j.Status = core.JobFailed
	})))

	rec := do(t, srv, http.MethodGet, "/api/v1/jobs/j1/events", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: status\n")
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
}

func TestJobEvents_StreamsUntilTerminal(t *testing.T) {
	srv, fj, bus := newTestServer(t)
	require.NoError(t, fj.store.Create(context.Background(), testutil.NewTestJob("j1", func(j *core.JobInfo) {
		j.Status = core.JobProcessing
	})))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/jobs/j1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The first frame is written after subscribing.
	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "event: status")

	bus.Publish(events.NewJobStatusChangedEvent("other", "processing", 10, ""))
	bus.Publish(events.NewWorkflowProgressEvent("j1", 50, 1, 2))
	bus.Publish(events.NewJobCompletedEvent("j1", "/out.mp4", 1.5))

	rest, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(rest)
	assert.Contains(t, body, "event: "+events.TypeJobCompleted)
	assert.NotContains(t, body, `"job_id":"other"`)
}

func TestHTTPStatusForDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrValidation(core.CodeEmptyPrompt, "x"), http.StatusBadRequest},
		{core.ErrValidation(core.CodeFileTooLarge, "x"), http.StatusRequestEntityTooLarge},
		{core.ErrNotFound("job", "x"), http.StatusNotFound},
		{core.ErrConflict(core.CodeRunActive, "x"), http.StatusConflict},
		{core.ErrState(core.CodeInvalidState, "x"), http.StatusConflict},
		{core.ErrRateLimit("x"), http.StatusTooManyRequests},
		{core.ErrTimeout("x"), http.StatusGatewayTimeout},
		{core.ErrExecution(core.CodeMalformedPlan, "x"), http.StatusBadGateway},
		{core.ErrStorage("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, ok := httpStatusForDomainError(tt.err)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
	_, ok := httpStatusForDomainError(io.EOF)
	assert.False(t, ok)
}
