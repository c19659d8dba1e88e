// Package jobs owns the lifecycle of video processing jobs: uploads become
// pending jobs, a prompt turns a job into a planned workflow run, and the
// outcome of the run is persisted back onto the job.
package jobs

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/storage"
)

// Planner produces and screens workflow plans.
type Planner interface {
	Analyze(ctx context.Context, prompt string, meta *core.VideoMetadata) (*core.WorkflowPlan, error)
	Validate(plan *core.WorkflowPlan) []string
}

// Engine runs workflow plans.
type Engine interface {
	ExecuteWorkflow(ctx context.Context, jobID, inputPath string, plan *core.WorkflowPlan) (*core.WorkflowExecution, error)
	GetStatus(jobID string) *core.RunSnapshot
	Cancel(jobID string) bool
	Cleanup(jobID string)
}

// Files stores uploads and removes job files.
type Files interface {
	SaveUpload(jobID, filename string, r io.Reader) (*storage.Upload, error)
	DeleteJobFiles(jobID string) ([]string, error)
}

// Recorder receives job level measurements.
type Recorder interface {
	RunStarted()
	RunEnded()
	SetJobCounts(counts map[core.JobStatus]int)
	UploadAccepted(size int64)
	PlannerRequest(err error, d time.Duration)
}

// Config bounds job execution.
type Config struct {
	// MaxConcurrent is the number of workflows allowed to run at once.
	// Further runs wait in line.
	MaxConcurrent int
	// Timeout is the wall-clock budget of one run, queueing excluded.
	// Zero disables the watchdog.
	Timeout time.Duration
}

// CreateRequest describes a new upload.
type CreateRequest struct {
	Filename string
	Body     io.Reader
	Prompt   string
}

// Stats summarizes every stored job.
type Stats struct {
	TotalJobs             int                    `json:"total_jobs"`
	StatusCounts          map[core.JobStatus]int `json:"status_counts"`
	ActiveRuns            int                    `json:"active_runs"`
	AverageProcessingTime float64                `json:"average_processing_time"`
	TotalVideosProcessed  int                    `json:"total_videos_processed"`
	TotalFileSize         int64                  `json:"total_file_size"`
}

// Service coordinates the job store, planner, engine and file manager.
type Service struct {
	store    core.JobStore
	planner  Planner
	engine   Engine
	files    Files
	prober   core.MediaProber
	bus      events.Publisher
	recorder Recorder
	logger   *logging.Logger
	cfg      Config
	newID    func() string
	now      func() time.Time

	sem *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[string]*activeRun
}

// Option configures a Service.
type Option func(*Service)

// WithProber extracts video metadata on upload.
func WithProber(p core.MediaProber) Option {
	return func(s *Service) { s.prober = p }
}

// WithEventPublisher publishes job events to p.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Service) { s.bus = p }
}

// WithRecorder reports job metrics to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a job service.
func New(store core.JobStore, planner Planner, engine Engine, files Files, cfg Config, opts ...Option) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		store:   store,
		planner: planner,
		engine:  engine,
		files:   files,
		logger:  logging.NewNop(),
		cfg:     cfg,
		newID:   uuid.NewString,
		now:     time.Now,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		baseCtx: ctx,
		stop:    stop,
		active:  make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("jobs")
	return s
}

// Create saves the upload and records a pending job.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*core.JobInfo, error) {
	if req.Body == nil {
		return nil, core.ErrValidation("EMPTY_FILE", "no file provided")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, core.ErrValidation("MISSING_FILENAME", "filename is required")
	}

	id := s.newID()
	logger := s.logger.WithJob(id)

	upload, err := s.files.SaveUpload(id, req.Filename, req.Body)
	if err != nil {
		return nil, err
	}

	var meta *core.VideoMetadata
	if s.prober != nil {
		meta, err = s.prober.Probe(ctx, upload.Path)
		if err != nil {
			logger.Warn("rejecting unreadable upload", "filename", req.Filename, "error", err)
			s.discardFiles(id)
			return nil, err
		}
	}

	now := s.now()
	job := &core.JobInfo{
		ID:               id,
		Status:           core.JobPending,
		Prompt:           strings.TrimSpace(req.Prompt),
		OriginalFilename: filepath.Base(req.Filename),
		InputPath:        upload.Path,
		Metadata:         meta,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.discardFiles(id)
		return nil, err
	}

	logger.Info("job created", "filename", job.OriginalFilename, "size", upload.Size)
	if s.recorder != nil {
		s.recorder.UploadAccepted(upload.Size)
	}
	s.publish(events.NewJobCreatedEvent(id, job.OriginalFilename))
	s.refreshCounts(ctx)
	return job, nil
}

// Get returns the job record.
func (s *Service) Get(ctx context.Context, id string) (*core.JobInfo, error) {
	return s.store.Get(ctx, id)
}

// List returns jobs newest first and the total number matching filter.
func (s *Service) List(ctx context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, core.ErrValidation("INVALID_STATUS", "unknown job status: "+string(filter.Status))
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, filter)
}

// Delete removes a job and its files. Processing jobs must be cancelled
// first.
func (s *Service) Delete(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == core.JobProcessing || s.isActive(id) {
		return core.ErrState(core.CodeInvalidState, "cannot delete job while processing; cancel the job first")
	}

	s.engine.Cleanup(id)
	removed, err := s.files.DeleteJobFiles(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithJob(id).Info("job deleted", "files", len(removed))
	s.refreshCounts(ctx)
	return nil
}

// Stats aggregates all stored jobs.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	jobs, total, err := s.store.List(ctx, core.JobFilter{})
	if err != nil {
		return nil, err
	}
	st := &Stats{
		TotalJobs:    total,
		StatusCounts: make(map[core.JobStatus]int, len(core.AllJobStatuses)),
		ActiveRuns:   len(s.ActiveJobs()),
	}
	var processing float64
	var timed int
	for _, job := range jobs {
		st.StatusCounts[job.Status]++
		if job.Metadata != nil {
			st.TotalFileSize += job.Metadata.SizeBytes
		}
		if job.Status == core.JobCompleted && job.Execution != nil {
			processing += job.Execution.TotalExecutionTime
			timed++
		}
	}
	if timed > 0 {
		st.AverageProcessingTime = processing / float64(timed)
	}
	st.TotalVideosProcessed = st.StatusCounts[core.JobCompleted]
	return st, nil
}

// ActiveJobs returns the ids of jobs queued or running in this process.
func (s *Service) ActiveJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// OwnsActiveFile reports whether path belongs to a queued or running job.
// It is used to keep the cleanup scheduler away from files in use.
func (s *Service) OwnsActiveFile(path string) bool {
	base := filepath.Base(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.active {
		if strings.HasPrefix(base, id+"_") {
			return true
		}
	}
	return false
}

func (s *Service) isActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

func (s *Service) discardFiles(id string) {
	if _, err := s.files.DeleteJobFiles(id); err != nil {
		s.logger.WithJob(id).Warn("failed to remove upload", "error", err)
	}
}

func (s *Service) refreshCounts(ctx context.Context) {
	if s.recorder == nil {
		return
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.Debug("counting jobs failed", "error", err)
		return
	}
	s.recorder.SetJobCounts(counts)
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
