// Package watch turns a directory into a hot folder: every video dropped
// into it is uploaded as a job and processed with the prompt found next to
// it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/service/jobs"
	"github.com/visualix/visualix/internal/storage"
)

// PromptSuffix names the sidecar file holding the prompt for a video:
// "clip.mp4" is paired with "clip.prompt.txt".
const PromptSuffix = ".prompt.txt"

const defaultSettle = 500 * time.Millisecond

// Submitter receives the videos found in the folder.
type Submitter interface {
	Create(ctx context.Context, req jobs.CreateRequest) (*core.JobInfo, error)
	Process(ctx context.Context, id, prompt string) (*jobs.ProcessResult, error)
}

// FormatChecker rejects files the job service would refuse anyway.
type FormatChecker interface {
	CheckFormat(filename string) error
}

// Config configures a Watcher.
type Config struct {
	Dir string
	// Prompt is used for videos without a sidecar. Such videos are skipped
	// when it is empty.
	Prompt string
	// Settle is how long a file must stay quiet before it is picked up.
	Settle time.Duration
	// ScanExisting submits the videos already present at start.
	ScanExisting bool
}

// Submission records what happened to one video.
type Submission struct {
	Path  string
	JobID string
	Err   error
}

// Watcher submits videos dropped into a directory.
type Watcher struct {
	cfg     Config
	sub     Submitter
	formats FormatChecker
	logger  *logging.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]string // path -> job id
	results chan Submission
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFormatChecker filters files by extension before submitting them.
func WithFormatChecker(fc FormatChecker) Option {
	return func(w *Watcher) { w.formats = fc }
}

// New creates a watcher for cfg.Dir.
func New(cfg Config, sub Submitter, opts ...Option) (*Watcher, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "watch directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "watch path is not a directory: "+cfg.Dir)
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}

	w := &Watcher{
		cfg:     cfg,
		sub:     sub,
		logger:  logging.NewNop(),
		pending: make(map[string]*time.Timer),
		seen:    make(map[string]string),
		results: make(chan Submission, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("watch")
	return w, nil
}

// Results reports each submission. Results are dropped when nobody reads
// them.
func (w *Watcher) Results() <-chan Submission {
	return w.results
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching folder", "dir", w.cfg.Dir)

	if w.cfg.ScanExisting {
		w.scan(ctx)
	}

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Warn("scanning folder failed", "error", err)
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.schedule(ctx, filepath.Join(w.cfg.Dir, e.Name()))
		}
	}
}

// schedule debounces events per file. A sidecar event schedules its video.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if strings.HasSuffix(path, PromptSuffix) {
		video := w.videoForSidecar(path)
		if video == "" {
			return
		}
		path = video
	}
	if !w.isVideo(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.seen[path]; done {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.submit(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) isVideo(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, PromptSuffix) {
		return false
	}
	if w.formats != nil {
		return w.formats.CheckFormat(name) == nil
	}
	return filepath.Ext(name) != ""
}

// videoForSidecar finds the video that a sidecar belongs to.
func (w *Watcher) videoForSidecar(sidecar string) string {
	dir := filepath.Dir(sidecar)
	stem := strings.TrimSuffix(filepath.Base(sidecar), PromptSuffix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != stem {
			continue
		}
		if path := filepath.Join(dir, name); w.isVideo(path) {
			return path
		}
	}
	return ""
}

// SidecarPath returns the prompt file paired with a video.
func SidecarPath(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + PromptSuffix
}

// promptFor reads the sidecar, falling back to the configured prompt.
func (w *Watcher) promptFor(video string) (string, error) {
	data, err := storage.ReadFileScoped(SidecarPath(video))
	switch {
	case err == nil:
		if p := strings.TrimSpace(string(data)); p != "" {
			return p, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("reading prompt sidecar: %w", err)
	}
	return strings.TrimSpace(w.cfg.Prompt), nil
}

func (w *Watcher) submit(ctx context.Context, path string) {
	logger := w.logger.With("file", filepath.Base(path))

	prompt, err := w.promptFor(path)
	if err != nil {
		logger.Warn("skipping video", "error", err)
		w.report(Submission{Path: path, Err: err})
		return
	}
	if prompt == "" {
		// Wait for a sidecar to arrive.
		logger.Debug("no prompt for video yet")
		return
	}

	w.mu.Lock()
	if _, done := w.seen[path]; done {
		w.mu.Unlock()
		return
	}
	w.seen[path] = ""
	w.mu.Unlock()

	jobID, err := w.createAndProcess(ctx, path, prompt)
	if err != nil {
		logger.Error("submitting video failed", "error", err)
	} else {
		logger.Info("video submitted", "job_id", jobID)
	}

	w.mu.Lock()
	w.seen[path] = jobID
	w.mu.Unlock()
	w.report(Submission{Path: path, JobID: jobID, Err: err})
}

func (w *Watcher) createAndProcess(ctx context.Context, path, prompt string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	job, err := w.sub.Create(ctx, jobs.CreateRequest{
		Filename: filepath.Base(path),
		Body:     f,
		Prompt:   prompt,
	})
	if err != nil {
		return "", err
	}
	if _, err := w.sub.Process(ctx, job.ID, prompt); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

func (w *Watcher) report(s Submission) {
	select {
	case w.results <- s:
	default:
	}
}
