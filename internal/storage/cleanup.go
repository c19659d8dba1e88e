package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/visualix/visualix/internal/logging"
)

// CleanupConfig configures the periodic cleaner.
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
	Patterns []string
}

// CleanupResult summarizes one pass.
type CleanupResult struct {
	FilesDeleted int           `json:"files_deleted"`
	BytesFreed   int64         `json:"bytes_freed"`
	Skipped      int           `json:"skipped"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// CleanupStats accumulates results across passes.
type CleanupStats struct {
	Running      bool      `json:"running"`
	Runs         int       `json:"runs"`
	FilesDeleted int       `json:"files_deleted"`
	BytesFreed   int64     `json:"bytes_freed"`
	LastRun      time.Time `json:"last_run,omitempty"`
	NextRun      time.Time `json:"next_run,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Cleaner removes stale files from the managed directories.
type Cleaner struct {
	dirs    []string
	cfg     CleanupConfig
	protect func(path string) bool
	onRun   func(CleanupResult)
	logger  *logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	stats   CleanupStats
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithProtect skips any file for which fn returns true.
func WithProtect(fn func(path string) bool) CleanerOption {
	return func(c *Cleaner) { c.protect = fn }
}

// WithOnRun calls fn after every pass.
func WithOnRun(fn func(CleanupResult)) CleanerOption {
	return func(c *Cleaner) { c.onRun = fn }
}

// WithCleanerClock overrides the clock used to age files.
func WithCleanerClock(now func() time.Time) CleanerOption {
	return func(c *Cleaner) { c.now = now }
}

// NewCleaner returns a cleaner for the manager's directories.
func NewCleaner(m *Manager, cfg CleanupConfig, logger *logging.Logger, opts ...CleanerOption) *Cleaner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = []string{"**/*"}
	}
	c := &Cleaner{
		dirs:   m.Dirs(),
		cfg:    cfg,
		logger: logger.WithComponent("cleanup"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs a pass every interval until ctx is done or Stop is called.
func (c *Cleaner) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Warn("cleanup already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	c.stats.Running = true
	c.stats.NextRun = c.now().Add(c.cfg.Interval)
	done := c.done
	c.mu.Unlock()

	c.logger.Info("cleanup scheduler started", "interval", c.cfg.Interval, "max_age", c.cfg.MaxAge)

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight pass.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	done := c.done
	c.running = false
	c.stats.Running = false
	c.stats.NextRun = time.Time{}
	c.mu.Unlock()

	<-done
	c.logger.Info("cleanup scheduler stopped")
}

// RunOnce performs a single pass and records it in the stats.
func (c *Cleaner) RunOnce(ctx context.Context) CleanupResult {
	start := c.now()
	cutoff := start.Add(-c.cfg.MaxAge)
	var res CleanupResult

	for _, dir := range c.dirs {
		if ctx.Err() != nil {
			break
		}
		c.cleanDir(ctx, dir, cutoff, &res)
	}
	res.Duration = c.now().Sub(start)

	c.mu.Lock()
	c.stats.Runs++
	c.stats.FilesDeleted += res.FilesDeleted
	c.stats.BytesFreed += res.BytesFreed
	c.stats.LastRun = start
	c.stats.LastError = ""
	if len(res.Errors) > 0 {
		c.stats.LastError = res.Errors[len(res.Errors)-1]
	}
	if c.running {
		c.stats.NextRun = start.Add(c.cfg.Interval)
	}
	c.mu.Unlock()

	if res.FilesDeleted > 0 || len(res.Errors) > 0 {
		c.logger.Info("cleanup pass finished",
			"files_deleted", res.FilesDeleted,
			"bytes_freed", res.BytesFreed,
			"skipped", res.Skipped,
			"errors", len(res.Errors))
	}
	if c.onRun != nil {
		c.onRun(res)
	}
	return res
}

func (c *Cleaner) cleanDir(ctx context.Context, dir string, cutoff time.Time, res *CleanupResult) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	for _, pattern := range c.cfg.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			res.Errors = append(res.Errors, dir+": "+err.Error())
			continue
		}
		for _, rel := range matches {
			if ctx.Err() != nil {
				return
			}
			if seen[rel] {
				continue
			}
			seen[rel] = true
			c.maybeRemove(filepath.Join(dir, filepath.FromSlash(rel)), cutoff, res)
		}
	}
}

func (c *Cleaner) maybeRemove(path string, cutoff time.Time, res *CleanupResult) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
		return
	}
	if c.protect != nil && c.protect(path) {
		res.Skipped++
		return
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			res.Errors = append(res.Errors, err.Error())
		}
		return
	}
	res.FilesDeleted++
	res.BytesFreed += info.Size()
}

// Stats returns a copy of the accumulated stats.
func (c *Cleaner) Stats() CleanupStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
