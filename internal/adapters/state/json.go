package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/visualix/visualix/internal/core"
)

const jsonStoreVersion = 1

// JSONJobStore implements core.JobStore as a single JSON document that is
// rewritten atomically on every mutation.
type JSONJobStore struct {
	path string
	jobs map[string]*core.JobInfo
	now  func() time.Time
	mu   sync.RWMutex
}

// JSONJobStoreOption configures the store.
type JSONJobStoreOption func(*JSONJobStore)

// WithJSONClock overrides the clock used for UpdatedAt.
func WithJSONClock(now func() time.Time) JSONJobStoreOption {
	return func(s *JSONJobStore) {
		s.now = now
	}
}

// storeEnvelope is the on-disk layout.
type storeEnvelope struct {
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Jobs      []*core.JobInfo `json:"jobs"`
}

// NewJSONJobStore loads path if it exists.
func NewJSONJobStore(path string, opts ...JSONJobStoreOption) (*JSONJobStore, error) {
	s := &JSONJobStore{path: path, jobs: make(map[string]*core.JobInfo), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *JSONJobStore) Path() string { return s.path }

func (s *JSONJobStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading job store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var env storeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.ErrState(core.CodeStateCorrupted, "job store is not valid JSON: "+s.path).WithCause(err)
	}
	if env.Version > jsonStoreVersion {
		return core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("job store version %d is newer than supported version %d", env.Version, jsonStoreVersion))
	}
	for _, job := range env.Jobs {
		if job == nil || job.ID == "" {
			continue
		}
		s.jobs[job.ID] = job
	}
	return nil
}

// flush must be called with mu held.
func (s *JSONJobStore) flush() error {
	env := storeEnvelope{
		Version:   jsonStoreVersion,
		UpdatedAt: s.now(),
		Jobs:      make([]*core.JobInfo, 0, len(s.jobs)),
	}
	for _, job := range s.jobs {
		env.Jobs = append(env.Jobs, job)
	}
	sortNewestFirst(env.Jobs)

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job store: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0o600); err != nil {
		return core.ErrStorage("writing job store").WithCause(err)
	}
	return nil
}

// Create stores a new job.
func (s *JSONJobStore) Create(_ context.Context, job *core.JobInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return core.ErrConflict(core.CodeJobExists, "job already exists: "+job.ID)
	}
	stored, err := cloneJob(job)
	if err != nil {
		return err
	}
	s.jobs[job.ID] = stored
	if err := s.flush(); err != nil {
		delete(s.jobs, job.ID)
		return err
	}
	return nil
}

// Get returns a copy of the job.
func (s *JSONJobStore) Get(_ context.Context, id string) (*core.JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, core.ErrNotFound("job", id)
	}
	return cloneJob(job)
}

// SetStatus applies update and persists the store.
func (s *JSONJobStore) SetStatus(_ context.Context, id string, update core.JobUpdate) (*core.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, core.ErrNotFound("job", id)
	}
	next, err := cloneJob(job)
	if err != nil {
		return nil, err
	}
	next.Apply(update, s.now())
	s.jobs[id] = next
	if err := s.flush(); err != nil {
		s.jobs[id] = job
		return nil, err
	}
	return cloneJob(next)
}

// List returns jobs newest first along with the unpaginated total.
func (s *JSONJobStore) List(_ context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*core.JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status == "" || job.Status == filter.Status {
			matched = append(matched, job)
		}
	}
	sortNewestFirst(matched)
	total := len(matched)
	matched = paginate(matched, filter.Offset, filter.Limit)

	out := make([]*core.JobInfo, 0, len(matched))
	for _, job := range matched {
		c, err := cloneJob(job)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, nil
}

// Delete removes the job. Missing ids are ignored.
func (s *JSONJobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	delete(s.jobs, id)
	if err := s.flush(); err != nil {
		s.jobs[id] = job
		return err
	}
	return nil
}

// CountByStatus returns the number of jobs per status.
func (s *JSONJobStore) CountByStatus(_ context.Context) (map[core.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[core.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// Close is a no-op; every mutation is already on disk.
func (s *JSONJobStore) Close() error { return nil }

func sortNewestFirst(jobs []*core.JobInfo) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

func paginate(jobs []*core.JobInfo, offset, limit int) []*core.JobInfo {
	if offset > 0 {
		if offset >= len(jobs) {
			return nil
		}
		jobs = jobs[offset:]
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

func cloneJob(job *core.JobInfo) (*core.JobInfo, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("copying job %s: %w", job.ID, err)
	}
	var out core.JobInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copying job %s: %w", job.ID, err)
	}
	return &out, nil
}

var _ core.JobStore = (*JSONJobStore)(nil)
