package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/visualix/visualix/internal/core"
)

// MemoryJobStore implements core.JobStore in memory. Records are deep
// copied on the way in and out so callers never share state with the store.
type MemoryJobStore struct {
	jobs map[string]*core.JobInfo
	now  func() time.Time
	mu   sync.RWMutex
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*core.JobInfo), now: time.Now}
}

// Create stores a new job.
func (s *MemoryJobStore) Create(_ context.Context, job *core.JobInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return core.ErrConflict(core.CodeJobExists, "job already exists: "+job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// Get returns a copy of the job.
func (s *MemoryJobStore) Get(_ context.Context, id string) (*core.JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, core.ErrNotFound("job", id)
	}
	return copyJob(job), nil
}

// SetStatus applies update.
func (s *MemoryJobStore) SetStatus(_ context.Context, id string, update core.JobUpdate) (*core.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, core.ErrNotFound("job", id)
	}
	job.Apply(update, s.now())
	return copyJob(job), nil
}

// List returns matching jobs, newest first.
func (s *MemoryJobStore) List(_ context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*core.JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*core.JobInfo, len(matched))
	for i, job := range matched {
		out[i] = copyJob(job)
	}
	return out, total, nil
}

// Delete removes the job.
func (s *MemoryJobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// CountByStatus counts jobs per status.
func (s *MemoryJobStore) CountByStatus(_ context.Context) (map[core.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[core.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// Close is a no-op.
func (s *MemoryJobStore) Close() error { return nil }

func copyJob(job *core.JobInfo) *core.JobInfo {
	data, err := json.Marshal(job)
	if err != nil {
		panic(err)
	}
	var out core.JobInfo
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

var _ core.JobStore = (*MemoryJobStore)(nil)
