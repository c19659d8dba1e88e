package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/testutil"
)

type storeOpener func(t *testing.T, dir string) core.JobStore

var backends = map[string]storeOpener{
	"sqlite": func(t *testing.T, dir string) core.JobStore {
		s, err := NewSQLiteJobStore(filepath.Join(dir, "jobs.db"))
		require.NoError(t, err)
		return s
	},
	"json": func(t *testing.T, dir string) core.JobStore {
		s, err := NewJSONJobStore(filepath.Join(dir, "jobs.json"))
		require.NoError(t, err)
		return s
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, open storeOpener)) {
	t.Helper()
	for name, open := range backends {
		open := open
		t.Run(name, func(t *testing.T) {
			fn(t, open)
		})
	}
}

func TestJobStore_CreateGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		job := testutil.NewTestJob("job-1", func(j *core.JobInfo) {
			j.Prompt = "make it brighter"
			j.Metadata = &core.VideoMetadata{Duration: 12.5, FPS: 30, Width: 1920, Height: 1080, Format: "mp4"}
			j.Plan = testutil.NewTestPlan([]string{"adjust_brightness"})
			j.Warnings = []string{"careful"}
		})
		require.NoError(t, store.Create(ctx, job))

		got, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, core.JobPending, got.Status)
		assert.Equal(t, "make it brighter", got.Prompt)
		assert.Equal(t, job.InputPath, got.InputPath)
		assert.Equal(t, []string{"careful"}, got.Warnings)
		require.NotNil(t, got.Metadata)
		assert.Equal(t, 1920, got.Metadata.Width)
		require.NotNil(t, got.Plan)
		assert.Equal(t, []string{"adjust_brightness"}, got.Plan.ToolNames())
		assert.True(t, got.CreatedAt.Equal(job.CreatedAt), "created_at %v != %v", got.CreatedAt, job.CreatedAt)
		assert.Nil(t, got.Execution)
	})
}

func TestJobStore_CreateDuplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, testutil.NewTestJob("dup")))
		err := store.Create(ctx, testutil.NewTestJob("dup"))
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeJobExists))
	})
}

func TestJobStore_GetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()

		_, err := store.Get(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
	})
}

func TestJobStore_SetStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, testutil.NewTestJob("job-1")))

		got, err := store.SetStatus(ctx, "job-1", core.JobUpdate{
			Status:   core.JobProcessing,
			Progress: core.IntPtr(40),
		})
		require.NoError(t, err)
		assert.Equal(t, core.JobProcessing, got.Status)
		assert.Equal(t, 40, got.Progress)

		exec := &core.WorkflowExecution{WorkflowID: "job-1", PlannedTools: []string{"adjust_brightness"}, Success: true}
		got, err = store.SetStatus(ctx, "job-1", core.JobUpdate{
			Status:     core.JobCompleted,
			Progress:   core.IntPtr(100),
			OutputPath: core.StringPtr("outputs/job-1.mp4"),
			Execution:  exec,
		})
		require.NoError(t, err)

		reloaded, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, core.JobCompleted, reloaded.Status)
		assert.Equal(t, 100, reloaded.Progress)
		assert.Equal(t, "outputs/job-1.mp4", reloaded.OutputPath)
		require.NotNil(t, reloaded.Execution)
		assert.True(t, reloaded.Execution.Success)
		assert.Empty(t, reloaded.Error, "untouched fields stay empty")
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})
}

func TestJobStore_SetStatusMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()

		_, err := store.SetStatus(context.Background(), "ghost", core.JobUpdate{Status: core.JobFailed})
		assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
	})
}

func TestJobStore_ListOrderingAndPaging(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"a", "b", "c", "d"} {
			created := base.Add(time.Duration(i) * time.Minute)
			status := core.JobPending
			if i%2 == 1 {
				status = core.JobCompleted
			}
			require.NoError(t, store.Create(ctx, testutil.NewTestJob(id, func(j *core.JobInfo) {
				j.CreatedAt = created
				j.UpdatedAt = created
				j.Status = status
			})))
		}

		jobs, total, err := store.List(ctx, core.JobFilter{})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"d", "c", "b", "a"}, ids(jobs))

		jobs, total, err = store.List(ctx, core.JobFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"c", "b"}, ids(jobs))

		jobs, total, err = store.List(ctx, core.JobFilter{Status: core.JobCompleted})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"d", "b"}, ids(jobs))

		jobs, _, err = store.List(ctx, core.JobFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobStore_DeleteAndCount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, testutil.NewTestJob("p1")))
		require.NoError(t, store.Create(ctx, testutil.NewTestJob("p2")))
		require.NoError(t, store.Create(ctx, testutil.NewTestJob("f1", func(j *core.JobInfo) {
			j.Status = core.JobFailed
		})))

		counts, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[core.JobPending])
		assert.Equal(t, 1, counts[core.JobFailed])

		require.NoError(t, store.Delete(ctx, "p1"))
		require.NoError(t, store.Delete(ctx, "p1"), "deleting twice is fine")

		counts, err = store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[core.JobPending])
	})
}

func TestJobStore_Reopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		dir := t.TempDir()
		ctx := context.Background()

		store := open(t, dir)
		require.NoError(t, store.Create(ctx, testutil.NewTestJob("persisted")))
		_, err := store.SetStatus(ctx, "persisted", core.JobUpdate{Status: core.JobFailed, Error: core.StringPtr("boom")})
		require.NoError(t, err)
		require.NoError(t, store.Close())

		store = open(t, dir)
		defer store.Close()
		got, err := store.Get(ctx, "persisted")
		require.NoError(t, err)
		assert.Equal(t, core.JobFailed, got.Status)
		assert.Equal(t, "boom", got.Error)
	})
}

func TestJobStore_ReturnsCopies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		job := testutil.NewTestJob("copy")
		require.NoError(t, store.Create(ctx, job))
		job.Prompt = "mutated after create"

		got, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		got.Status = core.JobCancelled

		again, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Empty(t, again.Prompt)
		assert.Equal(t, core.JobPending, again.Status)
	})
}

func ids(jobs []*core.JobInfo) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestJobStore_TimestampsWithTrailingZeroNanos(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open storeOpener) {
		store := open(t, t.TempDir())
		defer store.Close()
		ctx := context.Background()

		created := time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)
		updated := time.Date(2026, 3, 4, 5, 6, 8, 0, time.UTC)
		require.NoError(t, store.Create(ctx, testutil.NewTestJob("p1", func(j *core.JobInfo) {
			j.CreatedAt = created
			j.UpdatedAt = updated
		})))

		got, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(created), "created_at %v", got.CreatedAt)
		assert.True(t, got.UpdatedAt.Equal(updated), "updated_at %v", got.UpdatedAt)

		list, _, err := store.List(ctx, core.JobFilter{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].CreatedAt.Equal(created))
	})
}

func TestSQLiteJobStore_ReadsRFC3339Timestamps(t *testing.T) {
	store, err := NewSQLiteJobStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`INSERT INTO jobs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"legacy", "completed", "2026-03-04T05:06:07.1234Z", "2026-03-04T05:06:07Z")
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, 123400000, got.CreatedAt.Nanosecond())
	assert.Equal(t, 0, got.UpdatedAt.Nanosecond())
}
