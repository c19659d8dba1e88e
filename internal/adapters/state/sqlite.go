package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/visualix/visualix/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_jobs.sql
var migrationV1 string

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = `id, status, prompt, original_filename, input_path, output_path,
	progress, error, warnings, metadata, plan, execution, created_at, updated_at`

// SQLiteJobStore implements core.JobStore on a SQLite database.
type SQLiteJobStore struct {
	dbPath string
	db     *sql.DB
	now    func() time.Time
	mu     sync.Mutex
}

// SQLiteJobStoreOption configures the store.
type SQLiteJobStoreOption func(*SQLiteJobStore)

// WithSQLiteClock overrides the clock used for UpdatedAt.
func WithSQLiteClock(now func() time.Time) SQLiteJobStoreOption {
	return func(s *SQLiteJobStore) {
		s.now = now
	}
}

// NewSQLiteJobStore opens (or creates) the database at dbPath and applies migrations.
func NewSQLiteJobStore(dbPath string, opts ...SQLiteJobStoreOption) (*SQLiteJobStore, error) {
	s := &SQLiteJobStore{dbPath: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteJobStore) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteJobStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteJobStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Create inserts a new job.
func (s *SQLiteJobStore) Create(ctx context.Context, job *core.JobInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM jobs WHERE id = ?", job.ID).Scan(&exists)
	switch {
	case err == nil:
		return core.ErrConflict(core.CodeJobExists, "job already exists: "+job.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking job: %w", err)
	}

	if err := writeJob(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit()
}

// Get loads a job by id.
func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*core.JobInfo, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("job", id)
	}
	return job, err
}

// SetStatus applies update inside a transaction and returns the new record.
func (s *SQLiteJobStore) SetStatus(ctx context.Context, id string, update core.JobUpdate) (*core.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("job", id)
	}
	if err != nil {
		return nil, err
	}

	job.Apply(update, s.now())
	if err := writeJob(ctx, tx, job); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return job, nil
}

// List returns jobs newest first along with the unpaginated total.
func (s *SQLiteJobStore) List(ctx context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error) {
	where := ""
	var args []interface{}
	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := "SELECT " + jobColumns + " FROM jobs" + where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*core.JobInfo
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, total, nil
}

// Delete removes a job. Missing ids are ignored.
func (s *SQLiteJobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// CountByStatus returns the number of jobs per status.
func (s *SQLiteJobStore) CountByStatus(ctx context.Context) (map[core.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[core.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func writeJob(ctx context.Context, tx *sql.Tx, job *core.JobInfo) error {
	warnings, err := marshalNullable(job.Warnings, len(job.Warnings) > 0)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %w", err)
	}
	metadata, err := marshalNullable(job.Metadata, job.Metadata != nil)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	plan, err := marshalNullable(job.Plan, job.Plan != nil)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	execution, err := marshalNullable(job.Execution, job.Execution != nil)
	if err != nil {
		return fmt.Errorf("marshaling execution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			prompt = excluded.prompt,
			original_filename = excluded.original_filename,
			input_path = excluded.input_path,
			output_path = excluded.output_path,
			progress = excluded.progress,
			error = excluded.error,
			warnings = excluded.warnings,
			metadata = excluded.metadata,
			plan = excluded.plan,
			execution = excluded.execution,
			updated_at = excluded.updated_at
	`,
		job.ID, string(job.Status), job.Prompt, job.OriginalFilename, job.InputPath,
		nullableString(job.OutputPath), job.Progress, nullableString(job.Error),
		warnings, metadata, plan, execution,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*core.JobInfo, error) {
	var (
		job                                 core.JobInfo
		status, createdAt, updatedAt        string
		outputPath, errMsg                  sql.NullString
		warnings, metadata, plan, execution sql.NullString
	)
	err := row.Scan(&job.ID, &status, &job.Prompt, &job.OriginalFilename, &job.InputPath,
		&outputPath, &job.Progress, &errMsg, &warnings, &metadata, &plan, &execution,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = core.JobStatus(status)
	job.OutputPath = outputPath.String
	job.Error = errMsg.String

	if err := unmarshalNullable(warnings, &job.Warnings); err != nil {
		return nil, corrupted(job.ID, "warnings", err)
	}
	if metadata.Valid {
		job.Metadata = &core.VideoMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), job.Metadata); err != nil {
			return nil, corrupted(job.ID, "metadata", err)
		}
	}
	if plan.Valid {
		job.Plan = &core.WorkflowPlan{}
		if err := json.Unmarshal([]byte(plan.String), job.Plan); err != nil {
			return nil, corrupted(job.ID, "plan", err)
		}
	}
	if execution.Valid {
		job.Execution = &core.WorkflowExecution{}
		if err := json.Unmarshal([]byte(execution.String), job.Execution); err != nil {
			return nil, corrupted(job.ID, "execution", err)
		}
	}

	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, corrupted(job.ID, "created_at", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, corrupted(job.ID, "updated_at", err)
	}
	return &job, nil
}

func corrupted(id, column string, err error) error {
	return core.ErrState(core.CodeStateCorrupted, fmt.Sprintf("job %s: bad %s column", id, column)).WithCause(err)
}

// parseTime reads a stored timestamp. Rows written by other tools may use
// RFC 3339 with trimmed fractional seconds.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalNullable(v interface{}, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable(s sql.NullString, v interface{}) error {
	if !s.Valid {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

var _ core.JobStore = (*SQLiteJobStore)(nil)
