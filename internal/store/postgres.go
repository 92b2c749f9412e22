package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const upsertJobSQL = `INSERT INTO job_snapshots (id, status, quality, source_ref, error, video_path, created_at, completed_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	 ON CONFLICT (id) DO UPDATE SET
	   status = EXCLUDED.status,
	   quality = EXCLUDED.quality,
	   source_ref = EXCLUDED.source_ref,
	   error = EXCLUDED.error,
	   video_path = EXCLUDED.video_path,
	   created_at = EXCLUDED.created_at,
	   completed_at = EXCLUDED.completed_at,
	   updated_at = NOW()
	 WHERE job_snapshots.status NOT IN ('completed', 'failed')`

func (s *PostgresStore) ReplaceJobs(ctx context.Context, jobs []models.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace jobs: %w", err)
	}
	defer tx.Rollback(ctx)

	// Clearing first lets a full replace overwrite terminal rows, which the
	// upsert guard otherwise keeps.
	if _, err := tx.Exec(ctx, `DELETE FROM job_snapshots`); err != nil {
		return fmt.Errorf("clear job snapshots: %w", err)
	}

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(upsertJobSQL, jobArgs(j)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert job snapshots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertJob(ctx context.Context, job models.Job) error {
	if _, err := s.pool.Exec(ctx, upsertJobSQL, jobArgs(job)...); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, quality, source_ref, error, video_path, created_at, completed_at
		 FROM job_snapshots ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, quality, source_ref, error, video_path, created_at, completed_at
		 FROM job_snapshots WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func jobArgs(j models.Job) []any {
	return []any{j.ID, string(j.Status), string(j.Quality), j.SourceRef, j.Error, j.VideoPath, j.CreatedAt, j.CompletedAt}
}

func scanJob(row pgx.Row) (models.Job, error) {
	var (
		j       models.Job
		status  string
		quality string
	)
	if err := row.Scan(&j.ID, &status, &quality, &j.SourceRef, &j.Error, &j.VideoPath, &j.CreatedAt, &j.CompletedAt); err != nil {
		return models.Job{}, err
	}
	j.Status = models.JobStatus(status)
	j.Quality = models.Quality(quality)
	j.CreatedAt = j.CreatedAt.UTC()
	if j.CompletedAt != nil {
		t := j.CompletedAt.UTC()
		j.CompletedAt = &t
	}
	return j, nil
}

var _ Store = (*PostgresStore)(nil)
