package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one shared job list refresh.
const refreshTimeout = 30 * time.Second

// Store is the local view of all render jobs. It never owns job state: the
// snapshot is replaced wholesale from the render service on every refresh.
type Store struct {
	client    render.Client
	snapshots store.Store
	cache     cache.Cache
	group     singleflight.Group
	loaded    atomic.Bool
	now       func() time.Time
}

// NewStore creates a Store. c may be nil.
func NewStore(client render.Client, snapshots store.Store, c cache.Cache) *Store {
	return &Store{
		client:    client,
		snapshots: snapshots,
		cache:     c,
		now:       time.Now,
	}
}

// List returns the cached jobs sorted by CreatedAt, newest first. The first
// call refreshes from the render service.
func (s *Store) List(ctx context.Context) ([]models.Job, error) {
	if !s.loaded.Load() {
		return s.Refresh(ctx)
	}
	return s.snapshots.ListJobs(ctx)
}

// Refresh re-fetches the full job list and replaces the cached snapshot.
// Concurrent calls share a single remote fetch, which runs detached from
// any one caller's cancellation and is bounded by refreshTimeout. Jobs with
// a status outside the known set are skipped.
func (s *Store) Refresh(ctx context.Context) ([]models.Job, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(fctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	jobs := res.Val.([]models.Job)
	out := make([]models.Job, len(jobs))
	copy(out, jobs)
	return out, nil
}

func (s *Store) refresh(ctx context.Context) ([]models.Job, error) {
	remote, err := s.client.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing render jobs: %w", err)
	}
	jobs := make([]models.Job, 0, len(remote))
	for _, j := range remote {
		if !j.Status.Valid() {
			slog.Warn("skipping render job with unknown status", "job_id", j.ID, "status", j.Status)
			continue
		}
		jobs = append(jobs, j)
	}
	if err := s.snapshots.ReplaceJobs(ctx, jobs); err != nil {
		return nil, fmt.Errorf("replacing job snapshot: %w", err)
	}
	s.loaded.Store(true)
	return s.snapshots.ListJobs(ctx)
}

// Get returns the cached snapshot of id, advanced by any status another
// instance mirrored into the cache. Unknown ids are fetched from the render
// service.
func (s *Store) Get(ctx context.Context, id string) (models.Job, error) {
	job, err := s.snapshots.GetJob(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.fetch(ctx, id)
	case err != nil:
		return models.Job{}, fmt.Errorf("reading job snapshot: %w", err)
	}

	if s.cache != nil {
		if status, ok, err := s.cache.GetJobStatus(ctx, id); err == nil && ok {
			overlay := job
			overlay.Status = models.JobStatus(status)
			job, _ = Advance(job, overlay, s.now())
		}
	}
	return job, nil
}

// Record stores one job snapshot, typically a fresh submission or a polled
// update. Terminal snapshots are never overwritten.
func (s *Store) Record(ctx context.Context, job models.Job) error {
	if err := s.snapshots.UpsertJob(ctx, job); err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

// Delete removes id from the render service and then from the local
// snapshot. An id the render service does not know returns ErrNotFound and
// leaves the snapshot untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, render.ErrJobNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("deleting render job: %w", err)
	}

	if err := s.snapshots.DeleteJob(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting job snapshot: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.JobStatusKey(id)); err != nil {
			slog.Warn("clearing cached job status failed", "job_id", id, "error", err)
		}
	}
	return nil
}

// Download streams the rendered artifact of a completed job. Callers must
// close the returned Body.
func (s *Store) Download(ctx context.Context, id string) (*render.Artifact, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Terminal() {
		// The snapshot may lag behind the render service.
		if fresh, err := s.fetch(ctx, id); err == nil {
			job, _ = Advance(job, fresh, s.now())
		}
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, job.Status)
	}

	art, err := s.client.Download(ctx, id)
	switch {
	case errors.Is(err, render.ErrJobNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, render.ErrJobNotReady):
		return nil, fmt.Errorf("%w: %s", ErrNotReady, id)
	case err != nil:
		return nil, fmt.Errorf("downloading artifact: %w", err)
	}
	return art, nil
}

func (s *Store) fetch(ctx context.Context, id string) (models.Job, error) {
	job, err := s.client.GetJob(ctx, id)
	if errors.Is(err, render.ErrJobNotFound) {
		return models.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("fetching render job: %w", err)
	}
	return job, nil
}
