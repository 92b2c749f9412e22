package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Manager ties submission, polling and the job list together: a submitted
// job is tracked until terminal, and completion refreshes the list.
type Manager struct {
	submitter *Submitter
	tracker   *Tracker
	store     *Store
	ctx       context.Context
}

// NewManager creates a Manager. ctx bounds every watch the manager starts;
// cancelling it tears all of them down.
func NewManager(ctx context.Context, submitter *Submitter, tracker *Tracker, store *Store) *Manager {
	return &Manager{
		submitter: submitter,
		tracker:   tracker,
		store:     store,
		ctx:       ctx,
	}
}

// Submit starts a render job and begins tracking it.
func (m *Manager) Submit(ctx context.Context, artifact Artifact, quality string) (models.Job, error) {
	job, err := m.submitter.Submit(ctx, artifact, quality)
	if err != nil {
		return models.Job{}, err
	}
	if err := m.store.Record(ctx, job); err != nil {
		slog.Warn("recording submitted job failed", "job_id", job.ID, "error", err)
	}
	m.tracker.Track(m.ctx, job, m.completed)
	return job, nil
}

// Get returns the freshest known state of id.
func (m *Manager) Get(ctx context.Context, id string) (models.Job, error) {
	if w, ok := m.tracker.Lookup(id); ok {
		return w.Snapshot(), nil
	}
	return m.store.Get(ctx, id)
}

// List returns the cached job list, newest first.
func (m *Manager) List(ctx context.Context) ([]models.Job, error) {
	return m.store.List(ctx)
}

// Refresh re-fetches the job list from the render service.
func (m *Manager) Refresh(ctx context.Context) ([]models.Job, error) {
	return m.store.Refresh(ctx)
}

// Delete stops tracking id and deletes it remotely and locally.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.tracker.Cancel(id)
	return m.store.Delete(ctx, id)
}

// Download streams the artifact of a completed job.
func (m *Manager) Download(ctx context.Context, id string) (*render.Artifact, error) {
	return m.store.Download(ctx, id)
}

// Watch returns the live watch of id, starting one if the job is known and
// not yet terminal. started reports whether this call began polling.
func (m *Manager) Watch(ctx context.Context, id string) (w *Watch, started bool, err error) {
	if w, ok := m.tracker.Lookup(id); ok {
		return w, false, nil
	}
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	w, started = m.tracker.TrackIfAbsent(m.ctx, job, m.completed)
	return w, started, nil
}

// Resume refreshes the job list and tracks every job that has not finished,
// so polling survives a restart.
func (m *Manager) Resume(ctx context.Context) error {
	jobs, err := m.store.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("resuming job tracking: %w", err)
	}
	n := 0
	for _, j := range jobs {
		if j.Terminal() {
			continue
		}
		if _, ok := m.tracker.Lookup(j.ID); ok {
			continue
		}
		m.tracker.Track(m.ctx, j, m.completed)
		n++
	}
	slog.Info("job tracking resumed", "tracked", n, "total", len(jobs))
	return nil
}

// Tracked returns the number of jobs being polled.
func (m *Manager) Tracked() int {
	return m.tracker.Active()
}

// completed refreshes the job list once a tracked job finishes rendering.
func (m *Manager) completed(job models.Job) {
	ctx, cancel := context.WithTimeout(m.ctx, refreshTimeout)
	defer cancel()

	slog.Info("render job completed", "job_id", job.ID)
	if _, err := m.store.Refresh(ctx); err != nil {
		slog.Warn("refresh after completion failed", "job_id", job.ID, "error", err)
	}
}
