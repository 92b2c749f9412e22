package store

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// MemoryStore is a process-local Store used when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]models.Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]models.Job)}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) ReplaceJobs(_ context.Context, jobs []models.Job) error {
	next := make(map[string]models.Job, len(jobs))
	for _, j := range jobs {
		next[j.ID] = j
	}
	s.mu.Lock()
	s.jobs = next
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpsertJob(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[job.ID]; ok && cur.Terminal() {
		return nil
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) ListJobs(context.Context) ([]models.Job, error) {
	s.mu.RLock()
	jobs := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	sortNewestFirst(jobs)
	return jobs, nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
