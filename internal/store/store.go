package store

import (
	"context"
	"errors"
	"sort"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store holds the local snapshot of render jobs. The render service owns the
// jobs; a Store only mirrors what was last fetched.
type Store interface {
	Ping(ctx context.Context) error

	// ReplaceJobs swaps the whole snapshot for jobs.
	ReplaceJobs(ctx context.Context, jobs []models.Job) error
	// UpsertJob replaces one job record. Records already in a terminal
	// status are left untouched.
	UpsertJob(ctx context.Context, job models.Job) error
	// ListJobs returns the snapshot sorted by CreatedAt, newest first.
	ListJobs(ctx context.Context) ([]models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// sortNewestFirst orders jobs by CreatedAt descending, ties broken by ID.
func sortNewestFirst(jobs []models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
