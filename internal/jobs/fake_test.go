package jobs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// fakeRender is an in-memory render service.
type fakeRender struct {
	mu         sync.Mutex
	jobs       map[string]models.Job
	submitResp render.SubmitResponse
	submitErr  error
	submitted  []render.SubmitRequest
	listErr    error
	listDelay  time.Duration
	deleteErr  error
	deleted    []string
	getFunc    func(ctx context.Context, id string) (models.Job, error)

	listCalls     atomic.Int32
	getCalls      atomic.Int32
	downloadCalls atomic.Int32
}

func newFakeRender(jobs ...models.Job) *fakeRender {
	f := &fakeRender{jobs: make(map[string]models.Job)}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeRender) set(job models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func (f *fakeRender) Submit(_ context.Context, req render.SubmitRequest) (render.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return render.SubmitResponse{}, f.submitErr
	}
	return f.submitResp, nil
}

func (f *fakeRender) GetJob(ctx context.Context, id string) (models.Job, error) {
	f.getCalls.Add(1)
	if f.getFunc != nil {
		return f.getFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", render.ErrJobNotFound, id)
	}
	return job, nil
}

func (f *fakeRender) ListJobs(ctx context.Context) ([]models.Job, error) {
	f.listCalls.Add(1)
	if f.listDelay > 0 {
		select {
		case <-time.After(f.listDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeRender) DeleteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", render.ErrJobNotFound, id)
	}
	delete(f.jobs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRender) Download(_ context.Context, id string) (*render.Artifact, error) {
	f.downloadCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", render.ErrJobNotFound, id)
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: %s", render.ErrJobNotReady, id)
	}
	return &render.Artifact{
		Body:        io.NopCloser(strings.NewReader("mp4-bytes")),
		ContentType: "video/mp4",
		Filename:    "video_" + id + ".mp4",
	}, nil
}

func (f *fakeRender) ExtractRepositories(context.Context, render.ExtractRequest) (*render.RepositoryReport, error) {
	return &render.RepositoryReport{}, nil
}

func (f *fakeRender) Ping(context.Context) error { return nil }

// fetchFunc adapts a function to Fetcher.
type fetchFunc func(ctx context.Context, id string) (models.Job, error)

func (f fetchFunc) GetJob(ctx context.Context, id string) (models.Job, error) { return f(ctx, id) }

// scripted returns the given statuses in order, then repeats the last one.
func scripted(id string, statuses ...models.JobStatus) (Fetcher, *atomic.Int32) {
	var calls atomic.Int32
	return fetchFunc(func(context.Context, string) (models.Job, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		job := models.Job{ID: id, Status: statuses[n]}
		if statuses[n] == models.JobStatusCompleted {
			job.VideoPath = "media/" + id + ".mp4"
		}
		return job, nil
	}), &calls
}

func pendingJob(id string) models.Job {
	return models.Job{
		ID:        id,
		Status:    models.JobStatusPending,
		Quality:   models.QualityLow,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceRef: id + ".pdf",
	}
}

// drain reads sub until it closes or timeout passes.
func drain(sub *Subscription, timeout time.Duration) ([]models.Job, bool) {
	var got []models.Job
	deadline := time.After(timeout)
	for {
		select {
		case j, ok := <-sub.C():
			if !ok {
				return got, true
			}
			got = append(got, j)
		case <-deadline:
			return got, false
		}
	}
}
