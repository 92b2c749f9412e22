package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/jobs"
	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeRender is an in-memory render service.
type fakeRender struct {
	mu         sync.Mutex
	jobs       map[string]models.Job
	next       int
	submitErr  error
	artifact   []byte
	extracted  render.ExtractRequest
	report     render.RepositoryReport
	extractErr error
	listCalls  atomic.Int32
}

func newFakeRender() *fakeRender {
	return &fakeRender{jobs: make(map[string]models.Job), artifact: []byte("fake-mp4-bytes")}
}

func (f *fakeRender) set(j models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.ID] = j
}

func (f *fakeRender) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[id]
	return ok
}

func (f *fakeRender) Submit(_ context.Context, req render.SubmitRequest) (render.SubmitResponse, error) {
	if f.submitErr != nil {
		return render.SubmitResponse{}, f.submitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("job-%d", f.next)
	f.jobs[id] = models.Job{
		ID:        id,
		Status:    models.JobStatusPending,
		Quality:   req.Quality,
		CreatedAt: testNow,
		SourceRef: req.Filename,
	}
	return render.SubmitResponse{JobID: id, Status: models.JobStatusPending}, nil
}

func (f *fakeRender) GetJob(_ context.Context, id string) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return models.Job{}, render.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeRender) ListJobs(context.Context) ([]models.Job, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeRender) DeleteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return render.ErrJobNotFound
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeRender) Download(_ context.Context, id string) (*render.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, render.ErrJobNotFound
	}
	if j.Status != models.JobStatusCompleted {
		return nil, render.ErrJobNotReady
	}
	return &render.Artifact{
		Body:          io.NopCloser(bytes.NewReader(f.artifact)),
		ContentType:   "video/mp4",
		ContentLength: int64(len(f.artifact)),
		Filename:      id + ".mp4",
	}, nil
}

func (f *fakeRender) ExtractRepositories(_ context.Context, req render.ExtractRequest) (*render.RepositoryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted = req
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	report := f.report
	return &report, nil
}

func (f *fakeRender) Ping(context.Context) error { return nil }

var _ render.Client = (*fakeRender)(nil)

func job(id string, status models.JobStatus, created time.Time) models.Job {
	j := models.Job{ID: id, Status: status, Quality: models.QualityLow, CreatedAt: created, SourceRef: id + ".pdf"}
	if status.Terminal() {
		done := created.Add(time.Minute)
		j.CompletedAt = &done
	}
	return j
}

func newTestManager(t *testing.T, fake *fakeRender) *jobs.Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	js := jobs.NewStore(fake, store.NewMemoryStore(), cache.NewMemoryCache())
	tr := jobs.NewTracker(fake,
		jobs.WithPollInterval(5*time.Millisecond),
		jobs.WithUpdateHook(func(j models.Job) { _ = js.Record(ctx, j) }),
	)
	t.Cleanup(func() {
		cancel()
		_ = tr.Shutdown(context.Background())
	})
	return jobs.NewManager(ctx, jobs.NewSubmitter(fake), tr, js)
}

// videoRouter mounts the video handlers the way the API router does.
func videoRouter(m *jobs.Manager) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/videos", NewSubmitVideoHandler(m, 0))
	r.Get("/api/v1/videos", NewListVideosHandler(m))
	r.Get("/api/v1/videos/{jobID}", NewGetVideoHandler(m))
	r.Delete("/api/v1/videos/{jobID}", NewDeleteVideoHandler(m))
	r.Get("/api/v1/videos/{jobID}/download", NewDownloadVideoHandler(m))
	r.Get("/api/v1/videos/{jobID}/events", NewVideoEventsHandler(m))
	return r
}

// multipartRequest builds a multipart POST. An empty filename omits the file.
func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mpw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mpw.WriteField(k, v))
	}
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}
