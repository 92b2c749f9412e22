package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/render"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	// DefaultPollInterval is the wait between status fetches of one job.
	DefaultPollInterval = 2 * time.Second

	statusTTL = 24 * time.Hour
)

// Fetcher reads a single job snapshot from the render service.
type Fetcher interface {
	GetJob(ctx context.Context, id string) (models.Job, error)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithRequestTimeout bounds each status fetch.
func WithRequestTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.requestTimeout = d }
}

// WithStatusCache mirrors every applied status into c.
func WithStatusCache(c cache.Cache) TrackerOption {
	return func(t *Tracker) { t.cache = c }
}

// WithUpdateHook registers fn to receive every applied snapshot. fn runs on
// the polling goroutine and must not block for long.
func WithUpdateHook(fn func(models.Job)) TrackerOption {
	return func(t *Tracker) { t.onUpdate = fn }
}

// Tracker polls render jobs until they reach a terminal status. Each tracked
// job owns one goroutine and one cancel func, registered by job id.
type Tracker struct {
	fetcher        Fetcher
	interval       time.Duration
	requestTimeout time.Duration
	cache          cache.Cache
	onUpdate       func(models.Job)
	now            func() time.Time

	mu      sync.Mutex
	watches map[string]*Watch
	closed  bool
	wg      sync.WaitGroup
}

// NewTracker creates a Tracker that fetches status through f.
func NewTracker(f Fetcher, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		fetcher:  f,
		interval: DefaultPollInterval,
		now:      time.Now,
		watches:  make(map[string]*Watch),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track starts polling job and returns its Watch. onComplete, if non-nil,
// runs exactly once when the job reaches completed. Cancelling ctx tears the
// watch down, so callers pass a context that outlives the request that
// submitted the job. Tracking an id that is already tracked stops the
// previous watch first. A job that is already terminal gets a finished Watch
// and no polling.
func (t *Tracker) Track(ctx context.Context, job models.Job, onComplete func(models.Job)) *Watch {
	w, _ := t.track(ctx, job, onComplete, true)
	return w
}

// TrackIfAbsent returns the live watch of job.ID when there is one, and
// otherwise behaves like Track. started reports whether polling began.
func (t *Tracker) TrackIfAbsent(ctx context.Context, job models.Job, onComplete func(models.Job)) (w *Watch, started bool) {
	return t.track(ctx, job, onComplete, false)
}

func (t *Tracker) track(ctx context.Context, job models.Job, onComplete func(models.Job), replace bool) (*Watch, bool) {
	wctx, cancel := context.WithCancel(ctx)
	w := newWatch(wctx, job, onComplete, cancel)

	t.mu.Lock()
	if prev, ok := t.watches[job.ID]; ok {
		if !replace {
			t.mu.Unlock()
			cancel()
			return prev, false
		}
		prev.Stop()
	}
	if t.closed || job.Terminal() {
		delete(t.watches, job.ID)
		t.mu.Unlock()
		w.Stop()
		return w, false
	}
	t.watches[job.ID] = w
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(wctx, w)
	return w, true
}

// Lookup returns the live watch for id, if any.
func (t *Tracker) Lookup(id string) (*Watch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.watches[id]
	return w, ok
}

// Cancel stops polling id. It reports whether a watch was running.
func (t *Tracker) Cancel(id string) bool {
	t.mu.Lock()
	w, ok := t.watches[id]
	if ok {
		delete(t.watches, id)
	}
	t.mu.Unlock()

	if ok {
		w.Stop()
	}
	return ok
}

// Active returns the number of running watches.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watches)
}

// Shutdown stops every watch and waits for the polling goroutines to exit or
// for ctx to expire.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	watches := make([]*Watch, 0, len(t.watches))
	for _, w := range t.watches {
		watches = append(watches, w)
	}
	t.watches = make(map[string]*Watch)
	t.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context, w *Watch) {
	defer t.wg.Done()
	defer t.forget(w)
	defer w.Stop()

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		seq++
		job, err := t.poll(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, render.ErrJobNotFound) {
				slog.Warn("tracked job no longer exists", "job_id", w.id)
				return
			}
			slog.Warn("poll tick failed", "job_id", w.id, "error", err)
			timer.Reset(t.interval)
			continue
		}

		next, applied, completedNow := w.apply(seq, job, t.now())
		if applied {
			t.mirror(ctx, next)
		}
		if completedNow && w.onComplete != nil {
			w.onComplete(next)
		}
		if next.Terminal() {
			slog.Info("tracked job finished", "job_id", w.id, "status", next.Status)
			return
		}
		timer.Reset(t.interval)
	}
}

// poll issues one status fetch, bounded by the request timeout.
func (t *Tracker) poll(ctx context.Context, id string) (models.Job, error) {
	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}
	job, err := t.fetcher.GetJob(ctx, id)
	if err != nil {
		return models.Job{}, &PollTransportError{JobID: id, Err: err}
	}
	return job, nil
}

func (t *Tracker) mirror(ctx context.Context, job models.Job) {
	if t.cache != nil {
		if err := t.cache.SetJobStatus(ctx, job.ID, string(job.Status), statusTTL); err != nil {
			slog.Warn("mirroring job status failed", "job_id", job.ID, "error", err)
		}
	}
	if t.onUpdate != nil {
		t.onUpdate(job)
	}
}

// release stops w only if it is still the registered watch for its id.
func (t *Tracker) release(w *Watch) {
	t.forget(w)
	w.Stop()
}

func (t *Tracker) forget(w *Watch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watches[w.id] == w {
		delete(t.watches, w.id)
	}
}
