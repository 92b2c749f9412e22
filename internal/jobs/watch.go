package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Watch is the polling task of one job. Its cancel func is the only way the
// task is torn down; after Stop returns no further snapshot is applied or
// delivered.
type Watch struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	onComplete func(models.Job)
	done       chan struct{}
	stopOnce   sync.Once

	mu        sync.Mutex
	job       models.Job
	alive     bool
	lastSeq   uint64
	completed bool
	subs      map[*Subscription]struct{}
}

func newWatch(ctx context.Context, job models.Job, onComplete func(models.Job), cancel context.CancelFunc) *Watch {
	return &Watch{
		id:         job.ID,
		ctx:        ctx,
		cancel:     cancel,
		onComplete: onComplete,
		done:       make(chan struct{}),
		job:        job,
		alive:      true,
		subs:       make(map[*Subscription]struct{}),
	}
}

// ID returns the tracked job id.
func (w *Watch) ID() string { return w.id }

// Snapshot returns the latest applied job state.
func (w *Watch) Snapshot() models.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job
}

// Done is closed once the watch has stopped.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Stop cancels polling and closes every subscription. It is safe to call
// more than once and from any goroutine, including onComplete.
func (w *Watch) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()

		w.mu.Lock()
		w.alive = false
		for sub := range w.subs {
			sub.closeLocked()
		}
		w.subs = nil
		w.mu.Unlock()

		close(w.done)
	})
}

// Subscribe returns a subscription that first yields the current snapshot and
// then every applied update. Slow readers only miss intermediate snapshots;
// the most recent one is always retained. The channel closes when the watch
// stops or the subscription is closed.
func (w *Watch) Subscribe() *Subscription {
	sub := &Subscription{w: w, ch: make(chan models.Job, 1)}

	w.mu.Lock()
	defer w.mu.Unlock()
	sub.ch <- w.job
	if !w.alive {
		sub.closeLocked()
		return sub
	}
	w.subs[sub] = struct{}{}
	return sub
}

// apply folds remote into the watch state. It reports the resulting snapshot,
// whether it changed, and whether this call moved the job to completed.
// Responses older than the last applied one, or arriving after Stop, are
// dropped.
func (w *Watch) apply(seq uint64, remote models.Job, now time.Time) (models.Job, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.alive || w.ctx.Err() != nil || seq <= w.lastSeq {
		return w.job, false, false
	}
	w.lastSeq = seq

	next, changed := Advance(w.job, remote, now)
	if !changed {
		return w.job, false, false
	}
	w.job = next
	for sub := range w.subs {
		sub.offerLocked(next)
	}

	completedNow := false
	if next.Status == models.JobStatusCompleted && !w.completed {
		w.completed = true
		completedNow = true
	}
	return next, true, completedNow
}

// Subscription receives job snapshots from a Watch.
type Subscription struct {
	w      *Watch
	ch     chan models.Job
	closed bool
}

// C returns the delivery channel.
func (s *Subscription) C() <-chan models.Job { return s.ch }

// Close detaches the subscription. The watch keeps polling.
func (s *Subscription) Close() {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.subs != nil {
		delete(s.w.subs, s)
	}
	s.closeLocked()
}

// offerLocked replaces any undelivered snapshot with job. Callers hold w.mu,
// which makes the watch the only sender.
func (s *Subscription) offerLocked(job models.Job) {
	select {
	case s.ch <- job:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- job:
	default:
	}
}

func (s *Subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
