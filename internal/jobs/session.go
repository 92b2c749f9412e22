package jobs

import (
	"context"
	"sync"
)

// Session follows one job at a time on behalf of a viewer. Switching to
// another job stops the previous subscription, and also the previous watch
// when this session is the one that started it. Watches started by Submit or
// Resume keep running until the job is terminal.
type Session struct {
	m *Manager

	mu     sync.Mutex
	watch  *Watch
	owned  bool
	sub    *Subscription
	closed bool
}

// NewSession creates a viewer session.
func (m *Manager) NewSession() *Session {
	return &Session{m: m}
}

// Follow switches the session to id and returns a subscription to its
// snapshots. The first value received is the current snapshot.
func (s *Session) Follow(ctx context.Context, id string) (*Subscription, error) {
	w, started, err := s.m.Watch(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if started {
			s.m.tracker.release(w)
		}
		return nil, ErrSessionClosed
	}

	if s.watch != w {
		s.releaseLocked()
		s.watch = w
		s.owned = started
	} else if s.sub != nil {
		s.sub.Close()
	}
	s.sub = w.Subscribe()
	return s.sub, nil
}

// Current returns the id the session follows, or "".
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watch == nil {
		return ""
	}
	return s.watch.ID()
}

// Close releases the followed job. Further calls to Follow fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.releaseLocked()
}

func (s *Session) releaseLocked() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if s.watch != nil && s.owned {
		s.m.tracker.release(s.watch)
	}
	s.watch = nil
	s.owned = false
}
