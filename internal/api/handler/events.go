package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/explainer/internal/jobs"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// SessionFactory opens viewer sessions. *jobs.Manager implements it.
type SessionFactory interface {
	NewSession() *jobs.Session
}

// Event is one message on the job event stream.
type Event struct {
	Type  string      `json:"type"`
	Job   *models.Job `json:"job,omitempty"`
	Error string      `json:"error,omitempty"`
}

const (
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// followRequest switches the stream to another job.
type followRequest struct {
	JobID string `json:"job_id"`
}

// NewVideoEventsHandler returns an http.HandlerFunc for
// GET /api/v1/videos/{jobID}/events. The socket streams a snapshot of the
// followed job on every applied update. Clients switch jobs by sending
// {"job_id": "..."}; closing the socket tears the subscription down.
func NewVideoEventsHandler(sessions SessionFactory) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		session := sessions.NewSession()
		defer session.Close()

		sub, err := session.Follow(r.Context(), id)
		if err != nil {
			writeJobError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "job_id", id, "error", err)
			return
		}
		defer conn.Close()

		subs := make(chan (<-chan models.Job), 1)
		notices := make(chan Event, 1)
		done := make(chan struct{})
		writerDone := make(chan struct{})
		subs <- sub.C()

		go func() {
			defer close(writerDone)
			pump(conn, subs, notices, done, session.Current)
		}()

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket closed", "job_id", session.Current(), "error", err)
				}
				break
			}

			var req followRequest
			if err := json.Unmarshal(msg, &req); err != nil || req.JobID == "" {
				notify(notices, writerDone, Event{Type: EventError, Error: "expected {\"job_id\": \"...\"}"})
				continue
			}
			next, err := session.Follow(r.Context(), req.JobID)
			if err != nil {
				reason := "job not found"
				if !errors.Is(err, jobs.ErrNotFound) {
					reason = "could not follow job"
					slog.Warn("following job failed", "job_id", req.JobID, "error", err)
				}
				notify(notices, writerDone, Event{Type: EventError, Error: reason})
				continue
			}
			select {
			case subs <- next.C():
			case <-writerDone:
			}
		}

		close(done)
		<-writerDone
	}
}

// pump is the only writer on conn. Snapshots of any job other than current()
// are dropped, including values still buffered on a replaced subscription.
func pump(conn *websocket.Conn, subs <-chan (<-chan models.Job), notices <-chan Event, done <-chan struct{}, current func() string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// A failed write closes the socket so the read loop ends too.
	defer conn.Close()

	var updates <-chan models.Job
	for {
		var ev Event
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case s := <-subs:
			updates = s
			continue
		case job, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if job.ID != current() {
				continue
			}
			ev = Event{Type: EventSnapshot, Job: &job}
		case ev = <-notices:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func notify(notices chan<- Event, writerDone <-chan struct{}, ev Event) {
	select {
	case notices <- ev:
	case <-writerDone:
	}
}
