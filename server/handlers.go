// Package server HTTP API handlers.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/kaabot/bot"
	"github.com/onnwee/kaabot/store"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db    *sql.DB
	bot   *bot.Bot
	users store.UserStore
	log   store.MessageLog
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, b *bot.Bot, users store.UserStore, log store.MessageLog) *Handlers {
	return &Handlers{db: db, bot: b, users: users, log: log}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			_, err := h.log.Count(r.Context())
			return err
		}},
		{"chat", func() error {
			if h.bot.OnlineSince().IsZero() {
				return fmt.Errorf("not joined to the room yet")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// statusPayload is the /status response body.
type statusPayload struct {
	Nick          string `json:"nick"`
	Online        bool   `json:"online"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	TrackedUsers  int    `json:"tracked_users"`
	LoggedLines   int    `json:"logged_lines"`
}

// HandleStatus reports the bot session and store counts.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := statusPayload{Nick: h.bot.Nick()}
	if since := h.bot.OnlineSince(); !since.IsZero() {
		p.Online = true
		p.UptimeSeconds = int64(time.Since(since).Seconds())
	}
	if n, err := h.users.Count(ctx); err == nil {
		p.TrackedUsers = n
	}
	if n, err := h.log.Count(ctx); err == nil {
		p.LoggedLines = n
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
