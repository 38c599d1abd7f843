// Package push mirrors overlay mutations and snapshot summaries to
// dashboard viewers over websockets.
package push

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/tripview/internal/mapview"
	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/observability"
)

// Update is one message pushed to viewers.
type Update struct {
	Type     string               `json:"type"` // overlay_op, snapshot
	Op       *mapview.Op          `json:"op,omitempty"`
	Snapshot *models.TripSnapshot `json:"snapshot,omitempty"`
}

// Session represents one connected viewer.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) Send(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(u)
}

// Registry holds viewer sessions keyed by viewer ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sessions: make(map[string]*Session), logger: logger}
}

func (r *Registry) Add(viewerID string, conn *websocket.Conn) {
	r.mu.Lock()
	r.sessions[viewerID] = &Session{conn: conn}
	observability.ConnectedViewers.Set(float64(len(r.sessions)))
	r.mu.Unlock()
}

func (r *Registry) Remove(viewerID string) {
	r.mu.Lock()
	if s, ok := r.sessions[viewerID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, viewerID)
	}
	observability.ConnectedViewers.Set(float64(len(r.sessions)))
	r.mu.Unlock()
}

// Broadcast sends the update to every viewer, dropping sessions whose
// connection has gone away.
func (r *Registry) Broadcast(u Update) {
	r.mu.RLock()
	targets := make(map[string]*Session, len(r.sessions))
	for id, s := range r.sessions {
		targets[id] = s
	}
	r.mu.RUnlock()

	var dead []string
	for id, s := range targets {
		if err := s.Send(u); err != nil {
			r.logger.Warn("viewer send failed, dropping session", "viewer", id, "error", err)
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.Remove(id)
	}
}

// Count returns the number of connected viewers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
