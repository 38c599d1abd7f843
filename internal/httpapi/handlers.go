// Package httpapi exposes the reconciler to its embedding page: the
// current itinerary and overlay state, the stop-completion and
// force-refresh entry points, and a websocket feed of overlay mutations.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/tripview/internal/mapview"
	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/push"
	"github.com/example/tripview/internal/reconciler"
)

type Server struct {
	Reconciler *reconciler.Reconciler
	State      *mapview.State
	Viewers    *push.Registry

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(rec *reconciler.Reconciler, state *mapview.State, viewers *push.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Reconciler: rec, State: state, Viewers: viewers, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/itinerary", s.handleItinerary).Methods("GET")
	s.mux.HandleFunc("/api/v1/stops/complete", s.handleCompleteStop).Methods("POST")
	s.mux.HandleFunc("/api/v1/refresh", s.handleRefresh).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{viewer_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type itineraryResponse struct {
	Status    string                  `json:"status"`
	Itinerary *models.TripSnapshot    `json:"itinerary"`
	Overlay   mapview.OverlaySnapshot `json:"overlay"`
}

func (s *Server) handleItinerary(w http.ResponseWriter, r *http.Request) {
	resp := itineraryResponse{
		Status:    "success",
		Itinerary: s.Reconciler.Snapshot(),
		Overlay:   s.State.Snapshot(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteStop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StopID string `json:"stopId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	if body.StopID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": "stopId is required"})
		return
	}
	if err := s.Reconciler.CompleteStop(r.Context(), body.StopID); err != nil {
		// Surfaced so the dashboard can alert and re-enable its control.
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, itineraryResponse{
		Status:    "success",
		Itinerary: s.Reconciler.Snapshot(),
		Overlay:   s.State.Snapshot(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Reconciler.Refresh(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["viewer_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.Warn("websocket upgrade failed", "viewer", id, "error", err)
		return
	}
	s.Viewers.Add(id, conn)
	// Bring the new viewer up to date immediately.
	if snap := s.Reconciler.Snapshot(); snap != nil {
		_ = conn.WriteJSON(push.Update{Type: "snapshot", Snapshot: snap})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
