package mapview

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Op is one surface mutation, suitable for broadcasting to live viewers.
type Op struct {
	Kind    string      `json:"kind"` // add_marker, add_route, remove_layer, raise_marker, fit_bounds
	Layer   LayerID     `json:"layer,omitempty"`
	Marker  *Marker     `json:"marker,omitempty"`
	Lines   []Polyline  `json:"lines,omitempty"`
	Bounds  *Bounds     `json:"bounds,omitempty"`
	Fit     *FitOptions `json:"fit,omitempty"`
	Raised  bool        `json:"raised,omitempty"`
}

// State is the headless Surface implementation: it holds the live layer set
// in memory so the HTTP API can serve it and the websocket registry can
// mirror every mutation to connected dashboards.
type State struct {
	mu       sync.RWMutex
	markers  map[LayerID]*markerState
	routes   map[LayerID][]Polyline
	lastFit  *fitState
	onMutate func(Op)
}

type markerState struct {
	Marker
	Raised bool
}

type fitState struct {
	Bounds Bounds
	Opts   FitOptions
}

func NewState() *State {
	return &State{
		markers: make(map[LayerID]*markerState),
		routes:  make(map[LayerID][]Polyline),
	}
}

// SetMutationHook registers a callback invoked after every successful
// mutation. Must be set before the surface is used; the hook runs on the
// mutating goroutine.
func (s *State) SetMutationHook(fn func(Op)) {
	s.mu.Lock()
	s.onMutate = fn
	s.mu.Unlock()
}

func (s *State) emit(op Op) {
	s.mu.RLock()
	fn := s.onMutate
	s.mu.RUnlock()
	if fn != nil {
		fn(op)
	}
}

func (s *State) AddMarker(m Marker) (LayerID, error) {
	id := LayerID(uuid.NewString())
	s.mu.Lock()
	s.markers[id] = &markerState{Marker: m}
	s.mu.Unlock()
	s.emit(Op{Kind: "add_marker", Layer: id, Marker: &m})
	return id, nil
}

func (s *State) AddPolyline(lines []Polyline) (LayerID, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("mapview: route layer needs at least one line")
	}
	id := LayerID(uuid.NewString())
	s.mu.Lock()
	s.routes[id] = lines
	s.mu.Unlock()
	s.emit(Op{Kind: "add_route", Layer: id, Lines: lines})
	return id, nil
}

func (s *State) RemoveLayer(id LayerID) error {
	s.mu.Lock()
	_, isMarker := s.markers[id]
	_, isRoute := s.routes[id]
	delete(s.markers, id)
	delete(s.routes, id)
	s.mu.Unlock()
	if !isMarker && !isRoute {
		return fmt.Errorf("mapview: no layer %s", id)
	}
	s.emit(Op{Kind: "remove_layer", Layer: id})
	return nil
}

func (s *State) HasLayer(id LayerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.markers[id]; ok {
		return true
	}
	_, ok := s.routes[id]
	return ok
}

func (s *State) RaiseMarker(id LayerID) error {
	s.mu.Lock()
	m, ok := s.markers[id]
	if ok {
		m.Raised = true
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("mapview: no marker %s", id)
	}
	s.emit(Op{Kind: "raise_marker", Layer: id, Raised: true})
	return nil
}

func (s *State) FitBounds(b Bounds, opts FitOptions) error {
	s.mu.Lock()
	s.lastFit = &fitState{Bounds: b, Opts: opts}
	s.mu.Unlock()
	s.emit(Op{Kind: "fit_bounds", Bounds: &b, Fit: &opts})
	return nil
}

// MarkerCount returns the number of rendered markers.
func (s *State) MarkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// RouteCount returns the number of rendered route layers.
func (s *State) RouteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}

// LastFit returns the most recent bounds fit, if any.
func (s *State) LastFit() (Bounds, FitOptions, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFit == nil {
		return Bounds{}, FitOptions{}, false
	}
	return s.lastFit.Bounds, s.lastFit.Opts, true
}

// OverlaySnapshot is the JSON view of the current layer set.
type OverlaySnapshot struct {
	Markers map[LayerID]Marker     `json:"markers"`
	Routes  map[LayerID][]Polyline `json:"routes"`
	Fit     *Bounds                `json:"fit,omitempty"`
}

// Snapshot copies the current layer set for serving over HTTP.
func (s *State) Snapshot() OverlaySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := OverlaySnapshot{
		Markers: make(map[LayerID]Marker, len(s.markers)),
		Routes:  make(map[LayerID][]Polyline, len(s.routes)),
	}
	for id, m := range s.markers {
		out.Markers[id] = m.Marker
	}
	for id, lines := range s.routes {
		cp := make([]Polyline, len(lines))
		copy(cp, lines)
		out.Routes[id] = cp
	}
	if s.lastFit != nil {
		b := s.lastFit.Bounds
		out.Fit = &b
	}
	return out
}
