// Package overlay reconciles the surface layer set against the latest trip
// snapshot. Markers are cheap and redrawn every cycle; the route layer is
// the expensive piece and only changes when the resolver says so.
package overlay

import (
	"fmt"
	"log/slog"

	"github.com/example/tripview/internal/mapview"
	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/resolver"
)

const (
	fitPadding = 60
	fitMaxZoom = 17
)

type routeLayer struct {
	id        mapview.LayerID
	signature string
	fallback  bool
	bounds    *mapview.Bounds
}

// Synchronizer owns the layer bookkeeping for one surface. Not safe for
// concurrent use; the reconciler serializes apply cycles.
type Synchronizer struct {
	surface mapview.Surface
	logger  *slog.Logger

	markers []mapview.LayerID
	route   *routeLayer
}

func New(surface mapview.Surface, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{surface: surface, logger: logger}
}

// Rendered describes the current route layer for the resolver's reuse
// check, or nil when none is drawn.
func (s *Synchronizer) Rendered() *resolver.RenderedRoute {
	if s.route == nil {
		return nil
	}
	return &resolver.RenderedRoute{Signature: s.route.signature, Fallback: s.route.fallback}
}

// Sync redraws the marker set for snap and applies plan to the route layer.
// Every individual surface mutation is best-effort: one failing marker or
// layer never aborts the rest of the cycle.
func (s *Synchronizer) Sync(snap *models.TripSnapshot, plan *resolver.RouteRenderPlan) {
	s.clearMarkers()

	if !snap.Active() {
		s.clearRoute()
		return
	}

	var boundsPts []models.Coord

	if snap.DriverPosition != nil {
		pos := *snap.DriverPosition
		s.try("add driver marker", func() error {
			id, err := s.surface.AddMarker(mapview.Marker{
				Position: pos,
				Kind:     mapview.MarkerDriver,
				Popup:    "Driver start location",
			})
			if err != nil {
				return err
			}
			s.markers = append(s.markers, id)
			boundsPts = append(boundsPts, pos)
			return nil
		})
	}

	for i, stop := range snap.Stops {
		if stop.Coordinates == nil {
			continue
		}
		pos := *stop.Coordinates
		kind := mapview.MarkerPickup
		title := "Pickup"
		if stop.Type == models.StopDropoff {
			kind = mapview.MarkerDropoff
			title = "Drop-off"
		}
		addr := stop.Address
		if addr == "" {
			addr = "--"
		}
		marker := mapview.Marker{
			Position:  pos,
			Kind:      kind,
			Label:     fmt.Sprintf("%d", i+1),
			Popup:     fmt.Sprintf("%s: %s", title, addr),
			PopupOpen: stop.Status == models.StopCurrent,
		}
		s.try("add stop marker", func() error {
			id, err := s.surface.AddMarker(marker)
			if err != nil {
				return err
			}
			s.markers = append(s.markers, id)
			boundsPts = append(boundsPts, pos)
			return nil
		})
	}

	s.applyRoutePlan(plan)

	// Markers must stay visible and clickable above route lines.
	for _, id := range s.markers {
		id := id
		s.try("raise marker", func() error { return s.surface.RaiseMarker(id) })
	}

	var combined *mapview.Bounds
	if s.route != nil && s.route.bounds != nil {
		b := *s.route.bounds
		combined = &b
	}
	for _, p := range boundsPts {
		if combined == nil {
			b := mapview.BoundsFromPoint(p)
			combined = &b
		} else {
			b := combined.Extend(p)
			combined = &b
		}
	}
	if combined != nil {
		// Exactly one fit per cycle; repeated fits cause visible jitter.
		b := *combined
		s.try("fit bounds", func() error {
			return s.surface.FitBounds(b, mapview.FitOptions{Padding: fitPadding, MaxZoom: fitMaxZoom})
		})
	}
}

func (s *Synchronizer) applyRoutePlan(plan *resolver.RouteRenderPlan) {
	if plan == nil {
		s.clearRoute()
		return
	}
	if plan.Reuse {
		// Nothing to redraw; the rendered layer already matches.
		return
	}
	s.clearRoute()
	s.try("add route layer", func() error {
		id, err := s.surface.AddPolyline(plan.Lines)
		if err != nil {
			return err
		}
		s.route = &routeLayer{id: id, signature: plan.Signature, fallback: plan.Fallback, bounds: plan.Bounds}
		return nil
	})
}

// Clear removes every layer this synchronizer created.
func (s *Synchronizer) Clear() {
	s.clearMarkers()
	s.clearRoute()
}

func (s *Synchronizer) clearMarkers() {
	for _, id := range s.markers {
		id := id
		s.try("remove marker", func() error { return s.surface.RemoveLayer(id) })
	}
	s.markers = nil
}

func (s *Synchronizer) clearRoute() {
	if s.route == nil {
		return
	}
	id := s.route.id
	s.try("remove route layer", func() error { return s.surface.RemoveLayer(id) })
	s.route = nil
}

func (s *Synchronizer) try(op string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("overlay operation panicked", "op", op, "panic", rec)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn("overlay operation failed", "op", op, "error", err)
	}
}
