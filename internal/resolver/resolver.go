// Package resolver decides which route geometry to display for a snapshot:
// server-computed segments, an external directions lookup, or a straight
// line as last resort. Resolutions are keyed by a content signature so an
// unchanged itinerary costs no network or geometry work.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/tripview/internal/mapview"
	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/observability"
	"github.com/example/tripview/internal/routing"
)

// ErrSuperseded is returned when a newer Resolve call advanced the request
// generation while this one was waiting on the external service. The caller
// must discard the result and keep its current layer.
var ErrSuperseded = errors.New("route resolution superseded")

// Consecutive points closer than this on both axes collapse into one.
const coordEpsilon = 1e-5

const routeColor = "#0b63d6"

// Named panes fix the stacking order between route sources: pickup segments
// above the external route, drop-off segments and the straight-line
// fallback below it. Markers are raised above all of them.
const (
	paneSegmentsPickup  = "route-segments-pickup"
	paneSegmentsDropoff = "route-segments-dropoff"
	paneDirections      = "route-directions"
	paneFallback        = "route-fallback"
)

var (
	preciseStyle  = mapview.LineStyle{Color: routeColor, Weight: 5, Opacity: 0.88}
	approxStyle   = mapview.LineStyle{Color: routeColor, Weight: 4, Opacity: 0.6, Dash: "6 8"}
	straightStyle = mapview.LineStyle{Color: routeColor, Weight: 4, Opacity: 0.7, Dash: "6 8", Pane: paneFallback}
)

// RenderedRoute describes the route layer currently on the surface, as far
// as the resolver cares: its signature and whether it was a fallback render.
type RenderedRoute struct {
	Signature string
	Fallback  bool
}

// RouteRenderPlan is the resolver's verdict for one snapshot. A nil plan
// means fewer than two usable points: the caller clears any route overlay.
// Reuse means the existing layer already matches; nothing to redraw.
type RouteRenderPlan struct {
	Reuse     bool
	Signature string
	Fallback  bool
	Lines     []mapview.Polyline
	Bounds    *mapview.Bounds
}

// Loader is the shared loading-indicator counter; the resolver holds it
// while an external request is in flight.
type Loader interface {
	Show()
	Hide()
}

// Resolver chooses and caches route geometry. Directions may be nil when no
// routing credential is configured.
type Resolver struct {
	Directions routing.DirectionsClient
	Guard      *routing.Guard
	Cache      routing.GeometryCache
	Loader     Loader
	Logger     *slog.Logger

	gen atomic.Uint64
}

func New(directions routing.DirectionsClient, guard *routing.Guard, cache routing.GeometryCache, logger *slog.Logger) *Resolver {
	return &Resolver{Directions: directions, Guard: guard, Cache: cache, Logger: logger}
}

// Signature derives the change-detection key from a point list: fixed
// 5-decimal precision, independent of object identity. Two lists differing
// only beyond the 5th decimal place map to the same signature.
func Signature(points []models.Coord) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lon))
	}
	return strings.Join(parts, "|")
}

// RoutePoints builds the ordered point list for a snapshot: the full route
// polyline when it has at least two points, otherwise the stop coordinates
// in visit order. Near-duplicate consecutive points are collapsed.
func RoutePoints(snap *models.TripSnapshot) []models.Coord {
	var points []models.Coord
	push := func(p models.Coord) {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
			return
		}
		if n := len(points); n > 0 {
			prev := points[n-1]
			if math.Abs(prev.Lat-p.Lat) < coordEpsilon && math.Abs(prev.Lon-p.Lon) < coordEpsilon {
				return
			}
		}
		points = append(points, p)
	}

	if snap != nil && len(snap.FullRoutePolyline) >= 2 {
		for _, p := range snap.FullRoutePolyline {
			push(p)
		}
	}
	if len(points) < 2 && snap != nil {
		points = points[:0]
		for _, st := range snap.Stops {
			if st.Coordinates == nil {
				continue
			}
			push(*st.Coordinates)
		}
	}
	return points
}

// Resolve produces the render plan for snap given what is currently on the
// surface. It never returns a hard error for external failures; those fall
// through to the straight-line fallback. ErrSuperseded is the only error a
// caller sees, and it means "keep what you have".
func (r *Resolver) Resolve(ctx context.Context, snap *models.TripSnapshot, cur *RenderedRoute) (*RouteRenderPlan, error) {
	points := RoutePoints(snap)
	if len(points) < 2 {
		observability.RouteResolutions.WithLabelValues(observability.OutcomeCleared).Inc()
		return nil, nil
	}

	sig := Signature(points)
	segs := usableSegments(snap)
	hasSegGeometry := len(segs) > 0
	serverPrecise := snap.FullRouteIsPrecise && hasSegGeometry
	wantExternal := r.Directions != nil && !serverPrecise

	// Primary redundant-work elimination: an unchanged signature reuses the
	// rendered layer outright, unless it was a fallback render and a better
	// source is now worth trying.
	if cur != nil && cur.Signature == sig && (!cur.Fallback || !wantExternal) {
		observability.RouteResolutions.WithLabelValues(observability.OutcomeReuse).Inc()
		return &RouteRenderPlan{Reuse: true, Signature: sig, Fallback: cur.Fallback}, nil
	}

	var lines []mapview.Polyline
	fallback := false
	outcome := ""

	if hasSegGeometry {
		lines = segmentLines(segs)
		fallback = !snap.FullRouteIsPrecise
		outcome = observability.OutcomeSegments
	}

	if wantExternal {
		if geom, ok := r.cachedGeometry(sig); ok {
			lines = []mapview.Polyline{directionsLine(geom)}
			fallback = false
			outcome = observability.OutcomeCached
		} else if r.Guard != nil && r.Guard.ShouldSkip(time.Now()) {
			observability.RateLimitSkips.Inc()
			r.log().Warn("skipping external routing during cooldown", "until", r.Guard.SuppressedUntil())
		} else {
			geom, err := r.requestDirections(ctx, points)
			switch {
			case errors.Is(err, ErrSuperseded):
				return nil, ErrSuperseded
			case errors.Is(err, routing.ErrRateLimited):
				observability.ExternalRateLimited.Inc()
				if r.Guard != nil {
					r.Guard.RecordRateLimited(time.Now())
				}
				r.log().Warn("directions service rate limited, starting cooldown")
			case err != nil:
				observability.ExternalRouteErrors.Inc()
				r.log().Warn("directions request failed", "error", err)
			default:
				lines = []mapview.Polyline{directionsLine(geom)}
				fallback = false
				outcome = observability.OutcomeExternal
				if r.Cache != nil {
					r.Cache.Set(sig, geom)
				}
			}
		}
	}

	if len(lines) == 0 {
		style := straightStyle
		if serverPrecise {
			style = preciseStyle
			style.Pane = paneFallback
		}
		lines = []mapview.Polyline{{Points: points, Style: style}}
		fallback = !serverPrecise
		outcome = observability.OutcomeStraight
	}

	observability.RouteResolutions.WithLabelValues(outcome).Inc()

	plan := &RouteRenderPlan{Signature: sig, Fallback: fallback, Lines: lines}
	if b, ok := linesBounds(lines); ok {
		plan.Bounds = &b
	}
	return plan, nil
}

// requestDirections stamps the call with the current generation and
// discards the response when a newer Resolve has advanced it since. The
// underlying request is not aborted; the result is simply thrown away.
func (r *Resolver) requestDirections(ctx context.Context, points []models.Coord) ([]models.Coord, error) {
	id := r.gen.Add(1)
	if r.Loader != nil {
		r.Loader.Show()
		defer r.Loader.Hide()
	}
	observability.ExternalRouteCalls.Inc()
	geom, err := r.Directions.Directions(ctx, points)
	if r.gen.Load() != id {
		return nil, ErrSuperseded
	}
	return geom, err
}

func (r *Resolver) cachedGeometry(sig string) ([]models.Coord, bool) {
	if r.Cache == nil {
		return nil, false
	}
	return r.Cache.Get(sig)
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func usableSegments(snap *models.TripSnapshot) []models.RouteSegment {
	if snap == nil {
		return nil
	}
	out := make([]models.RouteSegment, 0, len(snap.FullRouteSegments))
	for _, seg := range snap.FullRouteSegments {
		if len(seg.Points) >= 2 {
			out = append(out, seg)
		}
	}
	return out
}

func segmentLines(segs []models.RouteSegment) []mapview.Polyline {
	lines := make([]mapview.Polyline, 0, len(segs))
	for _, seg := range segs {
		style := approxStyle
		if seg.Precise {
			style = preciseStyle
		}
		if seg.Type == models.StopDropoff {
			style.Pane = paneSegmentsDropoff
		} else {
			style.Pane = paneSegmentsPickup
		}
		lines = append(lines, mapview.Polyline{Points: seg.Points, Style: style})
	}
	return lines
}

func directionsLine(geom []models.Coord) mapview.Polyline {
	style := preciseStyle
	style.Pane = paneDirections
	return mapview.Polyline{Points: geom, Style: style}
}

func linesBounds(lines []mapview.Polyline) (mapview.Bounds, bool) {
	var b mapview.Bounds
	found := false
	for _, ln := range lines {
		lb, ok := mapview.BoundsFromPoints(ln.Points)
		if !ok {
			continue
		}
		if !found {
			b = lb
			found = true
			continue
		}
		b = b.Union(lb)
	}
	return b, found
}
