// Package mapview abstracts the map the reconciler draws on. The overlay
// synchronizer only talks to the Surface interface, so any mapping client
// (or a headless state model, see State) can sit behind it.
package mapview

import "github.com/example/tripview/internal/models"

// LayerID identifies one rendered layer (a marker or a route group).
type LayerID string

type MarkerKind string

const (
	MarkerDriver  MarkerKind = "driver"
	MarkerPickup  MarkerKind = "pickup"
	MarkerDropoff MarkerKind = "dropoff"
)

// Marker is one map pin. Label carries the sequence badge for stop markers.
type Marker struct {
	Position  models.Coord `json:"position"`
	Kind      MarkerKind   `json:"kind"`
	Label     string       `json:"label,omitempty"`
	Popup     string       `json:"popup,omitempty"`
	PopupOpen bool         `json:"popupOpen,omitempty"`
}

// LineStyle mirrors the styling hints a map client needs: solid precise
// lines vs dashed lower-opacity approximations, and a named pane that fixes
// stacking order between route sources.
type LineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
	Dash    string  `json:"dash,omitempty"`
	Pane    string  `json:"pane,omitempty"`
}

// Polyline is one styled line. A route layer groups one or more of them.
type Polyline struct {
	Points []models.Coord `json:"points"`
	Style  LineStyle      `json:"style"`
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// BoundsFromPoint returns a degenerate box containing a single point.
func BoundsFromPoint(p models.Coord) Bounds {
	return Bounds{MinLat: p.Lat, MinLon: p.Lon, MaxLat: p.Lat, MaxLon: p.Lon}
}

// Extend grows the box to include p.
func (b Bounds) Extend(p models.Coord) Bounds {
	if p.Lat < b.MinLat {
		b.MinLat = p.Lat
	}
	if p.Lat > b.MaxLat {
		b.MaxLat = p.Lat
	}
	if p.Lon < b.MinLon {
		b.MinLon = p.Lon
	}
	if p.Lon > b.MaxLon {
		b.MaxLon = p.Lon
	}
	return b
}

// Union merges two boxes.
func (b Bounds) Union(o Bounds) Bounds {
	b = b.Extend(models.Coord{Lat: o.MinLat, Lon: o.MinLon})
	return b.Extend(models.Coord{Lat: o.MaxLat, Lon: o.MaxLon})
}

// Contains reports whether p falls inside the box (inclusive).
func (b Bounds) Contains(p models.Coord) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundsFromPoints builds the box covering pts. ok is false when pts is
// empty.
func BoundsFromPoints(pts []models.Coord) (Bounds, bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b := BoundsFromPoint(pts[0])
	for _, p := range pts[1:] {
		b = b.Extend(p)
	}
	return b, true
}

// FitOptions controls a bounds fit: pixel padding and a zoom ceiling.
type FitOptions struct {
	Padding int `json:"padding"`
	MaxZoom int `json:"maxZoom"`
}

// Surface is the minimal map client contract the synchronizer needs.
type Surface interface {
	AddMarker(m Marker) (LayerID, error)
	// AddPolyline adds one route layer grouping the given lines.
	AddPolyline(lines []Polyline) (LayerID, error)
	RemoveLayer(id LayerID) error
	HasLayer(id LayerID) bool
	// RaiseMarker lifts a marker above route layers so it stays clickable.
	RaiseMarker(id LayerID) error
	FitBounds(b Bounds, opts FitOptions) error
}
