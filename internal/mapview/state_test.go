package mapview

import (
	"testing"

	"github.com/example/tripview/internal/models"
)

func TestState_MarkerLifecycle(t *testing.T) {
	s := NewState()
	id, err := s.AddMarker(Marker{Position: models.Coord{Lat: 1, Lon: 2}, Kind: MarkerDriver})
	if err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	if !s.HasLayer(id) {
		t.Fatalf("marker layer missing")
	}
	if err := s.RaiseMarker(id); err != nil {
		t.Fatalf("RaiseMarker: %v", err)
	}
	if err := s.RemoveLayer(id); err != nil {
		t.Fatalf("RemoveLayer: %v", err)
	}
	if s.HasLayer(id) {
		t.Fatalf("layer still present after removal")
	}
	if err := s.RemoveLayer(id); err == nil {
		t.Fatalf("removing an unknown layer must fail")
	}
	if err := s.RaiseMarker("nope"); err == nil {
		t.Fatalf("raising an unknown marker must fail")
	}
}

func TestState_EmptyRouteRejected(t *testing.T) {
	s := NewState()
	if _, err := s.AddPolyline(nil); err == nil {
		t.Fatalf("empty route layer must be rejected")
	}
}

func TestState_MutationHookSeesEveryOp(t *testing.T) {
	s := NewState()
	var kinds []string
	s.SetMutationHook(func(op Op) { kinds = append(kinds, op.Kind) })

	id, _ := s.AddMarker(Marker{Position: models.Coord{Lat: 1, Lon: 1}})
	_, _ = s.AddPolyline([]Polyline{{Points: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}})
	_ = s.RaiseMarker(id)
	_ = s.FitBounds(Bounds{MinLat: 1, MinLon: 1, MaxLat: 2, MaxLon: 2}, FitOptions{Padding: 60, MaxZoom: 17})
	_ = s.RemoveLayer(id)

	want := []string{"add_marker", "add_route", "raise_marker", "fit_bounds", "remove_layer"}
	if len(kinds) != len(want) {
		t.Fatalf("ops = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("op %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestState_SnapshotCopies(t *testing.T) {
	s := NewState()
	_, _ = s.AddMarker(Marker{Position: models.Coord{Lat: 1, Lon: 1}})
	routeID, _ := s.AddPolyline([]Polyline{{Points: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}})

	snap := s.Snapshot()
	if len(snap.Markers) != 1 || len(snap.Routes) != 1 {
		t.Fatalf("snapshot = %d markers, %d routes", len(snap.Markers), len(snap.Routes))
	}
	// Mutating the live state must not change the snapshot.
	_ = s.RemoveLayer(routeID)
	if len(snap.Routes) != 1 {
		t.Fatalf("snapshot shares storage with live state")
	}
}

func TestBounds_ExtendAndUnion(t *testing.T) {
	b := BoundsFromPoint(models.Coord{Lat: 1, Lon: 1})
	b = b.Extend(models.Coord{Lat: 3, Lon: -1})
	if !b.Contains(models.Coord{Lat: 2, Lon: 0}) {
		t.Fatalf("extended bounds should contain interior point")
	}
	u := b.Union(Bounds{MinLat: -5, MinLon: 5, MaxLat: -4, MaxLon: 6})
	if !u.Contains(models.Coord{Lat: -5, Lon: 6}) || !u.Contains(models.Coord{Lat: 3, Lon: 1}) {
		t.Fatalf("union does not cover both boxes: %+v", u)
	}
}
