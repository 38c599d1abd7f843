package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/routing"
)

// fakeDirections implements routing.DirectionsClient for tests. When block
// is set, Directions waits until release is closed before returning.
type fakeDirections struct {
	mu      sync.Mutex
	calls   int
	geom    []models.Coord
	err     error
	block   bool
	release chan struct{}
	started chan struct{}
}

func (f *fakeDirections) Directions(ctx context.Context, points []models.Coord) ([]models.Coord, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if block {
		<-f.release
	}
	return f.geom, f.err
}

func (f *fakeDirections) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func snapshotWithStops(coords ...models.Coord) *models.TripSnapshot {
	snap := &models.TripSnapshot{}
	for i, c := range coords {
		c := c
		typ := models.StopPickup
		if i%2 == 1 {
			typ = models.StopDropoff
		}
		snap.Stops = append(snap.Stops, models.Stop{
			StopID:      string(rune('a' + i)),
			Type:        typ,
			Status:      models.StopUpcoming,
			Coordinates: &c,
		})
	}
	return snap
}

func TestSignature_StableAcrossTinyDrift(t *testing.T) {
	a := []models.Coord{{Lat: 14.55000, Lon: 121.03000}, {Lat: 14.56000, Lon: 121.04000}}
	b := []models.Coord{{Lat: 14.550000004, Lon: 121.030000004}, {Lat: 14.56, Lon: 121.04}}
	if Signature(a) != Signature(b) {
		t.Fatalf("drift beyond 5th decimal changed signature: %q vs %q", Signature(a), Signature(b))
	}
	c := []models.Coord{{Lat: 14.5501, Lon: 121.03}, {Lat: 14.56, Lon: 121.04}}
	if Signature(a) == Signature(c) {
		t.Fatalf("4th-decimal move should change the signature")
	}
}

func TestRoutePoints_CollapsesNearDuplicates(t *testing.T) {
	snap := &models.TripSnapshot{FullRoutePolyline: []models.Coord{
		{Lat: 1, Lon: 1},
		{Lat: 1.000001, Lon: 1.000001}, // within epsilon of previous
		{Lat: 2, Lon: 2},
	}}
	pts := RoutePoints(snap)
	if len(pts) != 2 {
		t.Fatalf("expected 2 points after dedupe, got %d", len(pts))
	}
}

func TestRoutePoints_FallsBackToStops(t *testing.T) {
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	pts := RoutePoints(snap)
	if len(pts) != 2 {
		t.Fatalf("expected stop coordinates, got %d points", len(pts))
	}
	withNil := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	withNil.Stops[0].Coordinates = nil
	if got := len(RoutePoints(withNil)); got != 1 {
		t.Fatalf("expected nil-coordinate stop skipped, got %d points", got)
	}
}

func TestResolve_NilPlanForDegenerateRoute(t *testing.T) {
	r := New(nil, nil, nil, nil)
	plan, err := r.Resolve(context.Background(), snapshotWithStops(models.Coord{Lat: 1, Lon: 1}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan != nil {
		t.Fatalf("expected nil plan for a single-point itinerary")
	}
}

func TestResolve_ReusesUnchangedSignature(t *testing.T) {
	fd := &fakeDirections{geom: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}
	r := New(fd, routing.NewGuard(30*time.Second), routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})

	cur := &RenderedRoute{Signature: Signature(RoutePoints(snap)), Fallback: false}
	plan, err := r.Resolve(context.Background(), snap, cur)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan == nil || !plan.Reuse {
		t.Fatalf("expected reuse plan, got %+v", plan)
	}
	if fd.callCount() != 0 {
		t.Fatalf("reuse must not hit the directions service")
	}
}

func TestResolve_FallbackRenderRetriesExternal(t *testing.T) {
	fd := &fakeDirections{geom: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 1.5, Lon: 1.5}, {Lat: 2, Lon: 2}}}
	r := New(fd, routing.NewGuard(30*time.Second), routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})

	// Same signature but the current layer is a fallback: an external
	// source is available, so it must be retried rather than reused.
	cur := &RenderedRoute{Signature: Signature(RoutePoints(snap)), Fallback: true}
	plan, err := r.Resolve(context.Background(), snap, cur)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Reuse {
		t.Fatalf("fallback render must not be reused while external routing is available")
	}
	if fd.callCount() != 1 {
		t.Fatalf("expected one directions call, got %d", fd.callCount())
	}
	if plan.Fallback {
		t.Fatalf("external geometry is not a fallback render")
	}
}

func TestResolve_StraightLineWhenEverythingFails(t *testing.T) {
	fd := &fakeDirections{err: errors.New("boom")}
	r := New(fd, routing.NewGuard(30*time.Second), routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})

	plan, err := r.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan == nil || len(plan.Lines) != 1 {
		t.Fatalf("expected a single straight line, got %+v", plan)
	}
	if !plan.Fallback {
		t.Fatalf("straight line must be marked as a fallback render")
	}
	if plan.Lines[0].Style.Dash == "" {
		t.Fatalf("straight-line fallback should be dashed")
	}
	if plan.Lines[0].Style.Pane != paneFallback {
		t.Fatalf("straight line must render in the fallback pane, got %q", plan.Lines[0].Style.Pane)
	}
}

func TestResolve_SegmentsOutrankStraightLine(t *testing.T) {
	fd := &fakeDirections{err: errors.New("boom")}
	r := New(fd, routing.NewGuard(30*time.Second), routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	snap.FullRouteSegments = []models.RouteSegment{
		{Type: models.StopPickup, Precise: true, Points: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 1.5, Lon: 1.5}}},
		{Type: models.StopDropoff, Precise: false, Points: []models.Coord{{Lat: 1.5, Lon: 1.5}, {Lat: 2, Lon: 2}}},
	}

	plan, err := r.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Lines) != 2 {
		t.Fatalf("expected the two segment lines, got %d", len(plan.Lines))
	}
	if plan.Lines[0].Style.Pane != paneSegmentsPickup {
		t.Fatalf("pickup segment pane = %q", plan.Lines[0].Style.Pane)
	}
	if plan.Lines[1].Style.Pane != paneSegmentsDropoff {
		t.Fatalf("dropoff segment pane = %q", plan.Lines[1].Style.Pane)
	}
	if plan.Lines[1].Style.Dash == "" {
		t.Fatalf("imprecise segment should use the dashed style")
	}
}

func TestResolve_PreciseServerRouteSkipsExternal(t *testing.T) {
	fd := &fakeDirections{geom: []models.Coord{{Lat: 9, Lon: 9}, {Lat: 10, Lon: 10}}}
	r := New(fd, routing.NewGuard(30*time.Second), routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	snap.FullRouteIsPrecise = true
	snap.FullRouteSegments = []models.RouteSegment{
		{Type: models.StopPickup, Precise: true, Points: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
	}

	plan, err := r.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fd.callCount() != 0 {
		t.Fatalf("precise server geometry must not trigger an external call")
	}
	if plan.Fallback {
		t.Fatalf("precise segments are not a fallback render")
	}
}

func TestResolve_RateLimitStartsCooldown(t *testing.T) {
	fd := &fakeDirections{err: routing.ErrRateLimited}
	guard := routing.NewGuard(30 * time.Second)
	r := New(fd, guard, routing.NewCache(time.Minute), nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})

	if _, err := r.Resolve(context.Background(), snap, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !guard.ShouldSkip(time.Now()) {
		t.Fatalf("429 must start the cooldown window")
	}

	// While suppressed, the next resolve never reaches the service.
	before := fd.callCount()
	if _, err := r.Resolve(context.Background(), snap, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fd.callCount() != before {
		t.Fatalf("external call made during cooldown")
	}
	if guard.ShouldSkip(time.Now().Add(31 * time.Second)) {
		t.Fatalf("cooldown should expire after its window")
	}
}

func TestResolve_CachedGeometrySkipsExternal(t *testing.T) {
	fd := &fakeDirections{geom: []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}
	cache := routing.NewCache(time.Minute)
	r := New(fd, routing.NewGuard(30*time.Second), cache, nil)
	snap := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})

	if _, err := r.Resolve(context.Background(), snap, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fd.callCount() != 1 {
		t.Fatalf("expected one external call, got %d", fd.callCount())
	}

	plan, err := r.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fd.callCount() != 1 {
		t.Fatalf("second resolve should be served from cache")
	}
	if plan.Fallback {
		t.Fatalf("cached geometry is not a fallback render")
	}
}

func TestResolve_SupersededResponseDiscarded(t *testing.T) {
	fd := &fakeDirections{
		geom:    []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}},
		block:   true,
		release: make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	r := New(fd, routing.NewGuard(30*time.Second), nil, nil)

	first := snapshotWithStops(models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	second := snapshotWithStops(models.Coord{Lat: 3, Lon: 3}, models.Coord{Lat: 4, Lon: 4})

	errs := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), first, nil)
		errs <- err
	}()
	<-fd.started // first request is in flight

	go func() {
		_, _ = r.Resolve(context.Background(), second, nil)
	}()
	<-fd.started // second request advanced the generation

	close(fd.release)
	if err := <-errs; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded for the older request, got %v", err)
	}
}
