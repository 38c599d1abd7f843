// Package reconciler orchestrates the trip view: it polls the backend for
// itinerary snapshots, runs route resolution, and drives the overlay
// synchronizer. One Reconciler owns one poll loop and one surface.
package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/tripview/internal/ingest"
	"github.com/example/tripview/internal/models"
	"github.com/example/tripview/internal/observability"
	"github.com/example/tripview/internal/overlay"
	"github.com/example/tripview/internal/resolver"
)

// EventSink receives reconciler lifecycle events. Optional.
type EventSink interface {
	Publish(ev ingest.Event) error
}

// Options wires a Reconciler. Fetcher, Resolver and Overlay are required.
type Options struct {
	Fetcher              *Fetcher
	Resolver             *resolver.Resolver
	Overlay              *overlay.Synchronizer
	Loader               *Loader
	Events               EventSink
	CompleteStopEndpoint string
	DriverID             string
	PollInterval         time.Duration
	HTTPClient           *http.Client
	Logger               *slog.Logger
}

// Reconciler holds all previously module-global state behind one instance
// with an explicit start/stop lifecycle.
type Reconciler struct {
	fetcher  *Fetcher
	resolver *resolver.Resolver
	overlay  *overlay.Synchronizer
	loader   *Loader
	events   EventSink
	logger   *slog.Logger

	completeEndpoint string
	driverID         string
	interval         time.Duration
	client           *http.Client

	// gen stamps every fetch; apply discards completions older than the
	// newest applied one. The route path has its own counter inside the
	// resolver; this guard closes the same race on the snapshot path.
	gen atomic.Uint64

	mu       sync.Mutex
	applied  uint64
	snapshot *models.TripSnapshot
	loaded   bool

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loader := opts.Loader
	if loader == nil {
		loader = NewLoader()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		fetcher:          opts.Fetcher,
		resolver:         opts.Resolver,
		overlay:          opts.Overlay,
		loader:           loader,
		events:           opts.Events,
		logger:           logger,
		completeEndpoint: opts.CompleteStopEndpoint,
		driverID:         opts.DriverID,
		interval:         interval,
		client:           client,
	}
}

// Start launches the poll loop: one immediate fetch, then one per interval.
// Returns an error if the loop is already running.
func (r *Reconciler) Start() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stop != nil {
		return errors.New("reconciler already started")
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
	return nil
}

// Stop cancels the poll loop and waits for it to exit. Safe to call when
// not started.
func (r *Reconciler) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop = nil
	r.done = nil
}

func (r *Reconciler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()
	if err := r.refreshOnce(ctx); err != nil {
		r.logger.Warn("initial snapshot fetch failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.refreshOnce(ctx); err != nil {
				r.logger.Warn("snapshot poll failed", "error", err)
			}
		}
	}
}

// Refresh forces an out-of-band fetch. It may run concurrently with the
// scheduled poll; whichever completion carries the newer generation wins.
func (r *Reconciler) Refresh(ctx context.Context) error {
	return r.refreshOnce(ctx)
}

func (r *Reconciler) refreshOnce(ctx context.Context) error {
	gen := r.gen.Add(1)

	// The loader only covers the very first fetch so background polls do
	// not flicker the indicator.
	if !r.hasLoaded() {
		r.loader.Show()
		defer r.loader.Hide()
	}

	observability.SnapshotFetches.Inc()
	snap, err := r.fetcher.Fetch(ctx)
	if err != nil {
		observability.SnapshotFetchErrors.Inc()
		return err
	}
	return r.apply(ctx, gen, snap)
}

// apply replaces the held snapshot and reconciles the surface. A
// completion whose generation is older than the newest applied one is
// discarded: a slow response never overwrites a newer render.
func (r *Reconciler) apply(ctx context.Context, gen uint64, snap *models.TripSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen <= r.applied {
		observability.SnapshotsStale.Inc()
		r.logger.Debug("discarding stale snapshot completion", "generation", gen, "applied", r.applied)
		return nil
	}
	r.applied = gen
	r.snapshot = snap
	r.loaded = true

	start := time.Now()
	plan, err := r.resolver.Resolve(ctx, snap, r.overlay.Rendered())
	if errors.Is(err, resolver.ErrSuperseded) {
		// A newer resolve owns the route layer now; markers still follow
		// this snapshot on the next cycle.
		return nil
	}
	r.overlay.Sync(snap, plan)
	observability.SnapshotsApplied.Inc()
	observability.SyncDuration.Observe(time.Since(start).Seconds())

	r.publish(ingest.Event{
		Type:             ingest.EventSnapshotApplied,
		DriverID:         r.driverID,
		Signature:        resolver.Signature(resolver.RoutePoints(snap)),
		StopCount:        len(snap.Stops),
		CurrentStopIndex: snap.CurrentStopIndex,
		Position:         snap.DriverPosition,
		OccurredAt:       time.Now().UTC(),
	})
	return nil
}

// Snapshot returns the most recently applied snapshot, or nil before the
// first successful fetch.
func (r *Reconciler) Snapshot() *models.TripSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// CompleteStop marks a stop finished on the backend. When the response
// carries a refreshed itinerary it is applied immediately; otherwise an
// out-of-band refresh runs. Errors surface to the caller so the UI can
// re-enable the triggering control.
func (r *Reconciler) CompleteStop(ctx context.Context, stopID string) error {
	if r.completeEndpoint == "" {
		return errors.New("complete-stop endpoint not configured")
	}
	if stopID == "" {
		return errors.New("stopId is required")
	}

	body, err := json.Marshal(map[string]string{"stopId": stopID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.completeEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		observability.StopCompletions.WithLabelValues("error").Inc()
		return fmt.Errorf("complete stop: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.StopCompletions.WithLabelValues("error").Inc()
		return fmt.Errorf("complete stop: status %d", resp.StatusCode)
	}

	var env snapshotEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	observability.StopCompletions.WithLabelValues("ok").Inc()
	r.publish(ingest.Event{
		Type:       ingest.EventStopCompleted,
		DriverID:   r.driverID,
		StopID:     stopID,
		OccurredAt: time.Now().UTC(),
	})

	if decodeErr == nil && env.Itinerary != nil {
		env.Itinerary.Normalize()
		return r.apply(ctx, r.gen.Add(1), env.Itinerary)
	}
	// No itinerary in the response; fetch one out of band.
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("post-completion refresh failed", "error", err)
	}
	return nil
}

func (r *Reconciler) hasLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func (r *Reconciler) publish(ev ingest.Event) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ev); err != nil {
		r.logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}
