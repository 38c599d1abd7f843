package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotFetches       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "snapshot_fetches_total", Help: "Total snapshot fetch attempts"})
	SnapshotFetchErrors   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "snapshot_fetch_errors_total", Help: "Snapshot fetches that failed or returned a malformed payload"})
	SnapshotsApplied      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "snapshots_applied_total", Help: "Snapshots that replaced the held state"})
	SnapshotsStale        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "snapshots_stale_discarded_total", Help: "Snapshot completions discarded because a newer one was already applied"})
	RouteResolutions      = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "tripview", Name: "route_resolutions_total", Help: "Route resolutions by outcome"}, []string{"outcome"})
	ExternalRouteCalls    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "external_route_calls_total", Help: "Requests issued to the external directions service"})
	ExternalRouteErrors   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "external_route_errors_total", Help: "Failed external directions requests"})
	ExternalRateLimited   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "external_route_rate_limited_total", Help: "External directions requests rejected with HTTP 429"})
	RateLimitSkips        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tripview", Name: "rate_limit_skips_total", Help: "External calls skipped while the cooldown window is active"})
	StopCompletions       = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "tripview", Name: "stop_completions_total", Help: "Stop completion requests by result"}, []string{"result"})
	SyncDuration          = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "tripview", Name: "sync_duration_seconds", Help: "Duration of one snapshot apply cycle", Buckets: prometheus.DefBuckets})
	LoaderDepth           = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "tripview", Name: "loader_depth", Help: "Depth of the shared loading indicator counter"})
	ConnectedViewers      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "tripview", Name: "connected_viewers", Help: "Dashboard viewers connected over websocket"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tripview", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tripview",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Route resolution outcomes.
const (
	OutcomeReuse    = "reuse"
	OutcomeSegments = "segments"
	OutcomeExternal = "external"
	OutcomeCached   = "cached"
	OutcomeStraight = "straight_line"
	OutcomeCleared  = "cleared"
)
