package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tile transport metrics
	TilesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "tiles",
		Name:      "fetched_total",
		Help:      "Total map tiles fetched from the provider",
	}, []string{"layer"})

	TileFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "tiles",
		Name:      "fetch_errors_total",
		Help:      "Total tile fetch failures",
	}, []string{"layer"})

	TileFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terrainav",
		Subsystem: "tiles",
		Name:      "fetch_duration_seconds",
		Help:      "Tile fetch latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"layer"})

	RateLimitEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "tiles",
		Name:      "rate_limit_events_total",
		Help:      "Total throttling responses received from the provider",
	}, []string{"layer"})

	// Tile cache metrics
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total tile cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total tile cache misses",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total tiles evicted from the cache",
	})

	// Mission execution metrics
	CapturesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "mission",
		Name:      "captures_completed_total",
		Help:      "Total capture points successfully imaged",
	})

	CaptureErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "mission",
		Name:      "capture_errors_total",
		Help:      "Total capture points that failed after retries",
	})

	CapturesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terrainav",
		Subsystem: "mission",
		Name:      "captures_skipped_total",
		Help:      "Total capture points skipped on resume",
	})

	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "terrainav",
		Subsystem: "mission",
		Name:      "capture_duration_seconds",
		Help:      "Duration of one capture point, including stitching",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
