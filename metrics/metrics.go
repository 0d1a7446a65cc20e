// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TileCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_tile_cache_hits_total",
		Help: "Tile lookups served from the cache",
	})
	TileCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_tile_cache_misses_total",
		Help: "Tile lookups that created a cache entry",
	})
	TileCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_tile_cache_evictions_total",
		Help: "Cache entries dropped to stay within capacity",
	})
	TileLoadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_tile_load_failures_total",
		Help: "Tiles that ended in the error state",
	})
	ImageLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapview_image_loads_total",
		Help: "HTTP image loads by outcome",
	}, []string{"status"})
	ImageLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapview_image_load_duration_ms",
		Help:    "HTTP image load duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	ClusterRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_cluster_runs_total",
		Help: "Full clustering computations",
	})
	ClusterMergePasses = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapview_cluster_merge_passes",
		Help:    "Merge passes needed to reach the fixed point",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})
	SurfacesAllocated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapview_surfaces_allocated_total",
		Help: "Compositing surfaces allocated",
	})
	SurfacesLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapview_surfaces_live",
		Help: "Compositing surfaces currently held by compositors",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapview_tick_duration_ms",
		Help:    "Compositor tick duration in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 16, 33, 50, 100},
	})
)

func init() {
	prometheus.MustRegister(TileCacheHits)
	prometheus.MustRegister(TileCacheMisses)
	prometheus.MustRegister(TileCacheEvictions)
	prometheus.MustRegister(TileLoadFailures)
	prometheus.MustRegister(ImageLoads)
	prometheus.MustRegister(ImageLoadDuration)
	prometheus.MustRegister(ClusterRuns)
	prometheus.MustRegister(ClusterMergePasses)
	prometheus.MustRegister(SurfacesAllocated)
	prometheus.MustRegister(SurfacesLive)
	prometheus.MustRegister(TickDuration)
}

// Handler serves the registered metrics.
func Handler() http.Handler { return promhttp.Handler() }
