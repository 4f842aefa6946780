package driver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var compilesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "goscript",
		Subsystem: "driver",
		Name:      "compiles_total",
		Help:      "Total number of compile() invocations by outcome.",
	},
	[]string{"outcome"},
)

var cacheHitsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "goscript",
		Subsystem: "driver",
		Name:      "cache_hits_total",
		Help:      "Total number of compile() calls satisfied from ArtifactCache.",
	},
)

var stageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "goscript",
		Subsystem: "driver",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"stage"},
)
