package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxel_engine_tick_seconds",
		Help:    "The time taken by a single engine tick.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	ticksPerSecond = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_engine_tps",
		Help: "The average number of ticks per second over the last sample.",
	})

	dirtyChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_engine_dirty_chunks_total",
		Help: "The number of chunks marked dirty by merged edits.",
	})
)
