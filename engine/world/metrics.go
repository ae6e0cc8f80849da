package world

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_grid_live_chunks",
		Help: "The number of decompressed chunks held by voxel grids.",
	})

	compressedChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_grid_compressed_chunks",
		Help: "The number of compressed chunks held by voxel grids.",
	})

	compressedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_grid_compressed_bytes",
		Help: "The size in bytes of all compressed chunks held by voxel grids.",
	})

	compressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_grid_compressions_total",
		Help: "The number of live chunks compressed to respect the cache budget.",
	})

	flushedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_grid_flushed_chunks_total",
		Help: "The chunks returned to a grid by local cache flushes, by result.",
	}, []string{"result"})

	mergedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_grid_merged_chunks_total",
		Help: "The number of staged chunks written into a grid.",
	})

	flushBackpressure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_grid_flush_backpressure_total",
		Help: "The number of local cache flushes that found the flush channel full.",
	})
)

const (
	flushAccepted  = "accepted"
	flushStale     = "stale"
	flushDuplicate = "duplicate"
)
