package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks processor counters. A nil *Metrics discards everything.
type Metrics struct {
	processed prometheus.Counter
	removed   prometheus.Counter
	panics    prometheus.Counter
	batches   prometheus.Counter
	surface   prometheus.Histogram
}

// NewMetrics creates the processor collectors and registers them with reg. A
// nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxel_processor_chunks_total",
			Help: "The number of dirty chunks whose collision entry was regenerated.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxel_processor_removed_chunks_total",
			Help: "The number of chunks removed from the collision index for holding no surface voxels.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxel_processor_panics_total",
			Help: "The number of chunk jobs that panicked.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxel_processor_batches_total",
			Help: "The number of batches handed to workers.",
		}),
		surface: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxel_processor_surface_voxels",
			Help:    "The number of surface voxels per processed chunk.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.removed, m.panics, m.batches, m.surface)
	}
	return m
}

// ObserveResult records the outcome of a single chunk job.
func (m *Metrics) ObserveResult(res Result) {
	if m == nil {
		return
	}
	if res.Failed {
		m.panics.Inc()
		return
	}
	m.processed.Inc()
	if res.Tree == nil {
		m.removed.Inc()
	}
	m.surface.Observe(float64(res.Surface))
}

// IncBatches increments the batch counter.
func (m *Metrics) IncBatches() {
	if m == nil {
		return
	}
	m.batches.Inc()
}
