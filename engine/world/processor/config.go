package processor

import (
	"log/slog"
	"runtime"

	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
)

// Config holds the tunable parameters of a Processor. The zero value is
// usable; sensible defaults are applied by withDefaults.
type Config struct {
	// Log is the Logger used to report failed jobs. If nil, slog.Default() is
	// used.
	Log *slog.Logger
	// Workers is the number of goroutines generating chunk entries. Defaults
	// to the number of CPUs.
	Workers int
	// BatchSize caps the chunks handled by a worker with a single LocalCache.
	BatchSize int
	// Palette classifies voxels as empty or solid.
	Palette voxel.Palette
	// Flusher receives the local caches of workers once their batch is done.
	// If nil, caches are flushed into the grid directly by Process.
	Flusher *world.Flusher
	// Handler is notified of every chunk processed.
	Handler Handler
	// Metrics records processor counters. It may be nil.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Palette.Len() == 0 {
		c.Palette = voxel.DefaultPalette()
	}
	if c.Handler == nil {
		c.Handler = NopHandler{}
	}
	return c
}

// New starts the workers of a Processor that maintains index.
func (c Config) New(index *bvt.Index) *Processor {
	c = c.withDefaults()
	p := &Processor{
		conf:  c,
		index: index,
		jobs:  make(chan job, c.Workers),
	}
	p.running.Add(c.Workers)
	for range c.Workers {
		go p.worker()
	}
	return p
}
