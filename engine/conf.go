package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/mapdb"
	"github.com/voxel-mapper/voxelcore/engine/world/processor"
)

// Config contains options for creating an Engine.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Palette classifies the voxel types of the map. If empty, the palette
	// stored in DB is used, or voxel.DefaultPalette if there is none.
	Palette voxel.Palette
	// CacheBudget is the number of bytes decompressed chunks may occupy before
	// the least recently used ones are compressed again. Ignored if
	// MaxCachedChunks is set.
	CacheBudget int
	// MaxCachedChunks is the number of chunks kept decompressed.
	MaxCachedChunks int
	// MaxCompressedPerTick caps the chunks compressed in a single tick.
	MaxCompressedPerTick int
	// FlushQueueSize is the capacity of the channel carrying the local caches
	// of readers back to the grid.
	FlushQueueSize int
	// Workers is the number of goroutines rebuilding the collision entries of
	// dirty chunks. If 0 or lower, the number of CPUs is used.
	Workers int
	// BatchSize is the number of chunks a worker handles with one cache.
	BatchSize int
	// TickInterval is the time between two ticks of Run. Defaults to 50ms.
	TickInterval time.Duration
	// DB stores the map. If nil, the map starts empty and Save does nothing.
	// The Engine takes ownership of DB and closes it on Close.
	DB *mapdb.DB
	// SaveOnClose saves the map to DB when the Engine is closed.
	SaveOnClose bool
	// Registerer registers the processor metrics. If nil, they are not
	// exported.
	Registerer prometheus.Registerer
}

// New creates an Engine using the fields of conf, loading the map stored in
// conf.DB if set. Run must be called to start ticking.
func (conf Config) New() (*Engine, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.TickInterval <= 0 {
		conf.TickInterval = time.Second / 20
	}

	w := world.Config{
		Log:                  conf.Log,
		CacheBudget:          conf.CacheBudget,
		MaxCachedChunks:      conf.MaxCachedChunks,
		MaxCompressedPerTick: conf.MaxCompressedPerTick,
		FlushQueueSize:       conf.FlushQueueSize,
	}.New()

	if conf.DB != nil {
		pal, err := conf.DB.Load(w.Grid())
		if err != nil {
			return nil, fmt.Errorf("load map %v: %w", conf.DB.ID(), err)
		}
		if conf.Palette.Len() == 0 {
			conf.Palette = pal
		}
	}
	if conf.Palette.Len() == 0 {
		conf.Palette = voxel.DefaultPalette()
	}

	e := &Engine{
		conf:    conf,
		world:   w,
		closing: make(chan struct{}),
	}
	e.handler.Store(&handlerHolder{h: NopHandler{}})
	e.proc = processor.Config{
		Log:       conf.Log,
		Workers:   conf.Workers,
		BatchSize: conf.BatchSize,
		Palette:   conf.Palette,
		Flusher:   w.Flusher(),
		Handler:   processor.HandlerFunc(func(res processor.Result) {
			e.Handler().HandleChunk(res)
		}),
		Metrics: processor.NewMetrics(conf.Registerer),
	}.New(bvt.NewIndex())

	if keys := w.Grid().Keys(); len(keys) > 0 {
		// Build the collision index of a loaded map on the first tick.
		dirty := make(world.DirtySet, len(keys))
		for _, key := range keys {
			dirty.Add(key)
		}
		e.pending = dirty
		conf.Log.Info("Loaded map.", "chunks", len(keys))
	}
	return e, nil
}
