// Package engine ties the voxel grid, its edit staging, the collision index
// and the chunk processor together behind a single tick driven API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/processor"
)

// ErrClosed is returned by operations on an Engine that was closed.
var ErrClosed = errors.New("engine: closed")

// Engine is a voxel map with deferred edits. Edits staged during a tick become
// visible to reads, queries and the Handler after the next call to Tick.
// Methods of an Engine are safe for concurrent use, but ticks are serialised.
type Engine struct {
	conf  Config
	world *world.World
	proc  *processor.Processor

	handler atomic.Pointer[handlerHolder]

	tickMu sync.Mutex
	// pending holds chunks to process on the next tick in addition to the
	// ones dirtied by edits.
	pending world.DirtySet
	current atomic.Int64
	tps     atomic.Uint64

	closing chan struct{}
	once    sync.Once
	running sync.WaitGroup
}

// TickStats summarises a single tick.
type TickStats struct {
	Tick       int64
	Dirty      int
	Processed  processor.Summary
	Flushed    world.FlushStats
	Compressed int
	Duration   time.Duration
}

// Palette returns the palette classifying the voxels of the map.
func (e *Engine) Palette() voxel.Palette { return e.conf.Palette }

// World returns the World holding the voxels of the engine.
func (e *Engine) World() *world.World { return e.world }

// CurrentTick returns the number of ticks completed.
func (e *Engine) CurrentTick() int64 { return e.current.Load() }

// TPS returns the ticks per second measured by Run over the last sample.
func (e *Engine) TPS() float64 { return math.Float64frombits(e.tps.Load()) }

// StageEdit calls fn for every voxel of ext with a pointer to a staged copy of
// it. The edit becomes visible after the next tick.
func (e *Engine) StageEdit(ext cube.Extent, fn func(p cube.Pos, v *voxel.Voxel)) {
	e.world.StageEdit(ext, fn)
}

// SetVoxels stages a set of single voxel writes.
func (e *Engine) SetVoxels(edits []world.VoxelEdit) {
	e.world.SetVoxels(edits)
}

// MergeTick merges the staged edits into the grid and returns the chunks they
// dirtied. The chunks are processed by the next Tick, which merges on its own,
// so calling MergeTick is only needed to observe the dirty set.
func (e *Engine) MergeTick() world.DirtySet {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	dirty := e.world.MergeTick()
	e.queue(dirty)
	return dirty
}

// queue adds dirty to the chunks processed by the next tick. e.tickMu must be
// held.
func (e *Engine) queue(dirty world.DirtySet) {
	if len(dirty) == 0 {
		return
	}
	if e.pending == nil {
		e.pending = make(world.DirtySet, len(dirty))
	}
	e.pending.Merge(dirty)
}

// Tick runs one step of the pipeline: staged edits are merged into the grid,
// the collision entries of the dirty chunks are rebuilt, local caches handed
// back by readers are flushed and the least recently used chunks compressed.
func (e *Engine) Tick(ctx context.Context) (TickStats, error) {
	select {
	case <-e.closing:
		return TickStats{}, ErrClosed
	default:
	}
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	dirty := e.world.MergeTick()
	dirty.Merge(e.pending)
	e.pending = nil
	dirtyChunks.Add(float64(len(dirty)))

	summary, err := e.proc.Process(ctx, e.world.Grid(), dirty)
	if err != nil && !errors.Is(err, processor.ErrClosed) {
		// Chunks left out by a cancelled tick are retried on the next one.
		e.queue(dirty)
	}

	stats := TickStats{
		Tick:      e.current.Add(1),
		Dirty:     len(dirty),
		Processed: summary,
	}
	stats.Flushed = e.world.DrainFlushes()
	stats.Compressed = e.world.Maintain()
	stats.Duration = time.Since(start)
	tickDuration.Observe(stats.Duration.Seconds())

	e.Handler().HandleTick(stats)
	if err != nil {
		return stats, fmt.Errorf("process chunks: %w", err)
	}
	return stats, nil
}

const (
	tpsSampleSize = 20
	// tpsWarningRatio is the fraction of the target tick rate below which a
	// warning is logged.
	tpsWarningRatio = 0.95
)

// Run ticks the Engine every TickInterval until ctx is cancelled or the Engine
// is closed.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Add(1)
	defer e.running.Done()

	tc := time.NewTicker(e.conf.TickInterval)
	defer tc.Stop()

	threshold := tpsWarningRatio * float64(time.Second) / float64(e.conf.TickInterval)
	lastTick := time.Now()
	var (
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	for {
		select {
		case <-tc.C:
			tickStart := time.Now()
			duration := tickStart.Sub(lastTick)
			lastTick = tickStart
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					tps := 1.0 / (durationSum / time.Duration(ticksCount)).Seconds()
					e.tps.Store(math.Float64bits(tps))
					ticksPerSecond.Set(tps)
					if tps < threshold {
						if !warned {
							e.conf.Log.Warn("TPS dropped below threshold.", "tps", tps)
							warned = true
						}
					} else if warned {
						warned = false
					}
					durationSum = 0
					ticksCount = 0
				}
			}
			if _, err := e.Tick(ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				if ctx.Err() == nil {
					e.conf.Log.Error("tick: " + err.Error())
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closing:
			return nil
		}
	}
}

// Save writes the map to the DB of the Engine. It does nothing if the Engine
// has no DB.
func (e *Engine) Save() error {
	if e.conf.DB == nil {
		return nil
	}
	if err := e.conf.DB.Save(e.world.Grid(), e.conf.Palette); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	return nil
}

// Close stops Run, waits for it to return and stops the chunk processor. If
// SaveOnClose is set the map is saved first. The DB is closed afterwards.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		close(e.closing)
		e.running.Wait()

		e.tickMu.Lock()
		defer e.tickMu.Unlock()
		_ = e.proc.Close()
		e.world.Close()

		if e.conf.DB == nil {
			return
		}
		if e.conf.SaveOnClose {
			e.conf.Log.Debug("Saving map...")
			if serr := e.Save(); serr != nil {
				err = serr
			}
		}
		if cerr := e.conf.DB.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close map: %w", cerr)
		}
	})
	return err
}
