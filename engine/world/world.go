// Package world implements the storage side of a voxel map: a chunked,
// compressible grid, the local caches used by concurrent readers, and the back
// buffer that stages each tick's edits.
package world

import (
	"log/slog"
	"sync"

	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// Config holds the tunable parameters of a World. The zero value is usable;
// defaults are applied by New.
type Config struct {
	// Log is the Logger used by the World. If nil, slog.Default() is used.
	Log *slog.Logger
	// CacheBudget is the number of bytes live chunks may occupy before the
	// least recently used ones are compressed. Ignored if MaxCachedChunks is set.
	CacheBudget int
	// MaxCachedChunks is the number of live chunks kept decompressed.
	MaxCachedChunks int
	// MaxCompressedPerTick caps the chunks compressed by a single Maintain call.
	MaxCompressedPerTick int
	// FlushQueueSize is the capacity of the channel carrying local caches back
	// to the grid.
	FlushQueueSize int
}

// DefaultCacheBudget is the CacheBudget used if none is configured.
const DefaultCacheBudget = 1 << 30

func (conf Config) withDefaults() Config {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.MaxCachedChunks <= 0 {
		if conf.CacheBudget <= 0 {
			conf.CacheBudget = DefaultCacheBudget
		}
		conf.MaxCachedChunks = max(MaxChunksForBudget(conf.CacheBudget), 1)
	}
	if conf.MaxCompressedPerTick <= 0 {
		conf.MaxCompressedPerTick = 50
	}
	if conf.FlushQueueSize <= 0 {
		conf.FlushQueueSize = 64
	}
	return conf
}

// New creates a World with an empty grid using the fields of conf.
func (conf Config) New() *World {
	conf = conf.withDefaults()
	flusher, receiver := NewFlushChannel(conf.FlushQueueSize, conf.Log)
	return &World{
		conf:       conf,
		grid:       NewGrid(),
		back:       NewBackBuffer(),
		editCache:  NewLocalCache(),
		flusher:    flusher,
		receiver:   receiver,
		compressor: Compressor{MaxCachedChunks: conf.MaxCachedChunks, MaxCompressedPerTick: conf.MaxCompressedPerTick},
	}
}

// World ties a Grid to the BackBuffer staging its edits, the flush channel
// returning reader caches, and the Compressor bounding its memory.
//
// Edits staged with StageEdit become visible after the next MergeTick. All
// other methods may be called concurrently with each other, but MergeTick,
// DrainFlushes and Maintain must be called from a single goroutine.
type World struct {
	conf Config

	grid *Grid
	back *BackBuffer
	// editCache holds chunks decompressed while staging edits. It is flushed
	// at every merge. editMu is held for as long as the cache is in use.
	editMu    sync.Mutex
	editCache *LocalCache

	flusher    *Flusher
	receiver   *Receiver
	compressor Compressor
}

// Grid returns the authoritative grid of the world.
func (w *World) Grid() *Grid { return w.grid }

// Flusher returns the sending end of the world's flush channel.
func (w *World) Flusher() *Flusher { return w.flusher }

// VoxelAt returns the merged voxel at p.
func (w *World) VoxelAt(p cube.Pos) voxel.Voxel {
	return w.grid.Voxel(p)
}

// StageEdit calls fn for every point of ext against the back buffer. The edit
// becomes visible to readers of the grid after the next MergeTick.
func (w *World) StageEdit(ext cube.Extent, fn func(p cube.Pos, v *voxel.Voxel)) {
	w.editMu.Lock()
	defer w.editMu.Unlock()
	w.back.Edit(w.grid.Reader(w.editCache), ext, fn)
}

// VoxelEdit replaces the voxel at Pos with Voxel.
type VoxelEdit struct {
	Pos   cube.Pos
	Voxel voxel.Voxel
}

// SetVoxels stages the replacement of individual voxels.
func (w *World) SetVoxels(edits []VoxelEdit) {
	for _, e := range edits {
		w.StageEdit(cube.ExtentAt(e.Pos), func(_ cube.Pos, v *voxel.Voxel) {
			*v = e.Voxel
		})
	}
}

// MergeTick writes all staged chunks into the grid and returns the keys of
// every chunk whose derived data is now out of date.
func (w *World) MergeTick() DirtySet {
	dirty := w.back.DrainInto(w.grid)
	w.editMu.Lock()
	w.grid.Flush(w.editCache)
	w.editMu.Unlock()
	if len(dirty) > 0 {
		w.conf.Log.Debug("merged staged edits", "dirty_chunks", len(dirty))
	}
	return dirty
}

// DrainFlushes returns every local cache queued on the flush channel to the grid.
func (w *World) DrainFlushes() FlushStats {
	s := w.receiver.Drain(w.grid)
	if s.Stale > 0 {
		w.conf.Log.Debug("discarded stale cached chunks", "stale", s.Stale, "caches", s.Caches)
	}
	return s
}

// Maintain runs the compressor once and returns the number of chunks compressed.
func (w *World) Maintain() int {
	return w.compressor.Run(w.grid)
}

// Close stops the world's Flusher. Caches flushed afterwards are dropped and
// the grid stays readable.
func (w *World) Close() {
	w.flusher.Close()
}

// LoadChunk stores c in the grid directly, bypassing the back buffer.
func (w *World) LoadChunk(c *chunk.Chunk) {
	w.grid.WriteChunk(c.Key(), c)
}
