package world

import (
	"fmt"

	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// LocalCache holds chunks a single consumer decompressed while reading a Grid.
// It is not safe for concurrent use: every goroutine reading through a Reader
// owns its own LocalCache, and hands it back to the grid with Grid.Flush (or
// through a Flusher) once done. The zero value is ready to use.
type LocalCache struct {
	keys   []chunk.Key
	chunks map[chunk.Key]cachedChunk
}

type cachedChunk struct {
	c   *chunk.Chunk
	gen uint64
}

// NewLocalCache returns an empty LocalCache.
func NewLocalCache() *LocalCache {
	return &LocalCache{chunks: make(map[chunk.Key]cachedChunk)}
}

// Len returns the number of chunks in the cache.
func (c *LocalCache) Len() int {
	return len(c.keys)
}

func (c *LocalCache) get(key chunk.Key) (*chunk.Chunk, bool) {
	e, ok := c.chunks[key]
	return e.c, ok
}

func (c *LocalCache) put(key chunk.Key, ch *chunk.Chunk, gen uint64) {
	if c.chunks == nil {
		c.chunks = make(map[chunk.Key]cachedChunk)
	}
	c.keys = append(c.keys, key)
	c.chunks[key] = cachedChunk{c: ch, gen: gen}
}

func (c *LocalCache) reset() {
	c.keys = c.keys[:0]
	clear(c.chunks)
}

// Reader reads voxels from a Grid, decompressing compressed chunks into its
// LocalCache instead of the grid itself.
type Reader struct {
	grid  *Grid
	cache *LocalCache
}

// Grid returns the grid read by r.
func (r Reader) Grid() *Grid { return r.grid }

// Chunk returns the chunk at key, or false if it was never written. The chunk
// returned must not be modified.
func (r Reader) Chunk(key chunk.Key) (*chunk.Chunk, bool) {
	g := r.grid
	g.mu.RLock()
	if e, ok := g.live[key]; ok {
		c := e.Value.(*liveChunk).c
		g.mu.RUnlock()
		return c, true
	}
	if r.cache != nil {
		if c, ok := r.cache.get(key); ok {
			g.mu.RUnlock()
			return c, true
		}
	}
	data, ok := g.compressed[key]
	gen := g.gens[key]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c, err := chunk.Decompress(key, data)
	if err != nil {
		// Compressed data only enters the grid through chunk.Compress or a
		// validated load.
		panic(fmt.Sprintf("world: decompress %v: %v", key, err))
	}
	if r.cache != nil {
		r.cache.put(key, c, gen)
	}
	return c, true
}

// Voxel returns the voxel at p.
func (r Reader) Voxel(p cube.Pos) voxel.Voxel {
	c, ok := r.Chunk(chunk.KeyAt(p))
	if !ok {
		return voxel.Ambient
	}
	return c.Voxel(p)
}

// Copy returns a dense copy of the voxels in ext.
func (r Reader) Copy(ext cube.Extent) *chunk.Array {
	a := chunk.NewArray(ext, voxel.Ambient)
	for key := range chunk.KeysOverlapping(ext) {
		if c, ok := r.Chunk(key); ok {
			a.CopyFrom(&c.Array)
		}
	}
	return a
}
