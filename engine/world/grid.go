package world

import (
	"cmp"
	"container/list"
	"fmt"
	"slices"
	"sync"

	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// Grid is the authoritative store of all chunks of a voxel map. Every chunk is
// either live (decompressed, tracked in LRU order) or compressed. Points in
// chunks that were never written hold voxel.Ambient.
//
// Chunks handed out by a Grid are shared and must never be modified. Writes
// replace a chunk as a whole through WriteChunk.
//
// Each key carries a generation that is bumped whenever its content is
// replaced. Local caches remember the generation they decompressed, so a flush
// that arrives after a newer write is rejected instead of overwriting it.
type Grid struct {
	mu sync.RWMutex

	// live maps to elements of lru holding *liveChunk. The front of lru is
	// the most recently used chunk.
	live       map[chunk.Key]*list.Element
	lru        *list.List
	compressed map[chunk.Key][]byte
	// compressedSize is the sum of the lengths of all compressed chunks.
	compressedSize int

	gens   map[chunk.Key]uint64
	pinned map[chunk.Key]int
}

type liveChunk struct {
	key chunk.Key
	c   *chunk.Chunk
}

// NewGrid returns an empty Grid.
func NewGrid() *Grid {
	return &Grid{
		live:       make(map[chunk.Key]*list.Element),
		lru:        list.New(),
		compressed: make(map[chunk.Key][]byte),
		gens:       make(map[chunk.Key]uint64),
		pinned:     make(map[chunk.Key]int),
	}
}

// Voxel returns the voxel at p. Compressed chunks are decompressed without
// being cached; use a Reader with a LocalCache for repeated reads.
func (g *Grid) Voxel(p cube.Pos) voxel.Voxel {
	return g.Reader(nil).Voxel(p)
}

// Chunk returns the chunk at key, or false if it was never written.
func (g *Grid) Chunk(key chunk.Key) (*chunk.Chunk, bool) {
	return g.Reader(nil).Chunk(key)
}

// WriteChunk makes c the authoritative content of the chunk at key,
// overwriting whatever was stored before. The grid takes ownership of c.
func (g *Grid) WriteChunk(key chunk.Key, c *chunk.Chunk) {
	if c.Key() != key {
		panic(fmt.Sprintf("world: chunk %v written at %v", c.Key(), key))
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gens[key]++
	g.dropCompressed(key)
	if e, ok := g.live[key]; ok {
		e.Value.(*liveChunk).c = c
		g.lru.MoveToFront(e)
		return
	}
	g.live[key] = g.lru.PushFront(&liveChunk{key: key, c: c})
	liveChunks.Inc()
}

// InsertCompressed stores data, produced by chunk.Compress, as the content of
// the chunk at key, overwriting whatever was stored before. The data is
// trusted: callers loading untrusted bytes must validate them first.
func (g *Grid) InsertCompressed(key chunk.Key, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gens[key]++
	if e, ok := g.live[key]; ok {
		g.lru.Remove(e)
		delete(g.live, key)
		liveChunks.Dec()
	}
	g.dropCompressed(key)
	g.compressed[key] = data
	g.compressedSize += len(data)
	compressedChunks.Inc()
	compressedBytes.Add(float64(len(data)))
}

// dropCompressed removes the compressed form of key, if any. g.mu must be held.
func (g *Grid) dropCompressed(key chunk.Key) {
	data, ok := g.compressed[key]
	if !ok {
		return
	}
	delete(g.compressed, key)
	g.compressedSize -= len(data)
	compressedChunks.Dec()
	compressedBytes.Sub(float64(len(data)))
}

// Reader returns a Reader over the grid that decompresses into cache. A nil
// cache decompresses without caching.
func (g *Grid) Reader(cache *LocalCache) Reader {
	return Reader{grid: g, cache: cache}
}

// Flush returns the chunks decompressed into cache to the grid as live chunks,
// in the order they were decompressed, and empties the cache. Chunks that were
// written after the cache decompressed them are discarded, as are chunks the
// grid already holds decompressed.
func (g *Grid) Flush(cache *LocalCache) (accepted, stale int) {
	if cache == nil || cache.Len() == 0 {
		return 0, 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, key := range cache.keys {
		entry := cache.chunks[key]
		if g.gens[key] != entry.gen {
			stale++
			flushedChunks.WithLabelValues(flushStale).Inc()
			continue
		}
		if _, ok := g.live[key]; ok {
			flushedChunks.WithLabelValues(flushDuplicate).Inc()
			continue
		}
		g.dropCompressed(key)
		g.live[key] = g.lru.PushFront(&liveChunk{key: key, c: entry.c})
		liveChunks.Inc()
		flushedChunks.WithLabelValues(flushAccepted).Inc()
		accepted++
	}
	cache.reset()
	return accepted, stale
}

// CompressLRU compresses the least recently used live chunk that is not
// pinned. It reports false if no such chunk exists.
func (g *Grid) CompressLRU() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for e := g.lru.Back(); e != nil; e = e.Prev() {
		lc := e.Value.(*liveChunk)
		if g.pinned[lc.key] > 0 {
			continue
		}
		data := chunk.Compress(lc.c)
		g.lru.Remove(e)
		delete(g.live, lc.key)
		liveChunks.Dec()

		g.compressed[lc.key] = data
		g.compressedSize += len(data)
		compressedChunks.Inc()
		compressedBytes.Add(float64(len(data)))
		compressions.Inc()
		return true
	}
	return false
}

// Pin excludes the chunk at key from compression until a matching Unpin.
func (g *Grid) Pin(key chunk.Key) {
	g.mu.Lock()
	g.pinned[key]++
	g.mu.Unlock()
}

// Unpin reverts one call to Pin.
func (g *Grid) Unpin(key chunk.Key) {
	g.mu.Lock()
	if g.pinned[key] <= 1 {
		delete(g.pinned, key)
	} else {
		g.pinned[key]--
	}
	g.mu.Unlock()
}

// Generation returns the number of times the chunk at key was replaced.
func (g *Grid) Generation(key chunk.Key) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gens[key]
}

// Stats holds the storage counters of a Grid.
type Stats struct {
	Live            int
	Compressed      int
	CompressedBytes int
}

// Stats returns the current storage counters of the grid.
func (g *Grid) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{Live: len(g.live), Compressed: len(g.compressed), CompressedBytes: g.compressedSize}
}

// LiveLen returns the number of decompressed chunks in the grid.
func (g *Grid) LiveLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.live)
}

// IsCompressed reports if the chunk at key is currently held compressed.
func (g *Grid) IsCompressed(key chunk.Key) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.compressed[key]
	return ok
}

// Keys returns the keys of all chunks in the grid in Morton order.
func (g *Grid) Keys() []chunk.Key {
	g.mu.RLock()
	keys := make([]chunk.Key, 0, len(g.live)+len(g.compressed))
	for k := range g.live {
		keys = append(keys, k)
	}
	for k := range g.compressed {
		keys = append(keys, k)
	}
	g.mu.RUnlock()
	sortKeys(keys)
	return keys
}

// RecentKeys returns the keys of all live chunks, least recently used first.
func (g *Grid) RecentKeys() []chunk.Key {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]chunk.Key, 0, len(g.live))
	for e := g.lru.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(*liveChunk).key)
	}
	return keys
}

// ExportCompressed calls f with the compressed bytes of every chunk in Morton
// order. Live chunks are compressed for the call without changing their state.
func (g *Grid) ExportCompressed(f func(key chunk.Key, data []byte) error) error {
	for _, key := range g.Keys() {
		g.mu.RLock()
		data, ok := g.compressed[key]
		var c *chunk.Chunk
		if e, live := g.live[key]; live {
			c = e.Value.(*liveChunk).c
		}
		g.mu.RUnlock()
		if !ok {
			if c == nil {
				// Removed since Keys was called.
				continue
			}
			data = chunk.Compress(c)
		}
		if err := f(key, data); err != nil {
			return err
		}
	}
	return nil
}

// sortKeys sorts keys in Morton order. Keys outside the packable range can
// share a Morton index, so ties are broken by coordinates.
func sortKeys(keys []chunk.Key) {
	slices.SortFunc(keys, func(a, b chunk.Key) int {
		return cmp.Or(
			cmp.Compare(a.Morton(), b.Morton()),
			cmp.Compare(a[2], b[2]),
			cmp.Compare(a[1], b[1]),
			cmp.Compare(a[0], b[0]),
		)
	})
}
