package world

import (
	"sync"

	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// BackBuffer stages the edits of one tick. Edits are applied to copies of the
// affected chunks, so the grid keeps serving the previous state until
// DrainInto merges the copies at the tick boundary.
type BackBuffer struct {
	mu     sync.Mutex
	chunks map[chunk.Key]*chunk.Chunk
	dirty  DirtySet
	// pinnedOn is the grid whose chunks were pinned while staged.
	pinnedOn *Grid
}

// NewBackBuffer returns an empty BackBuffer.
func NewBackBuffer() *BackBuffer {
	return &BackBuffer{chunks: make(map[chunk.Key]*chunk.Chunk), dirty: make(DirtySet)}
}

// Edit calls fn for every point of ext with a pointer to the staged voxel at
// that point. Chunks not yet staged are copied from r first, or filled with
// voxel.Ambient if r has none. Every chunk within one chunk shape of ext is
// marked dirty.
func (b *BackBuffer) Edit(r Reader, ext cube.Extent, fn func(p cube.Pos, v *voxel.Voxel)) {
	if ext.Empty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range chunk.KeysOverlapping(ext) {
		b.stage(r, key)
	}
	for p := range ext.Points() {
		fn(p, b.chunks[chunk.KeyAt(p)].Ptr(p))
	}
	for key := range chunk.KeysOverlapping(ext.Padded(chunk.Size)) {
		b.dirty.Add(key)
	}
}

// stage copies the chunk at key into the buffer if it is not staged yet.
// b.mu must be held.
func (b *BackBuffer) stage(r Reader, key chunk.Key) {
	if _, ok := b.chunks[key]; ok {
		return
	}
	if c, ok := r.Chunk(key); ok {
		b.chunks[key] = c.Clone()
	} else {
		b.chunks[key] = chunk.New(key, voxel.Ambient)
	}
	if g := r.Grid(); g != nil {
		g.Pin(key)
		b.pinnedOn = g
	}
}

// Voxel returns the staged voxel at p, or false if its chunk is not staged.
func (b *BackBuffer) Voxel(p cube.Pos) (voxel.Voxel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.chunks[chunk.KeyAt(p)]
	if !ok {
		return voxel.Voxel{}, false
	}
	return c.Voxel(p), true
}

// Len returns the number of staged chunks.
func (b *BackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// DrainInto writes every staged chunk into g, in Morton order, and returns the
// accumulated dirty set. The buffer is empty afterwards.
func (b *BackBuffer) DrainInto(g *Grid) DirtySet {
	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(DirtySet, len(b.chunks))
	for key := range b.chunks {
		staged.Add(key)
	}
	for _, key := range staged.Keys() {
		g.WriteChunk(key, b.chunks[key])
		mergedChunks.Inc()
		if b.pinnedOn != nil {
			b.pinnedOn.Unpin(key)
		}
	}
	dirty := b.dirty
	b.chunks = make(map[chunk.Key]*chunk.Chunk)
	b.dirty = make(DirtySet)
	b.pinnedOn = nil
	return dirty
}
