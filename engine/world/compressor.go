package world

import "github.com/voxel-mapper/voxelcore/engine/world/chunk"

// ChunkBytes is the memory used by the voxels of one live chunk.
const ChunkBytes = chunk.Volume * 2

// MaxChunksForBudget returns the number of live chunks that fit in budget bytes.
func MaxChunksForBudget(budget int) int {
	return max(budget/ChunkBytes, 0)
}

// Compressor keeps the number of live chunks of a grid near MaxCachedChunks by
// compressing the least recently used ones, at most MaxCompressedPerTick per
// run. A grid further over budget than that catches up over several runs.
type Compressor struct {
	MaxCachedChunks      int
	MaxCompressedPerTick int
}

// Run compresses least recently used chunks of g and returns how many it
// compressed. Pinned chunks are never compressed.
func (c Compressor) Run(g *Grid) int {
	overgrowth := g.LiveLen() - c.MaxCachedChunks
	n := min(overgrowth, c.MaxCompressedPerTick)
	compressed := 0
	for ; compressed < n; compressed++ {
		if !g.CompressLRU() {
			break
		}
	}
	return compressed
}
