package chunk

import (
	"slices"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
)

// Chunk is a dense cube of Size³ voxels whose minimum corner is its Key.
type Chunk struct {
	Array
}

// New returns a Chunk at key with every voxel set to fill.
func New(key Key, fill voxel.Voxel) *Chunk {
	return &Chunk{Array: *NewArray(key.Extent(), fill)}
}

// Key returns the key of the chunk.
func (c *Chunk) Key() Key { return Key(c.ext.Min) }

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	return &Chunk{Array: Array{ext: c.ext, voxels: slices.Clone(c.voxels)}}
}

// Equal checks if c and o hold the same voxels at the same key.
func (c *Chunk) Equal(o *Chunk) bool {
	return c.ext == o.ext && slices.Equal(c.voxels, o.voxels)
}

// Uniform returns the voxel filling the chunk if all voxels are equal.
func (c *Chunk) Uniform() (voxel.Voxel, bool) {
	first := c.voxels[0]
	for _, v := range c.voxels[1:] {
		if v != first {
			return voxel.Voxel{}, false
		}
	}
	return first, true
}

// Range calls f for every voxel of the chunk until f returns false.
func (c *Chunk) Range(f func(p cube.Pos, v voxel.Voxel) bool) {
	for p := range c.ext.Points() {
		if !f(p, c.voxels[c.index(p)]) {
			return
		}
	}
}

// Digest returns a 64-bit FNV-1a hash of the chunk's voxels.
func (c *Chunk) Digest() uint64 {
	h := fnv1a.Init64
	for _, v := range c.voxels {
		h = fnv1a.AddUint64(h, uint64(pack(v)))
	}
	return h
}

func pack(v voxel.Voxel) uint16 {
	return uint16(v.Type)<<8 | uint16(uint8(v.Distance))
}

func unpack(x uint16) voxel.Voxel {
	return voxel.Voxel{Type: uint8(x >> 8), Distance: int8(uint8(x))}
}
