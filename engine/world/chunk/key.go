package chunk

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/voxel-mapper/voxelcore/engine/cube"
)

const (
	// Size is the edge length of a chunk in voxels.
	Size = 16
	// Volume is the number of voxels in a chunk.
	Volume = Size * Size * Size

	sizeShift = 4
	// packBits is the number of bits per axis used by Key.Pack and Key.Morton.
	packBits = 21
	packMask = 1<<packBits - 1
	packBias = 1 << (packBits - 1)

	// KeyBytes is the length of the encoding produced by Key.AppendBytes.
	KeyBytes = 24
)

// Key identifies a chunk by its minimum corner. The coordinates of a Key are
// always multiples of Size.
type Key cube.Pos

// KeyAt returns the Key of the chunk holding p.
func KeyAt(p cube.Pos) Key {
	return Key{p[0] >> sizeShift << sizeShift, p[1] >> sizeShift << sizeShift, p[2] >> sizeShift << sizeShift}
}

// KeyFromIndex returns the Key of the chunk at chunk coordinates x, y, z.
func KeyFromIndex(x, y, z int) Key {
	return Key{x << sizeShift, y << sizeShift, z << sizeShift}
}

// Pos returns the minimum corner of the chunk.
func (k Key) Pos() cube.Pos { return cube.Pos(k) }

// Index returns the chunk coordinates of k, its corner divided by Size.
func (k Key) Index() [3]int {
	return [3]int{k[0] >> sizeShift, k[1] >> sizeShift, k[2] >> sizeShift}
}

// Extent returns the voxels covered by the chunk.
func (k Key) Extent() cube.Extent {
	return cube.Extent{Min: cube.Pos(k), Shape: cube.Pos{Size, Size, Size}}
}

// Offset returns the Key of the chunk dx, dy and dz chunks away from k.
func (k Key) Offset(dx, dy, dz int) Key {
	return Key{k[0] + dx*Size, k[1] + dy*Size, k[2] + dz*Size}
}

// Packable reports if every chunk coordinate of k fits the 21 bits per axis
// used by Pack. Keys outside that range still work everywhere, but Pack and
// Morton are no longer unique for them.
func (k Key) Packable() bool {
	for _, i := range k.Index() {
		if i < -packBias || i >= packBias {
			return false
		}
	}
	return true
}

// Pack returns the chunk coordinates of k packed into a single int64 with 21
// bits per axis. The result is only unique for keys that are Packable.
func (k Key) Pack() int64 {
	i := k.Index()
	return int64(i[0]+packBias)&packMask | (int64(i[1]+packBias)&packMask)<<packBits | (int64(i[2]+packBias)&packMask)<<(2*packBits)
}

// Unpack is the inverse of Key.Pack.
func Unpack(v int64) Key {
	return KeyFromIndex(int(v&packMask)-packBias, int(v>>packBits&packMask)-packBias, int(v>>(2*packBits)&packMask)-packBias)
}

// AppendBytes appends a fixed size encoding of k to b that is unique for
// every key. Each chunk coordinate is stored as a big endian int64 with its
// sign bit flipped, so the bytes of keys sort like their coordinates.
func (k Key) AppendBytes(b []byte) []byte {
	for _, i := range k.Index() {
		b = binary.BigEndian.AppendUint64(b, uint64(int64(i))^1<<63)
	}
	return b
}

// KeyFromBytes decodes a key encoded by AppendBytes. It returns false if b is
// not KeyBytes long.
func KeyFromBytes(b []byte) (Key, bool) {
	if len(b) != KeyBytes {
		return Key{}, false
	}
	var i [3]int
	for a := range i {
		i[a] = int(int64(binary.BigEndian.Uint64(b[a*8:]) ^ 1<<63))
	}
	return KeyFromIndex(i[0], i[1], i[2]), true
}

// Morton returns the Z-order index of the chunk, used to visit chunks in a
// deterministic, spatially coherent order. Like Pack, it is only unique for
// keys that are Packable.
func (k Key) Morton() uint64 {
	i := k.Index()
	return splitBy2(uint64(i[0]+packBias)&packMask) | splitBy2(uint64(i[1]+packBias)&packMask)<<1 | splitBy2(uint64(i[2]+packBias)&packMask)<<2
}

// String ...
func (k Key) String() string {
	return fmt.Sprintf("chunk(%d, %d, %d)", k[0], k[1], k[2])
}

// splitBy2 spreads the lower 21 bits of x so that two zero bits separate each of them.
func splitBy2(x uint64) uint64 {
	x &= packMask
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// KeysOverlapping iterates over the keys of all chunks sharing at least one
// voxel with e.
func KeysOverlapping(e cube.Extent) iter.Seq[Key] {
	return func(yield func(Key) bool) {
		if e.Empty() {
			return
		}
		lo, hi := KeyAt(e.Min), KeyAt(e.Max())
		for z := lo[2]; z <= hi[2]; z += Size {
			for y := lo[1]; y <= hi[1]; y += Size {
				for x := lo[0]; x <= hi[0]; x += Size {
					if !yield(Key{x, y, z}) {
						return
					}
				}
			}
		}
	}
}
