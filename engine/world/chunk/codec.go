package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
)

// ErrCorrupt is returned when compressed chunk data cannot be decoded.
var ErrCorrupt = errors.New("chunk: corrupt compressed data")

var (
	encoder = must(zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)))
	decoder = must(zstd.NewReader(nil))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Compress encodes the chunk into a compact byte slice. Voxels are run length
// encoded as pairs of uvarints (packed voxel, run) before entropy coding.
func Compress(c *Chunk) []byte {
	raw := make([]byte, 0, 64)
	for i := 0; i < len(c.voxels); {
		v := c.voxels[i]
		run := 1
		for i+run < len(c.voxels) && c.voxels[i+run] == v {
			run++
		}
		raw = binary.AppendUvarint(raw, uint64(pack(v)))
		raw = binary.AppendUvarint(raw, uint64(run))
		i += run
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2+16))
}

// Decompress decodes data produced by Compress into a Chunk at key.
func Decompress(key Key, data []byte) (*Chunk, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c := &Chunk{Array: Array{ext: key.Extent(), voxels: make([]voxel.Voxel, 0, Volume)}}
	for i := 0; i < len(raw); {
		x, n := binary.Uvarint(raw[i:])
		if n <= 0 || x > 0xffff {
			return nil, fmt.Errorf("%w: bad voxel at %d", ErrCorrupt, i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 || run == 0 || run > uint64(Volume-len(c.voxels)) {
			return nil, fmt.Errorf("%w: bad run at %d", ErrCorrupt, i)
		}
		i += n
		v := unpack(uint16(x))
		for range run {
			c.voxels = append(c.voxels, v)
		}
	}
	if len(c.voxels) != Volume {
		return nil, fmt.Errorf("%w: %d voxels, expected %d", ErrCorrupt, len(c.voxels), Volume)
	}
	return c, nil
}
