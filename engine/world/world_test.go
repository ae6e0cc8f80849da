package world

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

func newTestWorld() *World {
	return Config{MaxCachedChunks: 64}.New()
}

func fill(t uint8) func(cube.Pos, *voxel.Voxel) {
	return func(_ cube.Pos, v *voxel.Voxel) { *v = voxel.New(t, -1) }
}

func TestStagedEditsInvisibleUntilMerge(t *testing.T) {
	w := newTestWorld()
	p := cube.Pos{3, -2, 40}
	w.StageEdit(cube.ExtentAt(p), fill(4))

	if v := w.VoxelAt(p); v != voxel.Ambient {
		t.Fatalf("staged edit visible before merge: %+v", v)
	}
	if v, ok := w.back.Voxel(p); !ok || v.Type != 4 {
		t.Fatalf("expected staged voxel of type 4, got %+v (%v)", v, ok)
	}
	w.MergeTick()
	if v := w.VoxelAt(p); v.Type != 4 {
		t.Fatalf("expected merged voxel of type 4, got %+v", v)
	}
	if w.back.Len() != 0 {
		t.Fatalf("expected empty back buffer after merge")
	}
}

func TestMergeDirtiesAllChunkNeighbours(t *testing.T) {
	w := newTestWorld()
	w.StageEdit(cube.ExtentAt(cube.Pos{0, 0, 0}), fill(1))
	dirty := w.MergeTick()

	require.Len(t, dirty, 27)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				require.True(t, dirty.Has(chunk.KeyFromIndex(dx, dy, dz)), "missing neighbour %d %d %d", dx, dy, dz)
			}
		}
	}
	require.Empty(t, w.MergeTick(), "dirty set must reset after merge")
}

func TestDirtySetCoversStagedChunks(t *testing.T) {
	w := newTestWorld()
	ext := cube.ExtentFromMinMax(cube.Pos{10, 10, 10}, cube.Pos{40, 12, 12})
	w.StageEdit(ext, fill(2))
	staged := make([]chunk.Key, 0)
	for key := range w.back.chunks {
		staged = append(staged, key)
	}
	dirty := w.MergeTick()
	for _, key := range staged {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					if n := key.Offset(dx, dy, dz); !dirty.Has(n) {
						t.Fatalf("dirty set misses %v, neighbour of staged %v", n, key)
					}
				}
			}
		}
	}
}

func TestRestagingIsIdempotent(t *testing.T) {
	ext := cube.ExtentFromMinMax(cube.Pos{-3, 14, 2}, cube.Pos{5, 18, 3})
	once, twice := newTestWorld(), newTestWorld()
	once.StageEdit(ext, fill(3))
	twice.StageEdit(ext, fill(3))
	twice.StageEdit(ext, fill(3))
	require.Equal(t, once.MergeTick(), twice.MergeTick())

	for _, key := range once.grid.Keys() {
		a, _ := once.grid.Chunk(key)
		b, ok := twice.grid.Chunk(key)
		require.True(t, ok)
		require.True(t, a.Equal(b), "chunk %v differs", key)
	}
}

func TestEditsAccumulateWithinATick(t *testing.T) {
	w := newTestWorld()
	w.StageEdit(cube.ExtentAt(cube.Pos{1, 1, 1}), fill(1))
	w.StageEdit(cube.ExtentAt(cube.Pos{2, 1, 1}), fill(2))
	// The second edit reads the staged copy, not the grid.
	w.StageEdit(cube.ExtentAt(cube.Pos{1, 1, 1}), func(_ cube.Pos, v *voxel.Voxel) {
		v.Distance = -50
	})
	w.MergeTick()
	require.Equal(t, voxel.Voxel{Type: 1, Distance: -50}, w.VoxelAt(cube.Pos{1, 1, 1}))
	require.Equal(t, uint8(2), w.VoxelAt(cube.Pos{2, 1, 1}).Type)
}

func TestStagedChunksArePinned(t *testing.T) {
	w := Config{MaxCachedChunks: 1, MaxCompressedPerTick: 10}.New()
	keys := []chunk.Key{chunk.KeyFromIndex(0, 0, 0), chunk.KeyFromIndex(5, 0, 0)}
	for _, key := range keys {
		w.LoadChunk(solidChunk(key, 1))
	}
	w.StageEdit(cube.ExtentAt(keys[0].Pos()), fill(7))

	w.Maintain()
	require.False(t, w.grid.IsCompressed(keys[0]), "staged chunk must not be compressed")
	require.True(t, w.grid.IsCompressed(keys[1]))

	w.MergeTick()
	require.Equal(t, uint8(7), w.VoxelAt(keys[0].Pos()).Type)
}

func TestSetVoxelsStagesPointEdits(t *testing.T) {
	w := newTestWorld()
	w.SetVoxels([]VoxelEdit{
		{Pos: cube.Pos{0, 0, 0}, Voxel: voxel.New(1, -0.2)},
		{Pos: cube.Pos{31, 0, 0}, Voxel: voxel.New(2, 0.3)},
	})
	dirty := w.MergeTick()
	require.Equal(t, voxel.New(1, -0.2), w.VoxelAt(cube.Pos{0, 0, 0}))
	require.Equal(t, voxel.New(2, 0.3), w.VoxelAt(cube.Pos{31, 0, 0}))
	require.True(t, dirty.Has(chunk.KeyFromIndex(2, 0, 0)))
	require.True(t, dirty.Has(chunk.KeyFromIndex(-1, 0, 0)))
}

func TestMaxChunksForBudget(t *testing.T) {
	if n := MaxChunksForBudget(10 * ChunkBytes); n != 10 {
		t.Fatalf("expected 10 chunks, got %d", n)
	}
	if n := (Config{}).withDefaults().MaxCachedChunks; n != DefaultCacheBudget/ChunkBytes {
		t.Fatalf("unexpected default chunk budget %d", n)
	}
}
