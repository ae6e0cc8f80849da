package bvt

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// solidSet is an Occupancy where only the listed points are solid.
type solidSet map[cube.Pos]struct{}

func (s solidSet) IsEmpty(p cube.Pos) bool {
	_, ok := s[p]
	return !ok
}

func cubeAt(centre cube.Pos, radius int) solidSet {
	s := make(solidSet)
	ext := cube.ExtentFromMinMax(centre.Sub(cube.Pos{radius, radius, radius}), centre.Add(cube.Pos{radius, radius, radius}))
	for p := range ext.Points() {
		s[p] = struct{}{}
	}
	return s
}

// checkTree verifies parent links and that every node bounds its children.
func checkTree[T any](t *testing.T, tr *Tree[T]) {
	t.Helper()
	if tr.root == nilNode {
		require.Zero(t, tr.Len())
		return
	}
	require.Equal(t, nilNode, tr.nodes[tr.root].parent)
	leaves := 0
	stack := []int32{tr.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := tr.nodes[id]
		if n.left == nilNode {
			leaves++
			continue
		}
		for _, c := range []int32{n.left, n.right} {
			require.Equal(t, id, tr.nodes[c].parent)
			require.True(t, n.box.Contains(tr.nodes[c].box), "node %d does not bound child %d", id, c)
			stack = append(stack, c)
		}
	}
	require.Equal(t, tr.Len(), leaves)
}

func TestGenerateChunkIndexFindsShell(t *testing.T) {
	occ := cubeAt(cube.Pos{8, 8, 8}, 1)
	tree, ok := GenerateChunkIndex(occ, chunk.Key{}.Extent())
	require.True(t, ok)
	require.Equal(t, 26, tree.Len())
	tree.Leaves(func(_ cube.BBox, p cube.Pos) bool {
		require.NotEqual(t, cube.Pos{8, 8, 8}, p, "interior voxel indexed")
		return true
	})
	checkTree(t, tree)

	_, ok = GenerateChunkIndex(solidSet{}, chunk.Key{}.Extent())
	require.False(t, ok)
}

func TestPaletteOccupancyOverChunk(t *testing.T) {
	c := chunk.New(chunk.Key{}, voxel.Ambient)
	for p := range cube.ExtentFromMinMax(cube.Pos{2, 2, 2}, cube.Pos{3, 3, 3}).Points() {
		c.Set(p, voxel.New(1, -1))
	}
	tree, ok := GenerateChunkIndex(PaletteOccupancy{Source: c, Palette: voxel.DefaultPalette()}, c.Extent())
	require.True(t, ok)
	require.Equal(t, 8, tree.Len())
}

func indexWithCube(t *testing.T) *Index {
	x := NewIndex()
	tree, ok := GenerateChunkIndex(cubeAt(cube.Pos{8, 8, 8}, 1), chunk.Key{}.Extent())
	require.True(t, ok)
	x.InsertChunk(chunk.Key{}, tree)
	return x
}

func TestRayCastHitsCubeFace(t *testing.T) {
	x := indexWithCube(t)
	ray := cube.Ray{Origin: mgl64.Vec3{8, 8, -10}, Dir: mgl64.Vec3{0, 0, 1}}
	hit, ok := x.RayCast(ray, math.Inf(1), nil)
	require.True(t, ok)
	require.Equal(t, cube.Pos{8, 8, 7}, hit.Voxel)
	require.InDelta(t, 6.5, ray.At(hit.Toi)[2], 1e-9)

	// Rejecting the front face makes the ray stop at the back face of the shell.
	hit, ok = x.RayCast(ray, math.Inf(1), func(p cube.Pos) bool { return p[2] != 7 })
	require.True(t, ok)
	require.Equal(t, cube.Pos{8, 8, 9}, hit.Voxel)
	require.InDelta(t, 8.5, ray.At(hit.Toi)[2], 1e-9)

	_, ok = x.RayCast(ray, 5, nil)
	require.False(t, ok, "hit beyond max toi")
	_, ok = x.RayCast(cube.Ray{Origin: mgl64.Vec3{20, 20, -10}, Dir: mgl64.Vec3{0, 0, 1}}, math.Inf(1), nil)
	require.False(t, ok)
}

func TestRayCastMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	occ := make(solidSet)
	for range 400 {
		occ[cube.Pos{r.IntN(48) - 16, r.IntN(32), r.IntN(48) - 16}] = struct{}{}
	}
	x := NewIndex()
	for key := range chunk.KeysOverlapping(cube.ExtentFromMinMax(cube.Pos{-16, 0, -16}, cube.Pos{31, 31, 31})) {
		if tree, ok := GenerateChunkIndex(occ, key.Extent()); ok {
			x.InsertChunk(key, tree)
		}
	}
	all := SurfaceVoxels(occ, cube.ExtentFromMinMax(cube.Pos{-16, 0, -16}, cube.Pos{31, 31, 31}))
	for range 50 {
		ray := cube.Ray{
			Origin: mgl64.Vec3{r.Float64()*60 - 20, r.Float64()*40 - 4, r.Float64()*60 - 20},
			Dir:    mgl64.Vec3{r.Float64() - 0.5, r.Float64() - 0.5, r.Float64() - 0.5},
		}
		want := math.Inf(1)
		for _, l := range all {
			if toi, ok := l.Box.RayIntersect(ray, math.Inf(1)); ok && toi < want {
				want = toi
			}
		}
		hit, ok := x.RayCast(ray, math.Inf(1), nil)
		if math.IsInf(want, 1) {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		require.InDelta(t, want, hit.Toi, 1e-9)
	}
}

func TestInsertReplacesAndRemoveShrinks(t *testing.T) {
	x := indexWithCube(t)
	far := chunk.KeyFromIndex(4, 0, 0)
	tree, ok := GenerateChunkIndex(cubeAt(cube.Pos{72, 8, 8}, 0), far.Extent())
	require.True(t, ok)
	x.InsertChunk(far, tree)
	require.Equal(t, 2, x.Len())
	bounds, _ := x.Bounds()
	require.InDelta(t, 72.5, bounds.Max()[0], 1e-9)

	// Replacing an entry keeps one leaf per chunk.
	x.InsertChunk(far, tree)
	require.Equal(t, 2, x.Len())
	checkTree(t, x.top)

	require.True(t, x.RemoveChunk(far))
	require.False(t, x.RemoveChunk(far))
	bounds, _ = x.Bounds()
	require.InDelta(t, 9.5, bounds.Max()[0], 1e-9)

	x.InsertChunk(chunk.Key{}, NewTree[cube.Pos]())
	require.Zero(t, x.Len())
	_, ok = x.Bounds()
	require.False(t, ok)
}

func TestInsertNilTreeRemovesEntry(t *testing.T) {
	x := indexWithCube(t)
	require.Equal(t, 1, x.Len())

	tree, ok := GenerateChunkIndex(solidSet{}, chunk.Key{}.Extent())
	require.False(t, ok)
	x.InsertChunk(chunk.Key{}, tree)
	require.Zero(t, x.Len())
	_, ok = x.Chunk(chunk.Key{})
	require.False(t, ok)
}

func TestDistantChunksKeepSeparateEntries(t *testing.T) {
	x := NewIndex()
	// These keys share a Pack value.
	a, b := chunk.KeyFromIndex(1<<20, 0, 0), chunk.KeyFromIndex(-1<<20, 0, 0)
	require.Equal(t, a.Pack(), b.Pack())

	treeA, ok := GenerateChunkIndex(cubeAt(a.Pos().Add(cube.Pos{8, 8, 8}), 1), a.Extent())
	require.True(t, ok)
	treeB, ok := GenerateChunkIndex(cubeAt(b.Pos().Add(cube.Pos{8, 8, 8}), 0), b.Extent())
	require.True(t, ok)
	x.InsertChunk(a, treeA)
	x.InsertChunk(b, treeB)
	require.Equal(t, 2, x.Len())

	got, ok := x.Chunk(a)
	require.True(t, ok)
	require.Same(t, treeA, got)
	got, ok = x.Chunk(b)
	require.True(t, ok)
	require.Same(t, treeB, got)

	require.True(t, x.RemoveChunk(a))
	require.Equal(t, 1, x.Len())
	_, ok = x.Chunk(b)
	require.True(t, ok)
}

func TestTreeInsertRemoveKeepsInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	tr := NewTree[int]()
	ids := make(map[int]int32)
	for i := range 200 {
		p := cube.Pos{r.IntN(100), r.IntN(100), r.IntN(100)}
		ids[i] = tr.Insert(cube.VoxelBox(p), i)
	}
	checkTree(t, tr)
	for i := 0; i < 200; i += 2 {
		tr.Remove(ids[i])
	}
	checkTree(t, tr)
	require.Equal(t, 100, tr.Len())
	seen := 0
	tr.Leaves(func(_ cube.BBox, v int) bool {
		require.Equal(t, 1, v%2)
		seen++
		return true
	})
	require.Equal(t, 100, seen)
}

func TestSphereSweepFaceContact(t *testing.T) {
	x := NewIndex()
	tree := Build([]Leaf[cube.Pos]{{Box: cube.VoxelBox(cube.Pos{}), Data: cube.Pos{}}})
	x.InsertChunk(chunk.Key{}, tree)

	imp, ok := x.SphereSweep(0.5, mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, 5}, 0, EarliestImpact, nil)
	require.True(t, ok)
	require.InDelta(t, 0.4, imp.Toi, 1e-9)
	require.InDelta(t, -1.0, imp.Centre[2], 1e-9)

	imp, ok = x.SphereSweep(0.5, mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, 5}, 0.01, EarliestImpact, nil)
	require.True(t, ok)
	require.InDelta(t, 0.399, imp.Toi, 1e-9)

	_, ok = x.SphereSweep(0.5, mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, -5}, 0, EarliestImpact, nil)
	require.False(t, ok, "zero length sweep")
	_, ok = x.SphereSweep(0.5, mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, -3}, 0, EarliestImpact, nil)
	require.False(t, ok, "sweep ending before contact")
}

func TestSphereSweepCornerContact(t *testing.T) {
	x := NewIndex()
	x.InsertChunk(chunk.Key{}, Build([]Leaf[cube.Pos]{{Box: cube.VoxelBox(cube.Pos{}), Data: cube.Pos{}}}))

	imp, ok := x.SphereSweep(0.5, mgl64.Vec3{-3, -3, -3}, mgl64.Vec3{0, 0, 0}, 0, nil, nil)
	require.True(t, ok)
	want := (2.5 - 0.5/math.Sqrt(3)) / 3
	require.InDelta(t, want, imp.Toi, 1e-9)
	corner := mgl64.Vec3{-0.5, -0.5, -0.5}
	require.InDelta(t, 0.5, imp.Centre.Sub(corner).Len(), 1e-9)
}

func TestSphereSweepEdgeContact(t *testing.T) {
	x := NewIndex()
	x.InsertChunk(chunk.Key{}, Build([]Leaf[cube.Pos]{{Box: cube.VoxelBox(cube.Pos{}), Data: cube.Pos{}}}))

	// Moving along X below and in front of the box, the sphere first touches
	// the edge at y = -0.5, z = -0.5 once it reaches x = 0.
	imp, ok := x.SphereSweep(0.5, mgl64.Vec3{0, -0.8, -5}, mgl64.Vec3{0, -0.8, 5}, 0, nil, nil)
	require.True(t, ok)
	dz := math.Sqrt(0.25 - 0.09)
	require.InDelta(t, -0.5-dz, imp.Centre[2], 1e-9)
}

func TestSphereSweepPredicateAndComparator(t *testing.T) {
	x := NewIndex()
	x.InsertChunk(chunk.Key{}, Build([]Leaf[cube.Pos]{
		{Box: cube.VoxelBox(cube.Pos{0, 0, 0}), Data: cube.Pos{0, 0, 0}},
		{Box: cube.VoxelBox(cube.Pos{0, 0, 3}), Data: cube.Pos{0, 0, 3}},
	}))
	start, end := mgl64.Vec3{0, 0, -0.9}, mgl64.Vec3{0, 0, 6}

	// The sphere starts touching the first voxel.
	imp, ok := x.SphereSweep(0.4, start, end, 0.01, EarliestImpact, nil)
	require.True(t, ok)
	require.Zero(t, imp.Toi)

	imp, ok = x.SphereSweep(0.4, start, end, 0.01, EarliestImpact, func(i Impact) bool { return i.Toi > 1e-6 })
	require.True(t, ok)
	require.Equal(t, cube.Pos{0, 0, 3}, imp.Voxel)

	latest := func(a, b Impact) Impact {
		if b.Toi > a.Toi {
			return b
		}
		return a
	}
	imp, ok = x.SphereSweep(0.4, start, end, 0.01, latest, nil)
	require.True(t, ok)
	require.Equal(t, cube.Pos{0, 0, 3}, imp.Voxel)
}
