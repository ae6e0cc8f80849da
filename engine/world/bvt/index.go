// Package bvt implements the collision index of a voxel map: a two-level
// bounding volume hierarchy holding one tree of surface voxels per chunk,
// indexed by a top-level tree over the chunks.
package bvt

import (
	"math"

	"github.com/brentp/intintmap"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// ChunkTree is the tree of surface voxel boxes of a single chunk.
type ChunkTree = Tree[cube.Pos]

type chunkEntry struct {
	key  chunk.Key
	tree *ChunkTree
}

// Index is a two-level collision index. The top level holds one leaf per
// chunk, bounding that chunk's ChunkTree. Chunks without an entry have no
// surface voxels.
//
// Index is not safe for concurrent mutation. Queries may run concurrently
// with each other.
type Index struct {
	top *Tree[chunkEntry]
	// slots maps packed chunk keys to the id of their leaf in top. Keys
	// outside the packable range live in far instead.
	slots *intintmap.Map
	far   map[chunk.Key]int32
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{top: NewTree[chunkEntry](), slots: intintmap.New(1024, 0.6), far: make(map[chunk.Key]int32)}
}

func (x *Index) slot(key chunk.Key) (int32, bool) {
	if !key.Packable() {
		id, ok := x.far[key]
		return id, ok
	}
	id, ok := x.slots.Get(key.Pack())
	return int32(id), ok
}

func (x *Index) setSlot(key chunk.Key, id int32) {
	if !key.Packable() {
		x.far[key] = id
		return
	}
	x.slots.Put(key.Pack(), int64(id))
}

func (x *Index) deleteSlot(key chunk.Key) {
	if !key.Packable() {
		delete(x.far, key)
		return
	}
	x.slots.Del(key.Pack())
}

// InsertChunk makes tree the entry of the chunk at key, replacing any previous
// entry. A nil or empty tree removes the entry.
func (x *Index) InsertChunk(key chunk.Key, tree *ChunkTree) {
	x.RemoveChunk(key)
	if tree == nil {
		return
	}
	bounds, ok := tree.Bounds()
	if !ok {
		return
	}
	x.setSlot(key, x.top.Insert(bounds, chunkEntry{key: key, tree: tree}))
}

// RemoveChunk removes the entry of the chunk at key and reports if there was one.
func (x *Index) RemoveChunk(key chunk.Key) bool {
	id, ok := x.slot(key)
	if !ok {
		return false
	}
	x.top.Remove(id)
	x.deleteSlot(key)
	return true
}

// Chunk returns the entry of the chunk at key.
func (x *Index) Chunk(key chunk.Key) (*ChunkTree, bool) {
	id, ok := x.slot(key)
	if !ok {
		return nil, false
	}
	return x.top.Data(id).tree, true
}

// Len returns the number of chunks with an entry.
func (x *Index) Len() int { return x.top.Len() }

// Bounds returns the box holding every surface voxel in the index.
func (x *Index) Bounds() (cube.BBox, bool) { return x.top.Bounds() }

// Level tags the arena a NodeRef points into.
type Level uint8

const (
	// LevelTop nodes live in the tree over chunks.
	LevelTop Level = iota
	// LevelChunk nodes live in the ChunkTree of a single chunk.
	LevelChunk
)

// NodeRef addresses a node of either level of an Index. For LevelChunk refs,
// Chunk is the id of the top-level leaf owning the ChunkTree.
type NodeRef struct {
	Level Level
	Chunk int32
	ID    int32
}

func (x *Index) root() (NodeRef, bool) {
	if x.top.root == nilNode {
		return NodeRef{}, false
	}
	return NodeRef{Level: LevelTop, ID: x.top.root}, true
}

func (x *Index) chunkTree(ref NodeRef) *ChunkTree {
	return x.top.nodes[ref.Chunk].data.tree
}

func (x *Index) box(ref NodeRef) cube.BBox {
	if ref.Level == LevelTop {
		return x.top.nodes[ref.ID].box
	}
	return x.chunkTree(ref).nodes[ref.ID].box
}

// children returns the children of ref. The leaf of a chunk in the top level
// has the root of that chunk's tree as its only child. ok is false for voxel
// leaves.
func (x *Index) children(ref NodeRef) (refs [2]NodeRef, n int, ok bool) {
	if ref.Level == LevelTop {
		nd := x.top.nodes[ref.ID]
		if nd.left == nilNode {
			refs[0] = NodeRef{Level: LevelChunk, Chunk: ref.ID, ID: nd.data.tree.root}
			return refs, 1, true
		}
		refs[0], refs[1] = NodeRef{Level: LevelTop, ID: nd.left}, NodeRef{Level: LevelTop, ID: nd.right}
		return refs, 2, true
	}
	nd := x.chunkTree(ref).nodes[ref.ID]
	if nd.left == nilNode {
		return refs, 0, false
	}
	refs[0] = NodeRef{Level: LevelChunk, Chunk: ref.Chunk, ID: nd.left}
	refs[1] = NodeRef{Level: LevelChunk, Chunk: ref.Chunk, ID: nd.right}
	return refs, 2, true
}

// voxel returns the voxel of a chunk level leaf.
func (x *Index) voxel(ref NodeRef) cube.Pos {
	return x.chunkTree(ref).nodes[ref.ID].data
}

// RayHit describes the nearest voxel hit by a ray.
type RayHit struct {
	Voxel cube.Pos
	Box   cube.BBox
	// Toi is the time of impact along the ray, in multiples of its direction.
	Toi float64
}

// RayCast returns the nearest surface voxel hit by ray within maxToi for which
// accept returns true. A nil accept accepts every voxel.
func (x *Index) RayCast(ray cube.Ray, maxToi float64, accept func(cube.Pos) bool) (RayHit, bool) {
	root, ok := x.root()
	if !ok {
		return RayHit{}, false
	}
	rootToi, ok := x.box(root).RayIntersect(ray, maxToi)
	if !ok {
		return RayHit{}, false
	}
	type pending struct {
		ref NodeRef
		toi float64
	}
	var (
		hit   RayHit
		found bool
		best  = maxToi
		stack = []pending{{ref: root, toi: rootToi}}
	)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.toi > best || (found && e.toi == best) {
			continue
		}
		kids, n, inner := x.children(e.ref)
		if !inner {
			p := x.voxel(e.ref)
			if accept == nil || accept(p) {
				hit, found, best = RayHit{Voxel: p, Box: x.box(e.ref), Toi: e.toi}, true, e.toi
			}
			continue
		}
		var next [2]pending
		m := 0
		for _, k := range kids[:n] {
			if toi, ok := x.box(k).RayIntersect(ray, best); ok {
				next[m] = pending{ref: k, toi: toi}
				m++
			}
		}
		// Push the farther child first so the nearer one is visited first.
		if m == 2 && next[0].toi < next[1].toi {
			next[0], next[1] = next[1], next[0]
		}
		stack = append(stack, next[:m]...)
	}
	return hit, found
}

// VisitBox calls f for every surface voxel whose box intersects box.
func (x *Index) VisitBox(box cube.BBox, f func(p cube.Pos, b cube.BBox)) {
	root, ok := x.root()
	if !ok {
		return
	}
	stack := []NodeRef{root}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := x.box(ref)
		if !b.IntersectsWith(box) {
			continue
		}
		kids, n, inner := x.children(ref)
		if !inner {
			f(x.voxel(ref), b)
			continue
		}
		for i := n - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Impact describes a sphere sweep coming into contact with a surface voxel.
type Impact struct {
	// Toi is the fraction of the sweep travelled at the moment of impact.
	Toi   float64
	Voxel cube.Pos
	Box   cube.BBox
	// Centre is the centre of the sphere at the moment of impact.
	Centre mgl64.Vec3
}

// EarliestImpact returns whichever of a and b happens first.
func EarliestImpact(a, b Impact) Impact {
	if b.Toi < a.Toi {
		return b
	}
	return a
}

// SphereSweep moves a sphere of the radius passed from start to end and
// computes its impact with every surface voxel near the sweep. A voxel counts
// as hit once the sphere comes within eps of it. Impacts for which accept
// returns false are dropped, and the rest are reduced with pick. It returns
// false if start equals end or no impact remains.
func (x *Index) SphereSweep(radius float64, start, end mgl64.Vec3, eps float64, pick func(a, b Impact) Impact, accept func(Impact) bool) (Impact, bool) {
	if start == end {
		return Impact{}, false
	}
	if pick == nil {
		pick = EarliestImpact
	}
	vel := end.Sub(start)
	r := radius + eps
	swept := cube.SphereBox(start, r).Union(cube.SphereBox(end, r))

	var (
		best  Impact
		found bool
	)
	x.VisitBox(swept, func(p cube.Pos, b cube.BBox) {
		toi, ok := sweepSphereBox(start, vel, r, b)
		if !ok || math.IsNaN(toi) {
			return
		}
		imp := Impact{Toi: toi, Voxel: p, Box: b, Centre: start.Add(vel.Mul(toi))}
		if accept != nil && !accept(imp) {
			return
		}
		if !found {
			best, found = imp, true
			return
		}
		best = pick(best, imp)
	})
	return best, found
}
