package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/floor"
	"github.com/voxel-mapper/voxelcore/engine/world/search"
)

const (
	// ballRadius is the radius of the sphere moved by MoveBallUntilCollision.
	ballRadius = 0.2
	// ballEpsilon is the distance from a voxel at which the sphere counts as
	// touching it.
	ballEpsilon = 0.01
	// toiEpsilon is the time of impact under which impacts at the start of a
	// sweep are ignored.
	toiEpsilon = 1e-6
)

// query is a read of the grid through a local cache that is handed back to the
// grid once the query is done.
type query struct {
	e     *Engine
	cache *world.LocalCache
	r     world.Reader
}

func (e *Engine) query() *query {
	cache := world.NewLocalCache()
	return &query{e: e, cache: cache, r: e.world.Grid().Reader(cache)}
}

func (q *query) done() { q.e.world.Flusher().Flush(q.cache) }

func (q *query) isEmpty(p cube.Pos) bool { return q.e.conf.Palette.IsEmpty(q.r.Voxel(p)) }

// IsFloor ...
func (q *query) IsFloor(p cube.Pos) bool { return q.e.conf.Palette.IsFloor(q.r.Voxel(p)) }

// VoxelAt returns the voxel at p as of the last tick.
func (e *Engine) VoxelAt(p cube.Pos) voxel.Voxel {
	return e.world.VoxelAt(p)
}

// IsEmpty reports whether the voxel at p is empty.
func (e *Engine) IsEmpty(p cube.Pos) bool {
	return e.conf.Palette.IsEmpty(e.VoxelAt(p))
}

// IsFloor reports whether the voxel at p can be walked on.
func (e *Engine) IsFloor(p cube.Pos) bool {
	return e.conf.Palette.IsFloor(e.VoxelAt(p))
}

// RayCast returns the nearest surface voxel hit by ray within maxToi for which
// accept returns true. A nil accept accepts every voxel.
func (e *Engine) RayCast(ray cube.Ray, maxToi float64, accept func(cube.Pos) bool) (hit bvt.RayHit, ok bool) {
	e.proc.View(func(x *bvt.Index) {
		hit, ok = x.RayCast(ray, maxToi, accept)
	})
	return hit, ok
}

// SphereSweep moves a sphere from start to end and returns the impact chosen by
// pick among those accepted by accept. See bvt.Index.SphereSweep.
func (e *Engine) SphereSweep(radius float64, start, end mgl64.Vec3, eps float64, pick func(a, b bvt.Impact) bvt.Impact, accept func(bvt.Impact) bool) (imp bvt.Impact, ok bool) {
	e.proc.View(func(x *bvt.Index) {
		imp, ok = x.SphereSweep(radius, start, end, eps, pick, accept)
	})
	return imp, ok
}

// MoveBallUntilCollision moves a small ball from start towards end and returns
// its centre at the earliest collision with a voxel, or end if it hits
// nothing. Collisions at the very start of the move are ignored.
func (e *Engine) MoveBallUntilCollision(start, end mgl64.Vec3) (bool, mgl64.Vec3) {
	imp, ok := e.SphereSweep(ballRadius, start, end, ballEpsilon, bvt.EarliestImpact, func(imp bvt.Impact) bool {
		return math.Abs(imp.Toi) > toiEpsilon
	})
	if !ok {
		return false, end
	}
	return true, start.Add(end.Sub(start).Mul(imp.Toi))
}

// Path searches for a path of empty voxels from start to finish, expanding at
// most maxIterations voxels. If finish cannot be reached, the path to the
// voxel closest to it is returned with reached false.
func (e *Engine) Path(start, finish cube.Pos, h search.HeuristicKind, maxIterations int) (reached bool, path []cube.Pos) {
	return e.Search(start, finish, func(_ cube.Pos, v voxel.Voxel) bool {
		return e.conf.Palette.IsEmpty(v)
	}, h, maxIterations)
}

// Search is like Path, but traverses the voxels for which passable returns
// true.
func (e *Engine) Search(start, finish cube.Pos, passable func(p cube.Pos, v voxel.Voxel) bool, h search.HeuristicKind, maxIterations int) (reached bool, path []cube.Pos) {
	q := e.query()
	defer q.done()
	return search.Path(start, finish, func(p cube.Pos) bool {
		return passable(p, q.r.Voxel(p))
	}, h.For(start, finish), maxIterations)
}

// EmptyRegion returns the empty voxels face connected to start, at most
// maxVisits of them, with their step distance from start.
func (e *Engine) EmptyRegion(start cube.Pos, maxVisits int) map[cube.Pos]int {
	q := e.query()
	defer q.done()
	return search.Flood(start, q.isEmpty, maxVisits)
}

// TranslateOverFloor moves start by velocity while keeping it on top of floor
// voxels. See floor.Translate.
func (e *Engine) TranslateOverFloor(start, velocity mgl64.Vec3, blocking bool) mgl64.Vec3 {
	q := e.query()
	defer q.done()
	return floor.Translate(start, velocity, q, blocking)
}
