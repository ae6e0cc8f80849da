// Package floor moves points across the walkable surface of a voxel map.
package floor

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/voxel-mapper/voxelcore/engine/cube"
)

// Source reports whether the voxel at a position is a floor voxel.
type Source interface {
	IsFloor(p cube.Pos) bool
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(p cube.Pos) bool

// IsFloor ...
func (f SourceFunc) IsFloor(p cube.Pos) bool { return f(p) }

const (
	// maxProbes bounds the vertical search performed at each boundary crossing.
	maxProbes = 10
	// startProbes bounds the vertical search used to settle the start point.
	startProbes = 100
)

var up = mgl64.Vec3{0, 1, 0}

// OnTopOfFloor reports whether p is not a floor voxel while the voxel directly
// below it is.
func OnTopOfFloor(p cube.Pos, src Source) bool {
	if src.IsFloor(p) {
		return false
	}
	return src.IsFloor(p.Side(cube.FaceDown))
}

// probe walks |n| voxels vertically from p in the direction of the sign of n
// and returns the height change to the first voxel sitting on top of the
// floor. Columns of floor voxels taller than |n| are not passable.
func probe(n int, p cube.Pos, src Source) (int, bool) {
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	dh := 0
	for range n {
		if OnTopOfFloor(p, src) {
			return dh, true
		}
		p[1] += dir
		dh += dir
	}
	return 0, false
}

// Translate moves start by velocity while keeping it on top of floor voxels.
// The point steps up onto and falls down from floor voxels as it crosses voxel
// boundaries. If blocking is true, the point stops at the last boundary it
// could settle on when a crossing hits a wall taller than the probe range;
// otherwise such crossings are skipped.
func Translate(start, velocity mgl64.Vec3, src Source, blocking bool) mgl64.Vec3 {
	sv := cube.PosFromVec3(start)
	if src.IsFloor(sv) {
		if dh, ok := probe(startProbes, sv, src); ok {
			start = start.Add(up.Mul(float64(dh)))
		}
	} else if !OnTopOfFloor(sv, src) {
		if dh, ok := probe(-startProbes, sv, src); ok {
			start = start.Add(up.Mul(float64(dh)))
		}
	}

	times := Crossings(start, velocity)
	points := make([]mgl64.Vec3, 0, len(times)+1)
	for _, t := range times {
		points = append(points, start.Add(velocity.Mul(t)))
	}
	points = append(points, start.Add(velocity))

	height, last := 0, start
	for i := 1; i < len(points); i++ {
		// The midpoint between two crossings always lies inside the voxel
		// being entered.
		mid := points[i-1].Add(points[i]).Mul(0.5)
		p := cube.PosFromVec3(mid)
		p[1] += height

		n := -maxProbes
		if src.IsFloor(p) {
			n = maxProbes
		}
		dh, ok := probe(n, p, src)
		if !ok {
			if blocking {
				return last.Add(up.Mul(float64(height)))
			}
			continue
		}
		height += dh
		last = mid
	}
	return start.Add(velocity).Add(up.Mul(float64(height)))
}

// Crossings returns the sorted parameters t in [0, 1] at which start+t*velocity
// lies on a voxel boundary along any axis.
func Crossings(start, velocity mgl64.Vec3) []float64 {
	var ts []float64
	for i := range 3 {
		// Voxel boundaries sit half way between lattice points.
		ts = append(ts, crossings1D(velocity[i], start[i]+0.5, 0, 1)...)
	}
	slices.Sort(ts)
	return slices.CompactFunc(ts, func(a, b float64) bool {
		return math.Abs(a-b) < 1e-9
	})
}

// crossings1D returns every t in [t0, tf] for which bias+slope*t is an integer.
// A constant function has no crossings.
func crossings1D(slope, bias, t0, tf float64) []float64 {
	if slope == 0 {
		return nil
	}
	var first float64
	if slope > 0 {
		first = math.Ceil(bias + slope*t0)
	} else {
		first = math.Floor(bias + slope*t0)
	}
	step := 1 / math.Abs(slope)
	var ts []float64
	for t := (first - bias) / slope; t <= tf; t += step {
		ts = append(ts, t)
	}
	return ts
}
