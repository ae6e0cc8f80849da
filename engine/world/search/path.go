package search

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/voxel-mapper/voxelcore/engine/cube"
)

// Heuristic estimates the cost of reaching the goal from a point.
type Heuristic func(p cube.Pos) float64

// HeuristicKind selects one of the heuristics supported by Path.
type HeuristicKind uint8

const (
	// Manhattan is the L1 distance to the goal. It never overestimates, so
	// paths reaching the goal are shortest paths.
	Manhattan HeuristicKind = iota
	// StraightManhattan adds a small penalty for straying from the line
	// between start and goal, so that of several shortest paths the
	// straightest is preferred.
	StraightManhattan
)

// lineWeight scales the line deviation term of StraightManhattan.
const lineWeight = 0.001

// For returns the heuristic of kind k for a search from start to finish.
func (k HeuristicKind) For(start, finish cube.Pos) Heuristic {
	switch k {
	case Manhattan:
		return func(p cube.Pos) float64 {
			return float64(p.Manhattan(finish))
		}
	case StraightManhattan:
		a, b := start.Vec3(), finish.Vec3()
		return func(p cube.Pos) float64 {
			return float64(p.Manhattan(finish)) + lineWeight*DistanceFromLine(p.Vec3(), a, b)
		}
	}
	panic("search: unknown heuristic")
}

// ProjectOntoLine returns the point of the line through a and b closest to p.
// If a and b coincide, a is returned.
func ProjectOntoLine(p, a, b mgl64.Vec3) mgl64.Vec3 {
	v := b.Sub(a)
	l2 := v.Dot(v)
	if l2 == 0 {
		return a
	}
	return a.Add(v.Mul(p.Sub(a).Dot(v) / l2))
}

// DistanceFromLine returns the distance of p from the line through a and b.
func DistanceFromLine(p, a, b mgl64.Vec3) float64 {
	return p.Sub(ProjectOntoLine(p, a, b)).Len()
}

// Path searches for a face connected path of passable points from start to
// finish, expanding at most maxIterations points. If finish is not reached,
// the path to the point closest to it by h is returned with reached false. A
// start that is not passable yields no path.
func Path(start, finish cube.Pos, passable func(cube.Pos) bool, h Heuristic, maxIterations int) (reached bool, path []cube.Pos) {
	if !passable(start) {
		return false, nil
	}
	successors := func(p cube.Pos, yield func(cube.Pos, float64)) {
		for _, face := range cube.Faces() {
			if n := p.Side(face); passable(n) {
				yield(n, 1)
			}
		}
	}
	reached, path, _ = FiniteAStar(start, successors, h, func(p cube.Pos) bool { return p == finish }, maxIterations)
	return reached, path
}

// PathLength returns the number of steps of a path, or +Inf if it is empty.
func PathLength(path []cube.Pos) float64 {
	if len(path) == 0 {
		return math.Inf(1)
	}
	return float64(len(path) - 1)
}
