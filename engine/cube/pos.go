package cube

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pos holds the position of a voxel on the integer lattice. The voxel at Pos p
// occupies the unit cube centred on p, spanning [p-0.5, p+0.5] on every axis.
type Pos [3]int

// X returns the X coordinate of the position.
func (p Pos) X() int { return p[0] }

// Y returns the Y coordinate of the position.
func (p Pos) Y() int { return p[1] }

// Z returns the Z coordinate of the position.
func (p Pos) Z() int { return p[2] }

// Add adds two positions together and returns a new one with the combined values.
func (p Pos) Add(pos Pos) Pos {
	return Pos{p[0] + pos[0], p[1] + pos[1], p[2] + pos[2]}
}

// Sub subtracts pos from p and returns the result.
func (p Pos) Sub(pos Pos) Pos {
	return Pos{p[0] - pos[0], p[1] - pos[1], p[2] - pos[2]}
}

// Scale multiplies every coordinate of p by n.
func (p Pos) Scale(n int) Pos {
	return Pos{p[0] * n, p[1] * n, p[2] * n}
}

// Side returns the position on the side of this position when facing the Face passed.
func (p Pos) Side(face Face) Pos {
	return p.Add(face.Offset())
}

// Neighbours calls f for each of the six face adjacent neighbours of p.
func (p Pos) Neighbours(f func(neighbour Pos)) {
	for _, face := range Faces() {
		f(p.Side(face))
	}
}

// Manhattan returns the L1 distance between p and pos.
func (p Pos) Manhattan(pos Pos) int {
	return abs(p[0]-pos[0]) + abs(p[1]-pos[1]) + abs(p[2]-pos[2])
}

// Vec3 returns the centre of the voxel at p.
func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// String ...
func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p[0], p[1], p[2])
}

// PosFromVec3 returns the position of the voxel containing v.
func PosFromVec3(v mgl64.Vec3) Pos {
	return Pos{round(v[0]), round(v[1]), round(v[2])}
}

// round maps a coordinate to the lattice point whose voxel contains it. Points
// exactly on a boundary belong to the upper voxel.
func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Face represents one of the six faces of a voxel.
type Face int

const (
	FaceDown Face = iota
	FaceUp
	FaceNorth
	FaceSouth
	FaceWest
	FaceEast
)

// Faces returns all six faces in a fixed order.
func Faces() []Face {
	return []Face{FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast}
}

// Offset returns the unit offset pointing out of the face.
func (f Face) Offset() Pos {
	switch f {
	case FaceDown:
		return Pos{0, -1, 0}
	case FaceUp:
		return Pos{0, 1, 0}
	case FaceNorth:
		return Pos{0, 0, -1}
	case FaceSouth:
		return Pos{0, 0, 1}
	case FaceWest:
		return Pos{-1, 0, 0}
	case FaceEast:
		return Pos{1, 0, 0}
	}
	panic("invalid face")
}
