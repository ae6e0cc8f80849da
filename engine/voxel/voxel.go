// Package voxel defines the value stored at every point of a voxel map and the
// palette that gives those values meaning.
package voxel

import (
	"math"

	"github.com/voxel-mapper/voxelcore/engine/cube"
)

// DistanceScale is the quantisation factor applied to signed distances before
// they are stored in a Voxel.
const DistanceScale = 50

// Voxel is the data stored at each point of the map. Type indexes the Palette,
// Distance is the quantised signed distance to the isosurface. Negative
// distances lie inside the surface.
type Voxel struct {
	Type     uint8
	Distance int8
}

// Ambient is the value implicitly filling every point that was never written.
// It is empty and as far outside the surface as the encoding allows.
var Ambient = Voxel{Type: 0, Distance: math.MaxInt8}

// New returns a Voxel of the type passed with the signed distance d encoded.
func New(t uint8, d float32) Voxel {
	return Voxel{Type: t, Distance: EncodeDistance(d)}
}

// EncodeDistance quantises a signed distance, saturating at the bounds of int8.
func EncodeDistance(d float32) int8 {
	scaled := float64(d) * DistanceScale
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt8:
		return math.MaxInt8
	case scaled <= math.MinInt8:
		return math.MinInt8
	}
	return int8(scaled)
}

// DecodeDistance is the inverse of EncodeDistance, up to quantisation.
func DecodeDistance(e int8) float32 {
	return float32(e) / DistanceScale
}

// DecodedDistance returns the signed distance stored in v.
func (v Voxel) DecodedDistance() float32 {
	return DecodeDistance(v.Distance)
}

// Source is implemented by anything that can be asked for the voxel at a point.
// Points never written hold Ambient.
type Source interface {
	Voxel(pos cube.Pos) Voxel
}
