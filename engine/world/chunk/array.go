package chunk

import (
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
)

// Array is a dense block of voxels over an arbitrary extent. Points outside
// the extent read as voxel.Ambient.
type Array struct {
	ext    cube.Extent
	voxels []voxel.Voxel
}

// NewArray returns an Array over ext with every voxel set to fill.
func NewArray(ext cube.Extent, fill voxel.Voxel) *Array {
	voxels := make([]voxel.Voxel, ext.Volume())
	for i := range voxels {
		voxels[i] = fill
	}
	return &Array{ext: ext, voxels: voxels}
}

// Extent returns the extent covered by the array.
func (a *Array) Extent() cube.Extent { return a.ext }

func (a *Array) index(p cube.Pos) int {
	l := p.Sub(a.ext.Min)
	return l[0] + a.ext.Shape[0]*(l[1]+a.ext.Shape[1]*l[2])
}

// Voxel returns the voxel at p, or voxel.Ambient if p lies outside the array.
func (a *Array) Voxel(p cube.Pos) voxel.Voxel {
	if !a.ext.Contains(p) {
		return voxel.Ambient
	}
	return a.voxels[a.index(p)]
}

// Set sets the voxel at p. Points outside the array are ignored.
func (a *Array) Set(p cube.Pos, v voxel.Voxel) {
	if a.ext.Contains(p) {
		a.voxels[a.index(p)] = v
	}
}

// Ptr returns a pointer to the voxel at p, which must lie within the array.
func (a *Array) Ptr(p cube.Pos) *voxel.Voxel {
	return &a.voxels[a.index(p)]
}

// CopyFrom overwrites the voxels of a that lie within src's extent.
func (a *Array) CopyFrom(src *Array) {
	for p := range a.ext.Intersection(src.ext).Points() {
		a.voxels[a.index(p)] = src.voxels[src.index(p)]
	}
}
