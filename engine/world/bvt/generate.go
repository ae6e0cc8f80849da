package bvt

import (
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
)

// Occupancy reports which points of a voxel map are empty.
type Occupancy interface {
	IsEmpty(p cube.Pos) bool
}

// PaletteOccupancy classifies the voxels of src using the empty flag of pal.
type PaletteOccupancy struct {
	Source  voxel.Source
	Palette voxel.Palette
}

// IsEmpty ...
func (o PaletteOccupancy) IsEmpty(p cube.Pos) bool {
	return o.Palette.IsEmpty(o.Source.Voxel(p))
}

// GenerateChunkIndex builds a ChunkTree over the surface voxels of ext: the
// non-empty voxels with at least one empty face neighbour. Neighbours outside
// ext are read from occ too, so occ should cover ext padded by one voxel. It
// returns false if ext holds no surface voxels.
func GenerateChunkIndex(occ Occupancy, ext cube.Extent) (*ChunkTree, bool) {
	leaves := SurfaceVoxels(occ, ext)
	if len(leaves) == 0 {
		return nil, false
	}
	return Build(leaves), true
}

// SurfaceVoxels returns a leaf for every surface voxel of ext.
func SurfaceVoxels(occ Occupancy, ext cube.Extent) []Leaf[cube.Pos] {
	var leaves []Leaf[cube.Pos]
	for p := range ext.Points() {
		if occ.IsEmpty(p) {
			continue
		}
		surface := false
		for _, face := range cube.Faces() {
			if occ.IsEmpty(p.Side(face)) {
				surface = true
				break
			}
		}
		if surface {
			leaves = append(leaves, Leaf[cube.Pos]{Box: cube.VoxelBox(p), Data: p})
		}
	}
	return leaves
}
