package world

import (
	"maps"
	"slices"

	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// DirtySet is a set of chunk keys whose derived data must be rebuilt.
type DirtySet map[chunk.Key]struct{}

// Add inserts key into the set.
func (s DirtySet) Add(key chunk.Key) { s[key] = struct{}{} }

// Has checks if key is in the set.
func (s DirtySet) Has(key chunk.Key) bool {
	_, ok := s[key]
	return ok
}

// Merge adds all keys of o to s.
func (s DirtySet) Merge(o DirtySet) {
	maps.Copy(s, o)
}

// Keys returns the keys of the set in Morton order.
func (s DirtySet) Keys() []chunk.Key {
	keys := slices.Collect(maps.Keys(s))
	sortKeys(keys)
	return keys
}
