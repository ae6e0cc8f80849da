package search

import (
	"github.com/gammazero/deque"
	"github.com/voxel-mapper/voxelcore/engine/cube"
)

// Flood visits the passable points face connected to start in breadth first
// order, stopping after maxVisits points. It returns the visited points with
// their step distance from start. A start that is not passable visits nothing.
func Flood(start cube.Pos, passable func(cube.Pos) bool, maxVisits int) map[cube.Pos]int {
	dist := make(map[cube.Pos]int)
	if maxVisits <= 0 || !passable(start) {
		return dist
	}
	var todo deque.Deque[cube.Pos]
	todo.PushBack(start)
	dist[start] = 0
	for todo.Len() > 0 && len(dist) < maxVisits {
		p := todo.PopFront()
		for _, face := range cube.Faces() {
			n := p.Side(face)
			if _, seen := dist[n]; seen || !passable(n) {
				continue
			}
			dist[n] = dist[p] + 1
			if len(dist) == maxVisits {
				return dist
			}
			todo.PushBack(n)
		}
	}
	return dist
}
