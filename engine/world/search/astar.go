// Package search implements bounded graph searches over the voxel lattice.
package search

import (
	"container/heap"
	"slices"

	"golang.org/x/exp/constraints"
)

// Cost is the type of edge costs and heuristic values.
type Cost interface {
	constraints.Integer | constraints.Float
}

// FiniteAStar runs A* from start until success returns true for a node or
// maxIterations nodes were expanded. successors calls yield for every
// neighbour of a node with the cost of moving there.
//
// If success is never satisfied, the path to the node with the lowest
// heuristic seen is returned, with reached false. The returned cost is the
// cost of the returned path.
func FiniteAStar[N comparable, C Cost](
	start N,
	successors func(n N, yield func(next N, cost C)),
	heuristic func(N) C,
	success func(N) bool,
	maxIterations int,
) (reached bool, path []N, cost C) {
	s := searchState[N, C]{index: map[N]int{start: 0}}
	s.nodes = append(s.nodes, visited[N, C]{n: start, parent: -1})

	best, bestH := 0, heuristic(start)
	h := &frontier[C]{{estimate: bestH, index: 0}}
	expansions := 0
	for h.Len() > 0 {
		e := heap.Pop(h).(entry[C])
		cur := s.nodes[e.index]
		if success(cur.n) {
			return true, s.path(e.index), e.cost
		}
		if e.cost > cur.cost {
			// A cheaper way to this node was found after this entry was pushed.
			continue
		}
		if expansions >= maxIterations {
			break
		}
		expansions++
		successors(cur.n, func(next N, step C) {
			c := e.cost + step
			i, ok := s.index[next]
			if ok && s.nodes[i].cost <= c {
				return
			}
			if ok {
				s.nodes[i].parent, s.nodes[i].cost = e.index, c
			} else {
				i = len(s.nodes)
				s.index[next] = i
				s.nodes = append(s.nodes, visited[N, C]{n: next, parent: e.index, cost: c})
			}
			nh := heuristic(next)
			heap.Push(h, entry[C]{estimate: c + nh, cost: c, index: i})
			if nh < bestH {
				best, bestH = i, nh
			}
		})
	}
	return false, s.path(best), s.nodes[best].cost
}

type visited[N comparable, C Cost] struct {
	n      N
	parent int
	cost   C
}

type searchState[N comparable, C Cost] struct {
	nodes []visited[N, C]
	index map[N]int
}

func (s searchState[N, C]) path(i int) []N {
	var p []N
	for ; i >= 0; i = s.nodes[i].parent {
		p = append(p, s.nodes[i].n)
	}
	slices.Reverse(p)
	return p
}

type entry[C Cost] struct {
	estimate C
	cost     C
	index    int
}

// frontier is a min-heap on estimate. Among equal estimates, entries further
// along their path come first.
type frontier[C Cost] []entry[C]

func (f frontier[C]) Len() int { return len(f) }
func (f frontier[C]) Less(i, j int) bool {
	if f[i].estimate != f[j].estimate {
		return f[i].estimate < f[j].estimate
	}
	return f[i].cost > f[j].cost
}
func (f frontier[C]) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier[C]) Push(x any)   { *f = append(*f, x.(entry[C])) }
func (f *frontier[C]) Pop() any {
	old := *f
	e := old[len(old)-1]
	*f = old[:len(old)-1]
	return e
}
