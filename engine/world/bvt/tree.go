package bvt

import (
	"cmp"
	"slices"

	"github.com/voxel-mapper/voxelcore/engine/cube"
)

// nilNode marks the absence of a node in a Tree.
const nilNode int32 = -1

// Leaf is a bounding box with the data it bounds.
type Leaf[T any] struct {
	Box  cube.BBox
	Data T
}

// Tree is a binary bounding volume hierarchy with its nodes stored in an
// arena and addressed by index. Leaves carry a value of type T. Trees can be
// built in one pass with Build or grown and shrunk with Insert and Remove.
type Tree[T any] struct {
	nodes  []node[T]
	free   []int32
	root   int32
	leaves int
}

type node[T any] struct {
	box         cube.BBox
	parent      int32
	left, right int32
	data        T
}

// NewTree returns an empty Tree.
func NewTree[T any]() *Tree[T] {
	return &Tree[T]{root: nilNode}
}

// Build returns a Tree over leaves, splitting each level at the median of the
// leaf centres along the longest axis of its bounds.
func Build[T any](leaves []Leaf[T]) *Tree[T] {
	t := NewTree[T]()
	if len(leaves) == 0 {
		return t
	}
	t.nodes = make([]node[T], 0, 2*len(leaves)-1)
	t.root = t.build(slices.Clone(leaves), nilNode)
	t.leaves = len(leaves)
	return t
}

func (t *Tree[T]) build(items []Leaf[T], parent int32) int32 {
	if len(items) == 1 {
		return t.alloc(node[T]{box: items[0].Box, parent: parent, left: nilNode, right: nilNode, data: items[0].Data})
	}
	box := items[0].Box
	for _, it := range items[1:] {
		box = box.Union(it.Box)
	}
	size := box.Max().Sub(box.Min())
	axis := 0
	if size[1] > size[axis] {
		axis = 1
	}
	if size[2] > size[axis] {
		axis = 2
	}
	slices.SortStableFunc(items, func(a, b Leaf[T]) int {
		return cmp.Compare(a.Box.Centre()[axis], b.Box.Centre()[axis])
	})
	mid := len(items) / 2

	id := t.alloc(node[T]{box: box, parent: parent})
	left := t.build(items[:mid], id)
	right := t.build(items[mid:], id)
	t.nodes[id].left, t.nodes[id].right = left, right
	return id
}

func (t *Tree[T]) alloc(n node[T]) int32 {
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

func (t *Tree[T]) release(id int32) {
	t.nodes[id] = node[T]{parent: nilNode, left: nilNode, right: nilNode}
	t.free = append(t.free, id)
}

// Len returns the number of leaves in the tree.
func (t *Tree[T]) Len() int { return t.leaves }

// Bounds returns the box holding every leaf of the tree, or false if the tree
// is empty.
func (t *Tree[T]) Bounds() (cube.BBox, bool) {
	if t.root == nilNode {
		return cube.BBox{}, false
	}
	return t.nodes[t.root].box, true
}

func (t *Tree[T]) isLeaf(id int32) bool { return t.nodes[id].left == nilNode }

// Data returns the data of the leaf id.
func (t *Tree[T]) Data(id int32) T { return t.nodes[id].data }

// Box returns the bounds of the node id.
func (t *Tree[T]) Box(id int32) cube.BBox { return t.nodes[id].box }

// Leaves calls f for every leaf of the tree until f returns false.
func (t *Tree[T]) Leaves(f func(box cube.BBox, data T) bool) {
	if t.root == nilNode {
		return
	}
	stack := []int32{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if n.left == nilNode {
			if !f(n.box, n.data) {
				return
			}
			continue
		}
		stack = append(stack, n.right, n.left)
	}
}

// Insert adds a leaf and returns its id, which stays valid until the leaf is
// removed. The sibling of the new leaf is chosen to minimise the growth in
// surface area of the tree.
func (t *Tree[T]) Insert(box cube.BBox, data T) int32 {
	leaf := t.alloc(node[T]{box: box, parent: nilNode, left: nilNode, right: nilNode, data: data})
	t.leaves++
	if t.root == nilNode {
		t.root = leaf
		return leaf
	}

	s := t.root
	for !t.isLeaf(s) {
		n := t.nodes[s]
		area := n.box.SurfaceArea()
		combined := n.box.Union(box).SurfaceArea()
		cost := 2 * combined
		inherited := 2 * (combined - area)
		c1, c2 := t.descendCost(n.left, box, inherited), t.descendCost(n.right, box, inherited)
		if cost < c1 && cost < c2 {
			break
		}
		if c1 < c2 {
			s = n.left
		} else {
			s = n.right
		}
	}

	oldParent := t.nodes[s].parent
	parent := t.alloc(node[T]{box: t.nodes[s].box.Union(box), parent: oldParent, left: s, right: leaf})
	t.nodes[s].parent = parent
	t.nodes[leaf].parent = parent
	if oldParent == nilNode {
		t.root = parent
	} else {
		t.replaceChild(oldParent, s, parent)
		t.refit(oldParent)
	}
	return leaf
}

func (t *Tree[T]) descendCost(id int32, box cube.BBox, inherited float64) float64 {
	n := t.nodes[id]
	grown := n.box.Union(box).SurfaceArea()
	if n.left == nilNode {
		return grown + inherited
	}
	return grown - n.box.SurfaceArea() + inherited
}

// Remove removes the leaf id from the tree. The bounds of every ancestor
// shrink to fit the remaining leaves.
func (t *Tree[T]) Remove(leaf int32) {
	t.leaves--
	if leaf == t.root {
		t.root = nilNode
		t.release(leaf)
		return
	}
	parent := t.nodes[leaf].parent
	grand := t.nodes[parent].parent
	sibling := t.nodes[parent].left
	if sibling == leaf {
		sibling = t.nodes[parent].right
	}
	if grand == nilNode {
		t.root = sibling
		t.nodes[sibling].parent = nilNode
	} else {
		t.replaceChild(grand, parent, sibling)
		t.nodes[sibling].parent = grand
		t.refit(grand)
	}
	t.release(parent)
	t.release(leaf)
}

func (t *Tree[T]) replaceChild(parent, old, child int32) {
	if t.nodes[parent].left == old {
		t.nodes[parent].left = child
	} else {
		t.nodes[parent].right = child
	}
}

// refit recomputes the bounds of id and all its ancestors.
func (t *Tree[T]) refit(id int32) {
	for id != nilNode {
		n := &t.nodes[id]
		n.box = t.nodes[n.left].box.Union(t.nodes[n.right].box)
		id = n.parent
	}
}
