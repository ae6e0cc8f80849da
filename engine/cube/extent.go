package cube

import "iter"

// Extent is an axis aligned box of lattice points, described by its minimum
// corner and its shape. An Extent with any non-positive shape component holds
// no points.
type Extent struct {
	Min   Pos
	Shape Pos
}

// ExtentFromMinMax returns the Extent spanning min to max, both inclusive.
func ExtentFromMinMax(min, max Pos) Extent {
	return Extent{Min: min, Shape: max.Sub(min).Add(Pos{1, 1, 1})}
}

// ExtentAt returns an Extent holding only p.
func ExtentAt(p Pos) Extent {
	return Extent{Min: p, Shape: Pos{1, 1, 1}}
}

// Max returns the inclusive maximum corner of e.
func (e Extent) Max() Pos {
	return e.Min.Add(e.Shape).Sub(Pos{1, 1, 1})
}

// Empty reports if e holds no points.
func (e Extent) Empty() bool {
	return e.Shape[0] <= 0 || e.Shape[1] <= 0 || e.Shape[2] <= 0
}

// Volume returns the number of points in e.
func (e Extent) Volume() int {
	if e.Empty() {
		return 0
	}
	return e.Shape[0] * e.Shape[1] * e.Shape[2]
}

// Contains checks if p lies within e.
func (e Extent) Contains(p Pos) bool {
	for i := range 3 {
		if p[i] < e.Min[i] || p[i] >= e.Min[i]+e.Shape[i] {
			return false
		}
	}
	return true
}

// Padded grows e by n points on every side.
func (e Extent) Padded(n int) Extent {
	return Extent{Min: e.Min.Sub(Pos{n, n, n}), Shape: e.Shape.Add(Pos{2 * n, 2 * n, 2 * n})}
}

// Intersection returns the points shared by e and o. The result may be empty.
func (e Extent) Intersection(o Extent) Extent {
	var lo, hi Pos
	emax, omax := e.Max(), o.Max()
	for i := range 3 {
		lo[i] = max(e.Min[i], o.Min[i])
		hi[i] = min(emax[i], omax[i])
	}
	return ExtentFromMinMax(lo, hi)
}

// Points iterates over all points of e with X varying fastest, then Y, then Z.
func (e Extent) Points() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		if e.Empty() {
			return
		}
		hi := e.Max()
		for z := e.Min[2]; z <= hi[2]; z++ {
			for y := e.Min[1]; y <= hi[1]; y++ {
				for x := e.Min[0]; x <= hi[0]; x++ {
					if !yield(Pos{x, y, z}) {
						return
					}
				}
			}
		}
	}
}

// BBox returns the bounding box covering every voxel of e.
func (e Extent) BBox() BBox {
	hi := e.Max()
	return Box(
		float64(e.Min[0])-0.5, float64(e.Min[1])-0.5, float64(e.Min[2])-0.5,
		float64(hi[0])+0.5, float64(hi[1])+0.5, float64(hi[2])+0.5,
	)
}
