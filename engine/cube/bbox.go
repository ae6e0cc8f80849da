package cube

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BBox represents an axis aligned bounding box in world space.
type BBox struct {
	min, max mgl64.Vec3
}

// Box creates a new axis aligned bounding box with the minimum and maximum coordinates provided. The
// coordinates are sorted so that min is always the lower corner.
func Box(x0, y0, z0, x1, y1, z1 float64) BBox {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if z0 > z1 {
		z0, z1 = z1, z0
	}
	return BBox{min: mgl64.Vec3{x0, y0, z0}, max: mgl64.Vec3{x1, y1, z1}}
}

// BoxFromVec3 creates a bounding box spanning a and b.
func BoxFromVec3(a, b mgl64.Vec3) BBox {
	return Box(a[0], a[1], a[2], b[0], b[1], b[2])
}

// VoxelBox returns the unit bounding box of the voxel at p.
func VoxelBox(p Pos) BBox {
	c := p.Vec3()
	h := mgl64.Vec3{0.5, 0.5, 0.5}
	return BBox{min: c.Sub(h), max: c.Add(h)}
}

// SphereBox returns the smallest box holding a sphere.
func SphereBox(centre mgl64.Vec3, radius float64) BBox {
	r := mgl64.Vec3{radius, radius, radius}
	return BBox{min: centre.Sub(r), max: centre.Add(r)}
}

// Min returns the minimum coordinate of the bounding box.
func (box BBox) Min() mgl64.Vec3 { return box.min }

// Max returns the maximum coordinate of the bounding box.
func (box BBox) Max() mgl64.Vec3 { return box.max }

// Centre returns the centre point of the box.
func (box BBox) Centre() mgl64.Vec3 {
	return box.min.Add(box.max).Mul(0.5)
}

// Grow grows the bounding box in all directions by x and returns the new bounding box.
func (box BBox) Grow(x float64) BBox {
	add := mgl64.Vec3{x, x, x}
	return BBox{min: box.min.Sub(add), max: box.max.Add(add)}
}

// Translate moves the entire BBox with the Vec3 given.
func (box BBox) Translate(vec mgl64.Vec3) BBox {
	return BBox{min: box.min.Add(vec), max: box.max.Add(vec)}
}

// Union returns the smallest box holding both box and other.
func (box BBox) Union(other BBox) BBox {
	var b BBox
	for i := range 3 {
		b.min[i] = math.Min(box.min[i], other.min[i])
		b.max[i] = math.Max(box.max[i], other.max[i])
	}
	return b
}

// Contains checks if other lies entirely within box.
func (box BBox) Contains(other BBox) bool {
	for i := range 3 {
		if other.min[i] < box.min[i] || other.max[i] > box.max[i] {
			return false
		}
	}
	return true
}

// ContainsVec3 checks if the point lies within the box, boundaries included.
func (box BBox) ContainsVec3(vec mgl64.Vec3) bool {
	for i := range 3 {
		if vec[i] < box.min[i] || vec[i] > box.max[i] {
			return false
		}
	}
	return true
}

// IntersectsWith checks if the BBox intersects with another BBox. Boxes that
// only touch are considered intersecting.
func (box BBox) IntersectsWith(other BBox) bool {
	for i := range 3 {
		if other.max[i] < box.min[i] || other.min[i] > box.max[i] {
			return false
		}
	}
	return true
}

// SurfaceArea returns the total area of the six faces of the box.
func (box BBox) SurfaceArea() float64 {
	d := box.max.Sub(box.min)
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// ClosestPoint returns the point of the box closest to vec.
func (box BBox) ClosestPoint(vec mgl64.Vec3) mgl64.Vec3 {
	for i := range 3 {
		vec[i] = math.Max(box.min[i], math.Min(vec[i], box.max[i]))
	}
	return vec
}

// Corner returns one of the eight corners of the box. Bit 0 of n selects the
// maximum X, bit 1 the maximum Y and bit 2 the maximum Z.
func (box BBox) Corner(n int) mgl64.Vec3 {
	var c mgl64.Vec3
	for i := range 3 {
		if n&(1<<i) != 0 {
			c[i] = box.max[i]
		} else {
			c[i] = box.min[i]
		}
	}
	return c
}

// RayIntersect returns the smallest time of impact in [0, maxToi] at which the
// ray enters box. A ray starting inside the box hits at 0.
func (box BBox) RayIntersect(r Ray, maxToi float64) (float64, bool) {
	tmin, tmax := 0.0, maxToi
	for i := range 3 {
		if math.Abs(r.Dir[i]) < rayEpsilon {
			if r.Origin[i] < box.min[i] || r.Origin[i] > box.max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Dir[i]
		t1, t2 := (box.min[i]-r.Origin[i])*inv, (box.max[i]-r.Origin[i])*inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = math.Max(tmin, t1), math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
