package bvt

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/voxel-mapper/voxelcore/engine/cube"
)

const parallelEpsilon = 1e-12

// sweepSphereBox returns the earliest t in [0, 1] at which a sphere of radius
// r centred at c + t*d comes within r of box b. Spheres already touching b
// hit at 0.
func sweepSphereBox(c, d mgl64.Vec3, r float64, b cube.BBox) (float64, bool) {
	t, ok := b.Grow(r).RayIntersect(cube.Ray{Origin: c, Dir: d}, 1)
	if !ok {
		return 0, false
	}
	p := c.Add(d.Mul(t))
	lo, hi := b.Min(), b.Max()
	var u, v int
	for i := range 3 {
		if p[i] < lo[i] {
			u |= 1 << i
		}
		if p[i] > hi[i] {
			v |= 1 << i
		}
	}
	m := u | v
	switch {
	case m == 7:
		// Vertex region: the sphere can only hit one of the three edges
		// meeting at the corner.
		best, hit := math.Inf(1), false
		for _, bit := range [...]int{1, 2, 4} {
			if t, ok := sweepSphereSegment(c, d, b.Corner(v), b.Corner(v^bit), r); ok && t < best {
				best, hit = t, true
			}
		}
		return best, hit
	case m&(m-1) == 0:
		// Face region, or starting inside the box.
		return t, true
	}
	// Edge region.
	return sweepSphereSegment(c, d, b.Corner(u^7), b.Corner(v), r)
}

// sweepSphereSegment returns the earliest t in [0, 1] at which c + t*d lies
// within r of the segment from a to b.
func sweepSphereSegment(c, d, a, b mgl64.Vec3, r float64) (float64, bool) {
	if segmentDistanceSqr(c, a, b) <= r*r {
		return 0, true
	}
	best, hit := math.Inf(1), false
	try := func(t float64, ok bool) {
		if ok && t >= 0 && t <= 1 && t < best {
			best, hit = t, true
		}
	}
	try(sweepPointSphere(c, d, a, r))
	try(sweepPointSphere(c, d, b, r))
	try(sweepPointCylinder(c, d, a, b, r))
	return best, hit
}

// sweepPointSphere intersects the segment c + t*d, t in [0, 1], with the sphere
// at centre s.
func sweepPointSphere(c, d, s mgl64.Vec3, r float64) (float64, bool) {
	m := c.Sub(s)
	a, b, k := d.Dot(d), m.Dot(d), m.Dot(m)-r*r
	if k <= 0 {
		return 0, true
	}
	if b > 0 || a < parallelEpsilon {
		return 0, false
	}
	disc := b*b - a*k
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	return t, t <= 1
}

// sweepPointCylinder intersects the segment c + t*d, t in [0, 1], with the side
// of the finite cylinder around the segment from p to q. Hits on the end caps
// are left to the spheres capping a capsule.
func sweepPointCylinder(c, d, p, q mgl64.Vec3, r float64) (float64, bool) {
	axis := q.Sub(p)
	l2 := axis.Dot(axis)
	if l2 < parallelEpsilon {
		return 0, false
	}
	w := c.Sub(p)
	dp := d.Sub(axis.Mul(d.Dot(axis) / l2))
	wp := w.Sub(axis.Mul(w.Dot(axis) / l2))
	a, b, k := dp.Dot(dp), wp.Dot(dp), wp.Dot(wp)-r*r
	if a < parallelEpsilon || k <= 0 {
		return 0, false
	}
	disc := b*b - a*k
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	if s := w.Add(d.Mul(t)).Dot(axis) / l2; s < 0 || s > 1 {
		return 0, false
	}
	return t, true
}

func segmentDistanceSqr(c, a, b mgl64.Vec3) float64 {
	ab := b.Sub(a)
	t := 0.0
	if l2 := ab.Dot(ab); l2 > 0 {
		t = math.Max(0, math.Min(1, c.Sub(a).Dot(ab)/l2))
	}
	diff := c.Sub(a.Add(ab.Mul(t)))
	return diff.Dot(diff)
}
