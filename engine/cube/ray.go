package cube

import "github.com/go-gl/mathgl/mgl64"

const rayEpsilon = 1e-12

// Ray is a half line starting at Origin. Times of impact along a Ray are
// measured in multiples of Dir, so a point at toi t lies at Origin + t*Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// At returns the point on the ray at time of impact t.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}
