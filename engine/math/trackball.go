package math

import (
	m "math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultTrackballRadius is the sphere radius used for pointer-driven rotation.
const DefaultTrackballRadius float32 = 0.9

// Trackball returns the rotation that carries p1 onto p2 when both are projected
// onto a virtual sphere of the given radius. Points are normalized window coordinates.
func Trackball(radius float32, p1, p2 mgl32.Vec2) mgl32.Quat {
	if radius <= 0 || p1 == p2 {
		return mgl32.QuatIdent()
	}

	s1 := projectToSphere(radius, p1)
	s2 := projectToSphere(radius, p2)

	axis := s1.Cross(s2)
	if axis.Len() == 0 {
		return mgl32.QuatIdent()
	}
	axis = axis.Normalize()
	angle := float32(m.Acos(float64(Clamp(s1.Dot(s2), -1, 1))))

	return mgl32.QuatRotate(angle, axis)
}

// Inside r*sqrt(0.5) the point lies on the sphere, outside it on a hyperbolic sheet.
func projectToSphere(radius float32, p mgl32.Vec2) mgl32.Vec3 {
	d := p.Len()
	t := radius * float32(m.Sqrt(0.5))

	var z float32
	if d < t {
		z = float32(m.Sqrt(float64(radius*radius - d*d)))
	} else {
		z = t * t / d
	}
	return mgl32.Vec3{p[0], p[1], z}.Normalize()
}
