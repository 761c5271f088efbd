package math

import (
	m "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Perspective builds a right-handed projection that maps view depth n..f to 0..1.
// fovy is the vertical field of view in degrees.
func Perspective(fovy, aspect, n, f float32) mgl32.Mat4 {
	d := float32(1 / m.Tan(float64(mgl32.DegToRad(fovy/2))))

	var p mgl32.Mat4
	p.Set(0, 0, d/aspect)
	p.Set(1, 1, d)
	p.Set(2, 2, f/(n-f))
	p.Set(2, 3, (f*n)/(n-f))
	p.Set(3, 2, -1)
	return p
}
