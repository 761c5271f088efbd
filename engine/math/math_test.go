package math

import (
	m "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 4, 100},
		{101, 4, 104},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignUp(tt.v, tt.align), "AlignUp(%d, %d)", tt.v, tt.align)
	}
	assert.True(t, IsPowerOfTwo(uint32(256)))
	assert.False(t, IsPowerOfTwo(uint32(0)))
	assert.False(t, IsPowerOfTwo(uint32(96)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(5, -1, 1))
	assert.Equal(t, float32(-1), Clamp(float32(-3), -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestTrackballIdentityForSamePoint(t *testing.T) {
	p := mgl32.Vec2{0.3, -0.2}
	q := Trackball(DefaultTrackballRadius, p, p)
	assert.Equal(t, mgl32.QuatIdent(), q)
}

func TestTrackballRotatesAroundY(t *testing.T) {
	q := Trackball(DefaultTrackballRadius, mgl32.Vec2{0, 0}, mgl32.Vec2{0.1, 0})

	axis := q.V.Normalize()
	assert.InDelta(t, 0, axis[0], 1e-5)
	assert.InDelta(t, 1, axis[1], 1e-5)
	assert.InDelta(t, 0, axis[2], 1e-5)
	assert.InDelta(t, 1, q.Len(), 1e-5)

	// The rotation carries the first sphere point onto the second.
	s1 := projectToSphere(DefaultTrackballRadius, mgl32.Vec2{0, 0})
	s2 := projectToSphere(DefaultTrackballRadius, mgl32.Vec2{0.1, 0})
	got := q.Rotate(s1)
	assert.True(t, got.ApproxEqualThreshold(s2, 1e-5), "got %v want %v", got, s2)
}

func TestProjectToSphereOutsideUsesHyperbola(t *testing.T) {
	p := projectToSphere(1, mgl32.Vec2{2, 0})
	// t = sqrt(0.5), z = 0.5/2 = 0.25, normalized (2, 0, 0.25)
	want := mgl32.Vec3{2, 0, 0.25}.Normalize()
	assert.True(t, p.ApproxEqualThreshold(want, 1e-6))
}

func TestPerspectiveDepthRange(t *testing.T) {
	n, f := float32(0.2), float32(10)
	p := Perspective(50, 16.0/9.0, n, f)

	d := float32(1 / m.Tan(float64(mgl32.DegToRad(25))))
	assert.InDelta(t, d, p.At(1, 1), 1e-5)
	assert.InDelta(t, d*9/16, p.At(0, 0), 1e-5)
	assert.Equal(t, float32(-1), p.At(3, 2))

	depth := func(z float32) float32 {
		v := p.Mul4x1(mgl32.Vec4{0, 0, -z, 1})
		return v[2] / v[3]
	}
	assert.InDelta(t, 0, depth(n), 1e-5)
	assert.InDelta(t, 1, depth(f), 1e-5)
}
