package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestZoomStepsAlongZ(t *testing.T) {
	c := NewCamera()
	c.Zoom(1)
	assert.InDelta(t, 4.9, c.Position.Z(), 1e-6)
	c.Zoom(-2)
	assert.InDelta(t, 5.0, c.Position.Z(), 1e-6)
	c.Zoom(0)
	assert.InDelta(t, 5.0, c.Position.Z(), 1e-6)
}

func TestViewRebuiltAfterMove(t *testing.T) {
	c := NewCamera()
	before := c.GetView()
	c.SetPosition(mgl32.Vec3{0, 0, 3})
	after := c.GetView()
	assert.NotEqual(t, before, after)
	// The origin sits 3 units in front of the camera.
	p := after.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, -3, p.Z(), 1e-5)
}

func TestRotateAndReset(t *testing.T) {
	c := NewCamera()
	c.Rotate(mgl32.Vec2{0, 0}, mgl32.Vec2{0.2, 0})
	assert.False(t, c.Orientation.ApproxEqual(mgl32.QuatIdent()))
	assert.InDelta(t, 1, c.Orientation.Len(), 1e-5)

	c.Reset()
	assert.True(t, c.Orientation.ApproxEqual(mgl32.QuatIdent()))
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, c.Position)
}

func TestViewProjectionPutsOriginInsideDepthRange(t *testing.T) {
	c := NewCamera()
	clip := c.ViewProjection(16.0 / 9.0).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	depth := clip.Z() / clip.W()
	assert.Greater(t, depth, float32(0))
	assert.Less(t, depth, float32(1))
	assert.InDelta(t, 0, clip.X(), 1e-5)
	assert.InDelta(t, 0, clip.Y(), 1e-5)
}
