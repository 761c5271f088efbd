package components

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-core/engine/math"
)

/**
 * @brief An orbit camera looking at the origin. The model orientation is
 * driven by the trackball and the distance by the mouse wheel.
 */
type Camera struct {
	/** @brief The position of this camera. Use SetPosition so the view is rebuilt. */
	Position mgl32.Vec3
	/** @brief Orientation applied to the model being inspected. */
	Orientation mgl32.Quat
	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32

	isDirty    bool
	viewMatrix mgl32.Mat4
}

/** @brief Distance moved per wheel notch. */
const ZOOM_STEP float32 = 0.1

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{0, 0, 5}
	c.Orientation = mgl32.QuatIdent()
	c.FovY = 50
	c.Near = 0.2
	c.Far = 10
	c.isDirty = true
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.isDirty = true
}

// Zoom moves the camera along z, one step per wheel notch. Positive notches move closer.
func (c *Camera) Zoom(notches float64) {
	switch {
	case notches > 0:
		c.Position[2] -= ZOOM_STEP
	case notches < 0:
		c.Position[2] += ZOOM_STEP
	default:
		return
	}
	c.isDirty = true
}

// Rotate composes a trackball drag from p1 to p2 onto the current orientation.
func (c *Camera) Rotate(p1, p2 mgl32.Vec2) {
	q := math.Trackball(math.DefaultTrackballRadius, p1, p2)
	c.Orientation = q.Mul(c.Orientation).Normalize()
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.isDirty {
		c.viewMatrix = mgl32.LookAtV(c.Position, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
		c.isDirty = false
	}
	return c.viewMatrix
}

// ViewProjection returns projection * view * model rotation for the given aspect ratio.
func (c *Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	proj := math.Perspective(c.FovY, aspect, c.Near, c.Far)
	return proj.Mul4(c.GetView()).Mul4(c.Orientation.Mat4())
}
