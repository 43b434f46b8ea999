package scene

import (
	"github.com/spaghettifunk/anima-ar/engine/math"
)

/** @brief Interface orientation the frame is presented in. */
type Orientation int

const (
	OrientationLandscapeRight Orientation = iota
	OrientationPortrait
	OrientationLandscapeLeft
	OrientationPortraitUpsideDown
)

// rollAngle is the rotation around the viewing axis from the sensor's
// native landscape-right frame to the interface orientation.
func (o Orientation) rollAngle() float32 {
	switch o {
	case OrientationPortrait:
		return math.K_PI / 2
	case OrientationLandscapeLeft:
		return math.K_PI
	case OrientationPortraitUpsideDown:
		return -math.K_PI / 2
	default:
		return 0
	}
}

/**
 * @brief The AR camera of the current frame. The pose comes from the
 * world tracking provider every frame.
 */
type Camera struct {
	/**
	 * @brief The world transform of the camera.
	 * NOTE: Do not set this directly, use SetTransform() instead
	 * so the view matrix is recalculated when needed.
	 */
	Transform math.Mat4
	/** @brief The projection for the current viewport. */
	Projection math.Mat4
	/** @brief The current interface orientation. */
	Orientation Orientation
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

func NewCamera(transform, projection math.Mat4, orientation Orientation) *Camera {
	return &Camera{
		Transform:   transform,
		Projection:  projection,
		Orientation: orientation,
		IsDirty:     true,
	}
}

func (c *Camera) Reset() {
	c.Transform = math.NewMat4Identity()
	c.Projection = math.NewMat4Identity()
	c.Orientation = OrientationLandscapeRight
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Transform.Translation()
}

func (c *Camera) SetTransform(transform math.Mat4) {
	c.Transform = transform
	c.IsDirty = true
}

func (c *Camera) SetOrientation(orientation Orientation) {
	c.Orientation = orientation
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		oriented := c.Transform.Mul(math.NewMat4EulerZ(c.Orientation.rollAngle()))
		c.ViewMatrix = oriented.Inverse()
		c.IsDirty = false
	}
	return c.ViewMatrix
}
