package scene

import (
	"github.com/spaghettifunk/anima-ar/engine/math"
)

// HeadingMode selects how a heading combines with the position transform.
type HeadingMode uint8

const (
	// HeadingAbsolute replaces rotation and scale, keeping the translation.
	HeadingAbsolute HeadingMode = iota
	// HeadingRelative composes the heading rotation after the transform.
	HeadingRelative
)

func (m HeadingMode) String() string {
	if m == HeadingRelative {
		return "relative"
	}
	return "absolute"
}

// HeadingUpdater recomputes the offset rotation from the world transform
// of the position it is attached to.
type HeadingUpdater interface {
	OffsetRotation(world math.Mat4) math.Quaternion
}

// Heading is a rotation offset applied on top of a position transform.
type Heading struct {
	Mode     HeadingMode
	Rotation math.Quaternion
	// Updater is optional. When set it refreshes Rotation on every update.
	Updater HeadingUpdater
}

func NewAbsoluteHeading(rotation math.Quaternion) Heading {
	return Heading{Mode: HeadingAbsolute, Rotation: rotation}
}

func NewRelativeHeading(rotation math.Quaternion) Heading {
	return Heading{Mode: HeadingRelative, Rotation: rotation}
}

// ApplyHeading returns m with the heading applied.
func ApplyHeading(m math.Mat4, h Heading) math.Mat4 {
	rotation := h.Rotation.ToMat4()
	if h.Mode == HeadingRelative {
		return m.Mul(rotation)
	}
	return rotation.WithTranslation(m.Translation())
}

// NorthHeading keeps the forward axis pointing to -Z, which is north when
// the session is aligned with gravity and heading.
type NorthHeading struct{}

func (NorthHeading) OffsetRotation(math.Mat4) math.Quaternion {
	return math.NewQuatIdentity()
}

// FacePointHeading turns the forward axis towards a world point, around
// the vertical axis only.
type FacePointHeading struct {
	Target math.Vec3
}

func (h FacePointHeading) OffsetRotation(world math.Mat4) math.Quaternion {
	return math.NewQuatYawTowards(h.Target.Sub(world.Translation()))
}
