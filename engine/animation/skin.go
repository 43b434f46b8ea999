package animation

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

// NoAnimation marks a skin that is drawn in its bind pose.
const NoAnimation = -1

// SkinData binds a subset of the skeleton joints to the mesh vertices.
type SkinData struct {
	// SkinToSkeletonMap[i] is the skeleton joint driving palette entry i.
	SkinToSkeletonMap     []int
	InverseBindTransforms []math.Mat4
	// AnimationIndex selects the clip on the owning mesh, NoAnimation if none.
	AnimationIndex int
}

// PaletteSize is the number of matrices the skin contributes to the palette.
func (s *SkinData) PaletteSize() int {
	return len(s.SkinToSkeletonMap)
}

// Validate checks the skin against a skeleton with jointCount joints.
func (s *SkinData) Validate(jointCount int) error {
	if len(s.SkinToSkeletonMap) != len(s.InverseBindTransforms) {
		return fmt.Errorf("%w: %d joints mapped but %d inverse bind transforms",
			core.ErrInvalidSkin, len(s.SkinToSkeletonMap), len(s.InverseBindTransforms))
	}
	for i, j := range s.SkinToSkeletonMap {
		if j < 0 || j >= jointCount {
			return fmt.Errorf("%w: palette entry %d maps to joint %d (skeleton has %d)", core.ErrInvalidSkin, i, j, jointCount)
		}
	}
	return nil
}

// EvaluateMatrixPalette combines an evaluated pose with the inverse bind
// transforms: palette[i] = worldPose[map[i]] * inverseBind[i].
func EvaluateMatrixPalette(worldPose []math.Mat4, skin *SkinData) []math.Mat4 {
	palette := make([]math.Mat4, len(skin.SkinToSkeletonMap))
	for i, j := range skin.SkinToSkeletonMap {
		palette[i] = worldPose[j].Mul(skin.InverseBindTransforms[i])
	}
	return palette
}
