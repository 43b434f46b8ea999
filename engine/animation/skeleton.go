package animation

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

// NoParent marks a root joint.
const NoParent = -1

// AnimatedSkeleton is a joint hierarchy with one sampled pose per keyframe.
// Translations and rotations are stored keyframe-major: the pose of
// keyframe k occupies [k*JointCount, (k+1)*JointCount).
type AnimatedSkeleton struct {
	JointPaths    []string
	ParentIndices []int
	KeyTimes      []float64
	Translations  []math.Vec3
	Rotations     []math.Quaternion
}

// NewAnimatedSkeleton validates the hierarchy and the keyframe tracks.
// Every parent must come before its children so a single forward pass
// resolves the whole pose.
func NewAnimatedSkeleton(jointPaths []string, parents []int, keyTimes []float64, translations []math.Vec3, rotations []math.Quaternion) (*AnimatedSkeleton, error) {
	joints := len(parents)
	if joints == 0 {
		return nil, fmt.Errorf("%w: no joints", core.ErrInvalidSkeleton)
	}
	if len(jointPaths) != 0 && len(jointPaths) != joints {
		return nil, fmt.Errorf("%w: %d joint paths for %d joints", core.ErrInvalidSkeleton, len(jointPaths), joints)
	}
	for i, p := range parents {
		if p != NoParent && (p < 0 || p >= i) {
			return nil, fmt.Errorf("%w: joint %d has parent %d, parents must precede children", core.ErrInvalidSkeleton, i, p)
		}
	}
	if len(keyTimes) == 0 {
		return nil, fmt.Errorf("%w: no keyframes", core.ErrInvalidSkeleton)
	}
	if !sort.Float64sAreSorted(keyTimes) {
		return nil, fmt.Errorf("%w: key times are not sorted ascending", core.ErrInvalidSkeleton)
	}
	want := len(keyTimes) * joints
	if len(translations) != want || len(rotations) != want {
		return nil, fmt.Errorf("%w: expected %d samples per track, got %d translations and %d rotations",
			core.ErrInvalidSkeleton, want, len(translations), len(rotations))
	}

	return &AnimatedSkeleton{
		JointPaths:    jointPaths,
		ParentIndices: parents,
		KeyTimes:      keyTimes,
		Translations:  translations,
		Rotations:     rotations,
	}, nil
}

func (s *AnimatedSkeleton) JointCount() int {
	return len(s.ParentIndices)
}

func (s *AnimatedSkeleton) KeyframeCount() int {
	return len(s.KeyTimes)
}

// Duration is the time spanned by the keyframes.
func (s *AnimatedSkeleton) Duration() float64 {
	return s.KeyTimes[len(s.KeyTimes)-1] - s.KeyTimes[0]
}

// LowerBoundKeyframeIndex returns the index of the largest key time that is
// less than or equal to t. Times before the first key clamp to 0, times
// after the last clamp to the last index. keyTimes must be sorted.
func LowerBoundKeyframeIndex(keyTimes []float64, t float64) int {
	n := len(keyTimes)
	if n == 0 {
		return -1
	}
	if t <= keyTimes[0] {
		return 0
	}
	if t >= keyTimes[n-1] {
		return n - 1
	}
	// First index whose time is strictly greater than t, minus one.
	lo, hi := 0, n-1
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keyTimes[mid] <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// EvaluateAnimation returns the world matrix of every joint at time t. The
// pose of the keyframe at or before t is used, no interpolation happens.
func EvaluateAnimation(s *AnimatedSkeleton, t float64) []math.Mat4 {
	joints := s.JointCount()
	key := LowerBoundKeyframeIndex(s.KeyTimes, t)
	translations := s.Translations[key*joints : (key+1)*joints]
	rotations := s.Rotations[key*joints : (key+1)*joints]

	world := make([]math.Mat4, joints)
	for j := 0; j < joints; j++ {
		local := rotations[j].ToMat4().WithTranslation(translations[j])
		if p := s.ParentIndices[j]; p != NoParent {
			world[j] = world[p].Mul(local)
		} else {
			world[j] = local
		}
	}
	return world
}
