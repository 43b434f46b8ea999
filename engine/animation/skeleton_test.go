package animation

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

func TestLowerBoundKeyframeIndexRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(40)
		times := make([]float64, n)
		acc := rng.Float64()
		for i := range times {
			acc += 0.01 + rng.Float64()
			times[i] = acc
		}
		first, last := times[0], times[n-1]

		if got := LowerBoundKeyframeIndex(times, first-rng.Float64()); got != 0 {
			t.Fatalf("round %d: before first got %d, want 0", round, got)
		}
		if got := LowerBoundKeyframeIndex(times, first); got != 0 {
			t.Fatalf("round %d: at first got %d, want 0", round, got)
		}
		if got := LowerBoundKeyframeIndex(times, last+rng.Float64()); got != n-1 {
			t.Fatalf("round %d: after last got %d, want %d", round, got, n-1)
		}
		if got := LowerBoundKeyframeIndex(times, last); got != n-1 {
			t.Fatalf("round %d: at last got %d, want %d", round, got, n-1)
		}

		for q := 0; q < 20; q++ {
			query := first + rng.Float64()*(last-first)
			want := sort.Search(n, func(i int) bool { return times[i] > query }) - 1
			if got := LowerBoundKeyframeIndex(times, query); got != want {
				t.Fatalf("round %d: query %f got %d, want %d", round, query, got, want)
			}
			if times[want] > query || (want+1 < n && times[want+1] <= query) {
				t.Fatalf("round %d: index %d is not the largest time <= %f", round, want, query)
			}
		}
	}
}

func TestLowerBoundKeyframeIndexExactKeys(t *testing.T) {
	times := []float64{0, 1, 2}
	tests := []struct {
		at   float64
		want int
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0},
		{1, 1},
		{1.5, 1},
		{1.999, 1},
		{2, 2},
		{10, 2},
	}
	for _, tt := range tests {
		if got := LowerBoundKeyframeIndex(times, tt.at); got != tt.want {
			t.Errorf("LowerBoundKeyframeIndex(%v) = %d, want %d", tt.at, got, tt.want)
		}
	}
	if got := LowerBoundKeyframeIndex(nil, 1); got != -1 {
		t.Errorf("empty key times got %d, want -1", got)
	}
}

// twoJointSkeleton has a root and a child offset one unit along X, with
// three keyframes at 0, 1 and 2 seconds whose root translation is 0, 10, 20
// along Y.
func twoJointSkeleton(t *testing.T) *AnimatedSkeleton {
	t.Helper()
	times := []float64{0, 1, 2}
	var translations []math.Vec3
	var rotations []math.Quaternion
	for k := range times {
		translations = append(translations, math.NewVec3(0, float32(k*10), 0), math.NewVec3(1, 0, 0))
		rotations = append(rotations, math.NewQuatIdentity(), math.NewQuatIdentity())
	}
	skel, err := NewAnimatedSkeleton([]string{"root", "root/arm"}, []int{NoParent, 0}, times, translations, rotations)
	if err != nil {
		t.Fatalf("NewAnimatedSkeleton: %v", err)
	}
	return skel
}

func TestEvaluateAnimationSelectsKeyframeBelow(t *testing.T) {
	skel := twoJointSkeleton(t)

	pose := EvaluateAnimation(skel, 1.5)
	if len(pose) != 2 {
		t.Fatalf("pose has %d joints, want 2", len(pose))
	}
	// Keyframe 1, not an interpolation between 1 and 2.
	if got := pose[0].Translation(); !got.Compare(math.NewVec3(0, 10, 0), 1e-5) {
		t.Errorf("root translation = %+v, want keyframe 1 pose", got)
	}
	if got := pose[1].Translation(); !got.Compare(math.NewVec3(1, 10, 0), 1e-5) {
		t.Errorf("child translation = %+v, want parent applied", got)
	}

	if got := EvaluateAnimation(skel, 99)[0].Translation(); !got.Compare(math.NewVec3(0, 20, 0), 1e-5) {
		t.Errorf("late query = %+v, want last keyframe", got)
	}
}

func TestEvaluateAnimationComposesParentRotation(t *testing.T) {
	rot := math.NewQuatFromAxisAngle(math.NewVec3Up(), math.K_PI/2, true)
	skel, err := NewAnimatedSkeleton(nil, []int{NoParent, 0}, []float64{0},
		[]math.Vec3{math.NewVec3Zero(), math.NewVec3(1, 0, 0)},
		[]math.Quaternion{rot, math.NewQuatIdentity()})
	if err != nil {
		t.Fatalf("NewAnimatedSkeleton: %v", err)
	}
	pose := EvaluateAnimation(skel, 0)
	// +X rotated 90 degrees around +Y ends up on -Z.
	if got := pose[1].Translation(); !got.Compare(math.NewVec3(0, 0, -1), 1e-5) {
		t.Errorf("child translation = %+v, want (0,0,-1)", got)
	}
}

func TestNewAnimatedSkeletonValidation(t *testing.T) {
	id := math.NewQuatIdentity()
	zero := math.NewVec3Zero()
	tests := []struct {
		name    string
		parents []int
		times   []float64
		samples int
	}{
		{"no joints", nil, []float64{0}, 0},
		{"child before parent", []int{1, NoParent}, []float64{0}, 2},
		{"self parent", []int{0}, []float64{0}, 1},
		{"no keyframes", []int{NoParent}, nil, 0},
		{"unsorted times", []int{NoParent}, []float64{1, 0}, 2},
		{"short tracks", []int{NoParent, 0}, []float64{0, 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translations := make([]math.Vec3, tt.samples)
			rotations := make([]math.Quaternion, tt.samples)
			for i := range translations {
				translations[i] = zero
				rotations[i] = id
			}
			_, err := NewAnimatedSkeleton(nil, tt.parents, tt.times, translations, rotations)
			if !errors.Is(err, core.ErrInvalidSkeleton) {
				t.Fatalf("error = %v, want ErrInvalidSkeleton", err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	skel := twoJointSkeleton(t)
	if got := skel.Duration(); got != 2 {
		t.Errorf("Duration() = %v, want 2", got)
	}
	if skel.JointCount() != 2 || skel.KeyframeCount() != 3 {
		t.Errorf("counts = %d joints %d keys", skel.JointCount(), skel.KeyframeCount())
	}
}
