package scene

import (
	"sort"

	"github.com/spaghettifunk/anima-ar/engine/math"
)

// EffectKind is the uniform an effect drives.
type EffectKind uint8

const (
	EffectAlpha EffectKind = iota
	EffectGlow
	EffectTint
	EffectScale
)

// EffectKeyframe is a value at a time in seconds. Scalar effects use X.
type EffectKeyframe struct {
	Time  float64
	Value math.Vec3
}

// Effect animates one uniform over time. Keyframes are sorted by time;
// values in between are interpolated linearly and clamped at the ends.
type Effect struct {
	Kind      EffectKind
	Keyframes []EffectKeyframe
}

// NewConstantEffect holds value at all times.
func NewConstantEffect(kind EffectKind, value math.Vec3) Effect {
	return Effect{Kind: kind, Keyframes: []EffectKeyframe{{Time: 0, Value: value}}}
}

// NewScalarEffect animates a scalar between the given (time, value) pairs.
func NewScalarEffect(kind EffectKind, times []float64, values []float32) Effect {
	e := Effect{Kind: kind}
	for i := range times {
		if i >= len(values) {
			break
		}
		e.Keyframes = append(e.Keyframes, EffectKeyframe{Time: times[i], Value: math.NewVec3(values[i], 0, 0)})
	}
	sort.Slice(e.Keyframes, func(i, j int) bool { return e.Keyframes[i].Time < e.Keyframes[j].Time })
	return e
}

// ValueAt evaluates the effect at time t.
func (e Effect) ValueAt(t float64) (math.Vec3, bool) {
	n := len(e.Keyframes)
	if n == 0 {
		return math.Vec3{}, false
	}
	if t <= e.Keyframes[0].Time {
		return e.Keyframes[0].Value, true
	}
	if t >= e.Keyframes[n-1].Time {
		return e.Keyframes[n-1].Value, true
	}
	next := sort.Search(n, func(i int) bool { return e.Keyframes[i].Time > t })
	a, b := e.Keyframes[next-1], e.Keyframes[next]
	f := float32((t - a.Time) / (b.Time - a.Time))
	return math.NewVec3(
		math.Lerp(a.Value.X, b.Value.X, f),
		math.Lerp(a.Value.Y, b.Value.Y, f),
		math.Lerp(a.Value.Z, b.Value.Z, f),
	), true
}

// EffectValues are the per-instance effect uniforms.
type EffectValues struct {
	Alpha float32
	Glow  float32
	Tint  math.Vec3
	Scale math.Vec3
}

func DefaultEffectValues() EffectValues {
	return EffectValues{
		Alpha: 1,
		Glow:  0,
		Tint:  math.NewVec3One(),
		Scale: math.NewVec3One(),
	}
}

// EvaluateEffects returns the effect uniforms at time t. The last effect of
// each kind wins; kinds without an effect keep their default.
func EvaluateEffects(effects []Effect, t float64) EffectValues {
	out := DefaultEffectValues()
	for _, e := range effects {
		v, ok := e.ValueAt(t)
		if !ok {
			continue
		}
		switch e.Kind {
		case EffectAlpha:
			out.Alpha = math.Clamp(v.X, 0, 1)
		case EffectGlow:
			out.Glow = math.Clamp(v.X, 0, 1)
		case EffectTint:
			out.Tint = v
		case EffectScale:
			out.Scale = v
		}
	}
	return out
}

// ScaleMatrix is the scale effect as a transform.
func (v EffectValues) ScaleMatrix() math.Mat4 {
	return math.NewMat4Scale(v.Scale)
}
