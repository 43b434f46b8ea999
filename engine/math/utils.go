package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

const (
	K_PI                 float32 = 3.14159265358979323846
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	K_FLOAT_EPSILON      float32 = 1.192092896e-07
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Lerp linearly interpolates between a and b.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

func ksin(x float32) float32 {
	return float32(gomath.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(gomath.Cos(float64(x)))
}

func ktan(x float32) float32 {
	return float32(gomath.Tan(float64(x)))
}

func katan2(y, x float32) float32 {
	return float32(gomath.Atan2(float64(y), float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(gomath.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(gomath.Abs(float64(x)))
}

/**
 * @brief Converts provided degrees to radians.
 *
 * @param degrees The degrees to be converted.
 * @return The amount in radians.
 */
func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

