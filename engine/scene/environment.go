package scene

import (
	gomath "math"
	"sort"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// NeutralAmbientIntensity is the light estimate intensity, in lumens, of a
// well lit scene. Intensities are normalized against it.
const NeutralAmbientIntensity float32 = 1000

// LightEstimate is the per-frame lighting estimate of the tracking provider.
type LightEstimate struct {
	AmbientIntensity float32
	// AmbientColorTemperature in Kelvin, 6500 being pure white.
	AmbientColorTemperature float32
}

// ColorTemperatureToRGB approximates the colour of a black body at the given
// temperature in Kelvin. Components are in the 0..1 range.
func ColorTemperatureToRGB(kelvin float32) math.Vec3 {
	t := float64(math.Clamp(kelvin, 1000, 40000)) / 100
	var r, g, b float64
	if t <= 66 {
		r = 255
		g = 99.4708025861*gomath.Log(t) - 161.1195681661
	} else {
		r = 329.698727446 * gomath.Pow(t-60, -0.1332047592)
		g = 288.1221695283 * gomath.Pow(t-60, -0.0755148492)
	}
	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = 138.5177312231*gomath.Log(t-10) - 305.0447927307
	}
	return math.NewVec3(
		math.Clamp(float32(r), 0, 255)/255,
		math.Clamp(float32(g), 0, 255)/255,
		math.Clamp(float32(b), 0, 255)/255,
	)
}

// EnvironmentProbe is an environment texture valid inside a world volume.
type EnvironmentProbe struct {
	ID      uuid.UUID
	Texture metadata.Texture
	Bounds  math.Extents3D
}

// EnvironmentProperties is the scene-wide lighting of a frame.
type EnvironmentProperties struct {
	AmbientColor              math.Vec3
	AmbientIntensity          float32
	DirectionalLightDirection math.Vec3
	DirectionalLightColor     math.Vec3
	Probes                    map[uuid.UUID]EnvironmentProbe
}

func DefaultEnvironment() EnvironmentProperties {
	return EnvironmentProperties{
		AmbientColor:              math.NewVec3One(),
		AmbientIntensity:          1,
		DirectionalLightDirection: math.NewVec3(0, -1, 0),
		DirectionalLightColor:     math.NewVec3One(),
	}
}

// ApplyLightEstimate replaces the ambient light with the estimate.
func (e *EnvironmentProperties) ApplyLightEstimate(estimate *LightEstimate) {
	if estimate == nil {
		return
	}
	e.AmbientIntensity = estimate.AmbientIntensity / NeutralAmbientIntensity
	e.AmbientColor = ColorTemperatureToRGB(estimate.AmbientColorTemperature)
}

// ProbeFor returns the probe whose bounds contain the position. When several
// do, the smallest volume wins; equal volumes are ordered by probe id.
func (e *EnvironmentProperties) ProbeFor(position math.Vec3) (EnvironmentProbe, bool) {
	var candidates []EnvironmentProbe
	for _, p := range e.Probes {
		if p.Bounds.Contains(position) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return EnvironmentProbe{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		vi, vj := candidates[i].Bounds.Volume(), candidates[j].Bounds.Volume()
		if vi != vj {
			return vi < vj
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return candidates[0], true
}

// ShadowProperties is the shadow map input of a frame.
type ShadowProperties struct {
	Texture metadata.Texture
	// DirectionalLightMVP transforms world space to light clip space.
	DirectionalLightMVP math.Mat4
	// ShadowMVPTransform maps world space to shadow map texture space.
	ShadowMVPTransform math.Mat4
}
