package metadata

import "github.com/spaghettifunk/anima-ar/engine/math"

/**
 * @brief Physically based surface description of a submesh, as handed
 * over by the asset loader. Values are in the 0..1 range.
 */
type MaterialProperties struct {
	BaseColor        math.Vec4
	IrradiatedColor  math.Vec3
	Roughness        float32
	Metalness        float32
	AmbientOcclusion float32
	Opacity          float32
	Subsurface       float32
	Specular         float32
	SpecularTint     float32
	Anisotropic      float32
	Sheen            float32
	SheenTint        float32
	Clearcoat        float32
	ClearcoatGloss   float32
}

// DefaultMaterial is a white, fully opaque, mid rough dielectric.
func DefaultMaterial() MaterialProperties {
	return MaterialProperties{
		BaseColor:        math.NewVec4(1, 1, 1, 1),
		IrradiatedColor:  math.NewVec3One(),
		Roughness:        0.5,
		AmbientOcclusion: 1,
		Opacity:          1,
		Specular:         0.5,
		ClearcoatGloss:   1,
	}
}
