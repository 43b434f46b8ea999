package metadata

/**
 * @brief Texture argument slots shared by the shaders and the encoders.
 * Material maps follow the PBR parameter order of MaterialProperties.
 */
type TextureIndex int

const (
	TextureIndexColor TextureIndex = iota
	TextureIndexY
	TextureIndexCbCr
	TextureIndexMetallic
	TextureIndexRoughness
	TextureIndexNormal
	TextureIndexAmbientOcclusion
	TextureIndexIrradianceMap
	TextureIndexSubsurfaceMap
	TextureIndexSpecularMap
	TextureIndexSpecularTintMap
	TextureIndexAnisotropicMap
	TextureIndexSheenMap
	TextureIndexSheenTintMap
	TextureIndexClearcoatMap
	TextureIndexClearcoatGlossMap
	TextureIndexEnvironmentMap
	TextureIndexShadowMap
	TextureIndexCount
)

var textureIndexNames = [TextureIndexCount]string{
	"color", "y", "cbcr", "metallic", "roughness", "normal", "ambient-occlusion",
	"irradiance", "subsurface", "specular", "specular-tint", "anisotropic",
	"sheen", "sheen-tint", "clearcoat", "clearcoat-gloss", "environment", "shadow",
}

func (i TextureIndex) String() string {
	if i < 0 || i >= TextureIndexCount {
		return "unknown"
	}
	return textureIndexNames[i]
}
