package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// Uniform layouts follow the shader side rules: float3 and the columns of a
// float3x3 occupy 16 bytes, structs are padded to 16 bytes.
const (
	InstanceUniformsSize      = 144
	SharedUniformsSize        = 192
	MaterialUniformsSize      = 80
	EffectsUniformsSize       = 96
	EnvironmentUniformsSize   = 208
	PrecalculatedUniformsSize = 240
	PaletteMatrixSize         = 64
	ShadowUniformsSize        = 64
)

func putUint32(dst []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(dst[offset:], v)
}

func putFloat(dst []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(dst[offset:], gomath.Float32bits(v))
}

func putBool(dst []byte, offset int, v bool) {
	if v {
		putUint32(dst, offset, 1)
	} else {
		putUint32(dst, offset, 0)
	}
}

func putVec3(dst []byte, offset int, v math.Vec3) {
	putFloat(dst, offset, v.X)
	putFloat(dst, offset+4, v.Y)
	putFloat(dst, offset+8, v.Z)
	putUint32(dst, offset+12, 0)
}

func putVec4(dst []byte, offset int, v math.Vec4) {
	putFloat(dst, offset, v.X)
	putFloat(dst, offset+4, v.Y)
	putFloat(dst, offset+8, v.Z)
	putFloat(dst, offset+12, v.W)
}

func putMat4(dst []byte, offset int, m math.Mat4) {
	for i, v := range m.Data {
		putFloat(dst, offset+i*4, v)
	}
}

func putMat3(dst []byte, offset int, m math.Mat3) {
	for col := 0; col < 3; col++ {
		putVec3(dst, offset+col*16, math.NewVec3(m.Data[col*3], m.Data[col*3+1], m.Data[col*3+2]))
	}
}

func getUint32(src []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(src[offset:])
}

func getFloat(src []byte, offset int) float32 {
	return gomath.Float32frombits(getUint32(src, offset))
}

func getVec3(src []byte, offset int) math.Vec3 {
	return math.NewVec3(getFloat(src, offset), getFloat(src, offset+4), getFloat(src, offset+8))
}

func getMat4(src []byte, offset int) math.Mat4 {
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = getFloat(src, offset+i*4)
	}
	return m
}

func getMat3(src []byte, offset int) math.Mat3 {
	var m math.Mat3
	for col := 0; col < 3; col++ {
		v := getVec3(src, offset+col*16)
		m.Data[col*3], m.Data[col*3+1], m.Data[col*3+2] = v.X, v.Y, v.Z
	}
	return m
}

// InstanceUniforms is the per-instance geometry record. HasGeometry is the
// sentinel the shaders test before drawing the instance.
type InstanceUniforms struct {
	ModelMatrix        math.Mat4
	NormalMatrix       math.Mat3
	HasGeometry        bool
	DrawCallIndex      uint32
	DrawCallGroupIndex uint32
	PaletteStartIndex  uint32
	PaletteSize        uint32
}

func (u *InstanceUniforms) Encode(dst []byte) {
	putMat4(dst, 0, u.ModelMatrix)
	putMat3(dst, 64, u.NormalMatrix)
	putBool(dst, 112, u.HasGeometry)
	putUint32(dst, 116, u.DrawCallIndex)
	putUint32(dst, 120, u.DrawCallGroupIndex)
	putUint32(dst, 124, u.PaletteStartIndex)
	putUint32(dst, 128, u.PaletteSize)
	clear(dst[132:InstanceUniformsSize])
}

func DecodeInstanceUniforms(src []byte) InstanceUniforms {
	return InstanceUniforms{
		ModelMatrix:        getMat4(src, 0),
		NormalMatrix:       getMat3(src, 64),
		HasGeometry:        getUint32(src, 112) != 0,
		DrawCallIndex:      getUint32(src, 116),
		DrawCallGroupIndex: getUint32(src, 120),
		PaletteStartIndex:  getUint32(src, 124),
		PaletteSize:        getUint32(src, 128),
	}
}

// SharedUniforms holds the camera and scene lighting, written once per frame.
type SharedUniforms struct {
	ProjectionMatrix          math.Mat4
	ViewMatrix                math.Mat4
	AmbientLightColor         math.Vec3
	DirectionalLightDirection math.Vec3
	DirectionalLightColor     math.Vec3
	MaterialShininess         float32
}

func (u *SharedUniforms) Encode(dst []byte) {
	putMat4(dst, 0, u.ProjectionMatrix)
	putMat4(dst, 64, u.ViewMatrix)
	putVec3(dst, 128, u.AmbientLightColor)
	putVec3(dst, 144, u.DirectionalLightDirection)
	putVec3(dst, 160, u.DirectionalLightColor)
	putFloat(dst, 176, u.MaterialShininess)
	clear(dst[180:SharedUniformsSize])
}

func DecodeSharedUniforms(src []byte) SharedUniforms {
	return SharedUniforms{
		ProjectionMatrix:          getMat4(src, 0),
		ViewMatrix:                getMat4(src, 64),
		AmbientLightColor:         getVec3(src, 128),
		DirectionalLightDirection: getVec3(src, 144),
		DirectionalLightColor:     getVec3(src, 160),
		MaterialShininess:         getFloat(src, 176),
	}
}

// EncodeMaterialUniforms writes the physically based material of a submesh.
func EncodeMaterialUniforms(dst []byte, m *metadata.MaterialProperties) {
	putVec4(dst, 0, m.BaseColor)
	putVec3(dst, 16, m.IrradiatedColor)
	scalars := [...]float32{
		m.Roughness, m.Metalness, m.AmbientOcclusion, m.Opacity,
		m.Subsurface, m.Specular, m.SpecularTint, m.Anisotropic,
		m.Sheen, m.SheenTint, m.Clearcoat, m.ClearcoatGloss,
	}
	for i, v := range scalars {
		putFloat(dst, 32+i*4, v)
	}
}

// DecodeOpacity reads the opacity of an encoded material.
func DecodeOpacity(src []byte) float32 {
	return getFloat(src, 44)
}

// EffectsUniforms carries the evaluated effects of an instance.
type EffectsUniforms struct {
	Alpha float32
	Glow  float32
	Tint  math.Vec3
	Scale math.Mat4
}

func (u *EffectsUniforms) Encode(dst []byte) {
	putFloat(dst, 0, u.Alpha)
	putFloat(dst, 4, u.Glow)
	clear(dst[8:16])
	putVec3(dst, 16, u.Tint)
	putMat4(dst, 32, u.Scale)
}

func DecodeEffectsUniforms(src []byte) EffectsUniforms {
	return EffectsUniforms{
		Alpha: getFloat(src, 0),
		Glow:  getFloat(src, 4),
		Tint:  getVec3(src, 16),
		Scale: getMat4(src, 32),
	}
}

// EnvironmentUniforms carries the lighting resolved for an instance.
type EnvironmentUniforms struct {
	AmbientLightColor         math.Vec3
	AmbientLightIntensity     float32
	DirectionalLightDirection math.Vec3
	DirectionalLightColor     math.Vec3
	DirectionalLightMVP       math.Mat4
	ShadowMVPTransform        math.Mat4
	HasEnvironmentMap         bool
}

func (u *EnvironmentUniforms) Encode(dst []byte) {
	putVec3(dst, 0, u.AmbientLightColor)
	putFloat(dst, 16, u.AmbientLightIntensity)
	clear(dst[20:32])
	putVec3(dst, 32, u.DirectionalLightDirection)
	putVec3(dst, 48, u.DirectionalLightColor)
	putMat4(dst, 64, u.DirectionalLightMVP)
	putMat4(dst, 128, u.ShadowMVPTransform)
	putBool(dst, 192, u.HasEnvironmentMap)
	clear(dst[196:EnvironmentUniformsSize])
}

func DecodeEnvironmentUniforms(src []byte) EnvironmentUniforms {
	return EnvironmentUniforms{
		AmbientLightColor:         getVec3(src, 0),
		AmbientLightIntensity:     getFloat(src, 16),
		DirectionalLightDirection: getVec3(src, 32),
		DirectionalLightColor:     getVec3(src, 48),
		DirectionalLightMVP:       getMat4(src, 64),
		ShadowMVPTransform:        getMat4(src, 128),
		HasEnvironmentMap:         getUint32(src, 192) != 0,
	}
}

// EncodePalette writes consecutive skinning matrices.
func EncodePalette(dst []byte, palette []math.Mat4) {
	for i := range palette {
		putMat4(dst, i*PaletteMatrixSize, palette[i])
	}
}

// DecodePaletteMatrix reads matrix i of an encoded palette.
func DecodePaletteMatrix(src []byte, i int) math.Mat4 {
	return getMat4(src, i*PaletteMatrixSize)
}

// ShadowUniforms is what the shadow pass needs on top of the instance data.
type ShadowUniforms struct {
	DirectionalLightMVP math.Mat4
}

func (u *ShadowUniforms) Encode(dst []byte) {
	putMat4(dst, 0, u.DirectionalLightMVP)
}

func DecodeShadowUniforms(src []byte) ShadowUniforms {
	return ShadowUniforms{DirectionalLightMVP: getMat4(src, 0)}
}
