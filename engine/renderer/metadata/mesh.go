package metadata

import (
	"github.com/spaghettifunk/anima-ar/engine/animation"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

/**
 * @brief One index range of a mesh drawn with a single material.
 */
type Submesh struct {
	Name        string
	IndexBuffer Buffer
	IndexCount  uint32
	IndexType   IndexType
	IndexOffset uint64
	Material    MaterialProperties
	/** @brief Material maps bound when drawing this submesh. */
	Textures map[TextureIndex]Texture
}

/**
 * @brief GPU ready mesh data converted from a model asset.
 */
type Mesh struct {
	Name          string
	VertexBuffers []Buffer
	Submeshes     []Submesh
	/** @brief Base transform of the mesh in model space. */
	WorldTransform math.Mat4
	/**
	 * @brief Optional per-frame transforms. When present the entry at
	 * frameNumber % len replaces WorldTransform.
	 */
	WorldTransformAnimations []math.Mat4
	Skins                    []animation.SkinData
	/** @brief Skeletal clips, addressed by SkinData.AnimationIndex. */
	Animations []*animation.AnimatedSkeleton
}

// IsSkinned reports whether at least one skin has an animation bound.
func (m *Mesh) IsSkinned() bool {
	for i := range m.Skins {
		if m.Skins[i].AnimationIndex >= 0 && m.Skins[i].AnimationIndex < len(m.Animations) {
			return true
		}
	}
	return false
}

// Validate checks the index ranges and skins against the mesh data.
func (m *Mesh) Validate() error {
	if len(m.VertexBuffers) == 0 || len(m.Submeshes) == 0 {
		return errInvalidMesh("mesh '%s' has no vertex buffers or submeshes", m.Name)
	}
	for i := range m.Submeshes {
		sm := &m.Submeshes[i]
		if sm.IndexBuffer == nil || sm.IndexCount == 0 {
			return errInvalidMesh("mesh '%s' submesh %d has no indices", m.Name, i)
		}
		end := sm.IndexOffset + uint64(sm.IndexCount)*uint64(sm.IndexType.Size())
		if end > uint64(sm.IndexBuffer.Length()) {
			return errInvalidMesh("mesh '%s' submesh %d index range exceeds buffer (%d > %d)", m.Name, i, end, sm.IndexBuffer.Length())
		}
	}
	for i := range m.Skins {
		skin := &m.Skins[i]
		if skin.AnimationIndex < 0 {
			continue
		}
		if skin.AnimationIndex >= len(m.Animations) {
			return errInvalidMesh("mesh '%s' skin %d references missing animation %d", m.Name, i, skin.AnimationIndex)
		}
		if err := skin.Validate(m.Animations[skin.AnimationIndex].JointCount()); err != nil {
			return errInvalidMesh("mesh '%s' skin %d: %v", m.Name, i, err)
		}
	}
	return nil
}

/** @brief CPU side index range of a mesh asset. */
type SubmeshAsset struct {
	Name      string
	Indices   []byte
	IndexType IndexType
	Material  MaterialProperties
	Textures  map[TextureIndex]Texture
}

// IndexCount is the number of indices in the range.
func (s *SubmeshAsset) IndexCount() int {
	return len(s.Indices) / s.IndexType.Size()
}

/**
 * @brief CPU side mesh as produced by the asset loader. Vertices holds one
 * interleaved stream per vertex buffer slot (positions, then generics).
 */
type MeshAsset struct {
	Name                     string
	Vertices                 [][]byte
	Submeshes                []SubmeshAsset
	WorldTransform           math.Mat4
	WorldTransformAnimations []math.Mat4
	Skins                    []animation.SkinData
	Animations               []*animation.AnimatedSkeleton
}

/**
 * @brief A loaded model: one mesh per node of the source asset. Only
 * single mesh models are drawn.
 */
type ModelAsset struct {
	Name   string
	Meshes []*MeshAsset
}
