package metadata

/**
 * @brief Buffer argument slots shared by the shaders and the encoders.
 * Every module binds its buffers at these indices.
 */
type BufferIndex int

const (
	BufferIndexMeshPositions BufferIndex = iota
	BufferIndexMeshGenerics
	BufferIndexInstanceUniforms
	BufferIndexSharedUniforms
	BufferIndexMaterialUniforms
	BufferIndexTrackingPointData
	BufferIndexMeshPalettes
	BufferIndexMeshPaletteIndex
	BufferIndexMeshPaletteSize
	BufferIndexEffectsUniforms
	BufferIndexEnvironmentUniforms
	BufferIndexPrecalculationOutput
	BufferIndexDrawCallConstants
)

/** @brief Vertex attribute slots of the vertex descriptors. */
type VertexAttribute int

const (
	VertexAttributePosition VertexAttribute = iota
	VertexAttributeTexcoord
	VertexAttributeNormal
	VertexAttributeJointIndices
	VertexAttributeJointWeights
	VertexAttributeColor
)

/**
 * @brief Describes a render pipeline to build. The device resolves the
 * function names; a missing function fails pipeline creation.
 */
type PipelineConfig struct {
	Label            string
	VertexFunction   string
	FragmentFunction string
	/** @brief Render pass the pipeline draws into. Shadow pipelines have no fragment stage. */
	RenderPass RenderPassType
	/** @brief Mesh vertex layout uses joint indices and weights. */
	Skinned bool
	/** @brief Per-submesh textures the fragment function samples. */
	Textures []TextureIndex
}

/** @brief Describes a compute pipeline to build. */
type ComputePipelineConfig struct {
	Label    string
	Function string
}
