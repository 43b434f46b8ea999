package renderer

import "github.com/spaghettifunk/anima-ar/engine/renderer/metadata"

// Device is the graphics API binding. Buffers, pipelines and command buffers
// are created through it; everything else in the renderer is API agnostic.
type Device interface {
	Name() string
	MakeBuffer(label string, bufferType metadata.RenderBufferType, length int) (metadata.Buffer, error)
	MakeRenderPipeline(config metadata.PipelineConfig) (metadata.Pipeline, error)
	MakeComputePipeline(config metadata.ComputePipelineConfig) (metadata.ComputePipeline, error)
	NewCommandBuffer(label string) (CommandBuffer, error)
}

// CommandBuffer collects the passes of one frame. Completion handlers run on
// an arbitrary goroutine once the GPU has finished executing the buffer.
type CommandBuffer interface {
	Label() string
	ComputeEncoder() (ComputeEncoder, error)
	RenderEncoder(pass metadata.RenderPassType) (RenderEncoder, error)
	OnCompleted(handler func())
	Commit() error
}

type RenderEncoder interface {
	PushDebugGroup(label string)
	PopDebugGroup()
	SetPipeline(pipeline metadata.Pipeline)
	SetVertexBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex)
	SetFragmentBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex)
	SetVertexBytes(data []byte, index metadata.BufferIndex)
	SetFragmentTexture(texture metadata.Texture, index metadata.TextureIndex)
	DrawIndexed(submesh *metadata.Submesh, instanceCount int)
	EndEncoding()
}

type ComputeEncoder interface {
	PushDebugGroup(label string)
	PopDebugGroup()
	SetPipeline(pipeline metadata.ComputePipeline)
	SetBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex)
	SetBytes(data []byte, index metadata.BufferIndex)
	Dispatch(threadgroups, threadsPerThreadgroup int)
	EndEncoding()
}
