// Package modules holds the render modules driven by the module system.
package modules

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

const (
	SharedBuffersIdentifier  = "SharedBuffersModule"
	PrecalculationIdentifier = "PrecalculationModule"
	ShadowIdentifier         = "ShadowModule"
	AnchorsIdentifier        = "AnchorsModule"
	TrackersIdentifier       = "TrackersModule"
	SurfacesIdentifier       = "SurfacesModule"
	PathsIdentifier          = "PathsModule"
)

// uuidNone marks records not tied to an entity.
var uuidNone = uuid.NullUUID{}

// Setup is handed to every module while it initializes.
type Setup struct {
	Device renderer.Device
	// Models resolves the model bindings of anchors and trackers.
	Models             renderer.ModelProvider
	MaxFramesInFlight  int
	MaxInstances       int
	MaxPaletteMatrices int
}

// FrameContext is the input of UpdateBuffers.
type FrameContext struct {
	State     *renderer.FrameState
	Entities  *scene.EntitySet
	Positions *scene.PositionGraph
	// RenderDistance <= 0 disables distance culling.
	RenderDistance     float32
	ForceSimpleShading bool
}

/**
 * @brief A unit of rendering work. The module system initializes modules
 * once, then every frame rotates their buffers, updates them by ascending
 * render layer, dispatches compute modules and draws draw modules.
 */
type RenderModule interface {
	Identifier() string
	// RenderLayer orders modules; lower layers run first.
	RenderLayer() int
	// SharedModuleIdentifiers lists the modules handed to Draw and Dispatch.
	SharedModuleIdentifiers() []string
	IsInitialized() bool

	InitializeBuffers(setup *Setup) error
	LoadAssets(setup *Setup) error
	// LoadPipeline marks the module initialized on success.
	LoadPipeline(setup *Setup) error

	// UpdateBufferState selects the ring buffer slot written this frame.
	UpdateBufferState(bufferIndex int) error
	// UpdateBuffers writes the uniforms of the frame. The returned errors
	// are warnings; the module still draws what it could pack.
	UpdateBuffers(frame *FrameContext) []error
	FrameComplete()
	InstanceCount() int
}

// DrawModule encodes draw calls into a render pass.
type DrawModule interface {
	RenderModule
	RenderPass() metadata.RenderPassType
	Draw(encoder renderer.RenderEncoder, shared map[string]RenderModule) []error
}

// Conditional draw modules are skipped on frames where Active is false.
type Conditional interface {
	Active() bool
}

// ComputeModule encodes compute work that runs before any draw.
type ComputeModule interface {
	RenderModule
	Dispatch(encoder renderer.ComputeEncoder, shared map[string]RenderModule) []error
}

// SharedUniformsProvider exposes the per-frame camera and lighting buffer.
type SharedUniformsProvider interface {
	SharedUniforms() (metadata.Buffer, int)
}

// PrecalculationSource feeds the precalculation pass with instance data.
type PrecalculationSource interface {
	InstanceUniforms() *renderer.UniformRingBuffer
	Palettes() *renderer.UniformRingBuffer
	InstanceCount() int
}

// PrecalculationOutputProvider exposes the precalculated records of a module.
type PrecalculationOutputProvider interface {
	PrecalculatedOutput(module string) (metadata.Buffer, int, bool)
}

// ShadowCasterSource exposes the groups a module draws into the shadow map.
type ShadowCasterSource interface {
	DrawCallGroups() []*renderer.DrawCallGroup
	InstanceUniforms() *renderer.UniformRingBuffer
	Palettes() *renderer.UniformRingBuffer
}

// moduleState carries the bookkeeping every module shares.
type moduleState struct {
	identifier  string
	layer       int
	shared      []string
	initialized bool
}

func (m *moduleState) Identifier() string                { return m.identifier }
func (m *moduleState) RenderLayer() int                  { return m.layer }
func (m *moduleState) SharedModuleIdentifiers() []string { return m.shared }
func (m *moduleState) IsInitialized() bool               { return m.initialized }
func (m *moduleState) FrameComplete()                    {}

func sharedUniforms(shared map[string]RenderModule) (metadata.Buffer, int, bool) {
	p, ok := shared[SharedBuffersIdentifier].(SharedUniformsProvider)
	if !ok {
		return nil, 0, false
	}
	buf, offset := p.SharedUniforms()
	return buf, offset, true
}
