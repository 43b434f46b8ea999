package modules

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

// GeometryConfig describes a module drawing one family of entities.
type GeometryConfig struct {
	Identifier string
	Layer      int
	Kinds      []scene.EntityKind
	// FunctionPrefix names the shader functions of the module:
	// <prefix>VertexTransform[Skinned] and <prefix>FragmentLighting[Simple].
	FunctionPrefix string
	// Models overrides the provider of the setup.
	Models     renderer.ModelProvider
	BindingFor func(e *scene.Entity) uuid.NullUUID
	// Prepare rewrites the entities of the module before they are grouped.
	Prepare func(entities []*scene.Entity) []*scene.Entity
}

/**
 * @brief Draws the entities of some kinds, grouped by model. Anchors,
 * trackers, surfaces and paths are all geometry modules with their own
 * shaders and model bindings.
 */
type GeometryModule struct {
	moduleState
	config GeometryConfig

	builder   *renderer.DrawCallGroupBuilder
	targets   renderer.PackTargets
	pipelines map[renderer.PipelineVariant]metadata.Pipeline

	groups        []*renderer.DrawCallGroup
	instanceCount int
	visibleCount  int
}

func NewGeometryModule(cfg GeometryConfig) *GeometryModule {
	return &GeometryModule{
		moduleState: moduleState{
			identifier: cfg.Identifier,
			layer:      cfg.Layer,
			shared:     []string{SharedBuffersIdentifier, PrecalculationIdentifier},
		},
		config: cfg,
	}
}

func (m *GeometryModule) InitializeBuffers(setup *Setup) error {
	ring := func(label string, size, instances int) (*renderer.UniformRingBuffer, error) {
		return renderer.NewUniformRingBuffer(setup.Device, fmt.Sprintf("%s %s", m.identifier, label), size, instances, setup.MaxFramesInFlight)
	}
	var err error
	if m.targets.Instances, err = ring("Instance Uniforms", renderer.InstanceUniformsSize, setup.MaxInstances); err != nil {
		return err
	}
	if m.targets.Materials, err = ring("Material Uniforms", renderer.MaterialUniformsSize, setup.MaxInstances); err != nil {
		return err
	}
	if m.targets.Effects, err = ring("Effects Uniforms", renderer.EffectsUniformsSize, setup.MaxInstances); err != nil {
		return err
	}
	if m.targets.Environment, err = ring("Environment Uniforms", renderer.EnvironmentUniformsSize, setup.MaxInstances); err != nil {
		return err
	}
	if m.targets.Palettes, err = ring("Palettes", renderer.PaletteMatrixSize*setup.MaxPaletteMatrices, 1); err != nil {
		return err
	}
	return nil
}

func (m *GeometryModule) LoadAssets(setup *Setup) error {
	models := m.config.Models
	if models == nil {
		models = setup.Models
	}
	if models == nil {
		return fmt.Errorf("%s: no model provider: %w", m.identifier, core.ErrModelNotFound)
	}
	m.builder = renderer.NewDrawCallGroupBuilder(setup.Device, models, renderer.DrawCallGroupOptions{
		ModuleIdentifier: m.identifier,
		BindingFor:       m.config.BindingFor,
	})
	return nil
}

var materialTextures = []metadata.TextureIndex{
	metadata.TextureIndexColor,
	metadata.TextureIndexMetallic,
	metadata.TextureIndexRoughness,
	metadata.TextureIndexNormal,
	metadata.TextureIndexAmbientOcclusion,
	metadata.TextureIndexIrradianceMap,
	metadata.TextureIndexSubsurfaceMap,
	metadata.TextureIndexSpecularMap,
	metadata.TextureIndexSpecularTintMap,
	metadata.TextureIndexAnisotropicMap,
	metadata.TextureIndexSheenMap,
	metadata.TextureIndexSheenTintMap,
	metadata.TextureIndexClearcoatMap,
	metadata.TextureIndexClearcoatGlossMap,
	metadata.TextureIndexEnvironmentMap,
	metadata.TextureIndexShadowMap,
}

// LoadPipeline builds the four pipeline variants. Any missing function
// leaves the module uninitialized.
func (m *GeometryModule) LoadPipeline(setup *Setup) error {
	if setup.Device == nil {
		return fmt.Errorf("%s: %w", m.identifier, core.ErrDeviceUnavailable)
	}
	pipelines := make(map[renderer.PipelineVariant]metadata.Pipeline, 4)
	for _, skinned := range []bool{false, true} {
		vertex := m.config.FunctionPrefix + "VertexTransform"
		if skinned {
			vertex += "Skinned"
		}
		for _, shading := range []scene.Shading{scene.ShadingPhysicallyBased, scene.ShadingSimple} {
			cfg := metadata.PipelineConfig{
				VertexFunction:   vertex,
				FragmentFunction: m.config.FunctionPrefix + "FragmentLighting",
				RenderPass:       metadata.RENDERPASS_TYPE_MAIN,
				Skinned:          skinned,
				Textures:         materialTextures,
			}
			if shading == scene.ShadingSimple {
				cfg.FragmentFunction += "Simple"
				cfg.Textures = []metadata.TextureIndex{metadata.TextureIndexColor}
			}
			cfg.Label = fmt.Sprintf("%s %s", m.identifier, cfg.FragmentFunction)
			p, err := setup.Device.MakeRenderPipeline(cfg)
			if err != nil {
				return err
			}
			pipelines[renderer.PipelineVariant{Shading: shading, Skinned: skinned}] = p
		}
	}
	m.pipelines = pipelines
	m.initialized = true
	return nil
}

func (m *GeometryModule) UpdateBufferState(bufferIndex int) error {
	for _, rb := range []*renderer.UniformRingBuffer{m.targets.Instances, m.targets.Materials, m.targets.Effects, m.targets.Environment, m.targets.Palettes} {
		if err := rb.BeginFrame(bufferIndex); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBuffers rebuilds the groups of the module and packs their uniforms.
func (m *GeometryModule) UpdateBuffers(frame *FrameContext) []error {
	entities := frame.Entities.OfKinds(m.config.Kinds...)
	set := frame.Entities
	if m.config.Prepare != nil {
		entities = m.config.Prepare(entities)
		set = scene.NewEntitySet(entities)
	}

	m.builder.SetForceSimpleShading(frame.ForceSimpleShading)
	groups, warnings := m.builder.Build(entities)
	renderer.AssignPipelines(groups, m.pipelines)

	packer := &renderer.UniformPacker{
		Module:         m.identifier,
		Positions:      frame.Positions,
		RenderDistance: frame.RenderDistance,
	}
	res := packer.Pack(groups, set, frame.State, m.targets)
	m.groups = groups
	m.instanceCount = res.Slots
	m.visibleCount = res.Visible
	return append(warnings, res.Warnings...)
}

func (m *GeometryModule) RenderPass() metadata.RenderPassType {
	return metadata.RENDERPASS_TYPE_MAIN
}

func (m *GeometryModule) Draw(encoder renderer.RenderEncoder, shared map[string]RenderModule) []error {
	if m.instanceCount == 0 {
		return nil
	}
	sharedBuf, sharedOffset, ok := sharedUniforms(shared)
	if !ok {
		err := fmt.Errorf("%w: %s", core.ErrModuleNotFound, SharedBuffersIdentifier)
		return []error{core.NewWarning(m.identifier, core.KindOf(err), uuidNone, err)}
	}
	var precalc PrecalculationOutputProvider
	if p, ok := shared[PrecalculationIdentifier].(PrecalculationOutputProvider); ok {
		precalc = p
	}

	encoder.PushDebugGroup("Draw " + m.identifier)
	defer encoder.PopDebugGroup()

	t := m.targets
	for gi, g := range m.groups {
		if g.EnvironmentTexture != nil {
			encoder.SetFragmentTexture(g.EnvironmentTexture, metadata.TextureIndexEnvironmentMap)
		}
		for di, dc := range g.DrawCalls {
			if dc.Pipeline == nil || dc.InstanceCount == 0 {
				continue
			}
			encoder.PushDebugGroup(dc.Submesh.Name)
			encoder.SetPipeline(dc.Pipeline)
			for i, vb := range dc.VertexBuffers {
				encoder.SetVertexBuffer(vb, 0, metadata.BufferIndexMeshPositions+metadata.BufferIndex(i))
			}
			slot := dc.UniformBufferIndex
			encoder.SetVertexBuffer(sharedBuf, sharedOffset, metadata.BufferIndexSharedUniforms)
			encoder.SetFragmentBuffer(sharedBuf, sharedOffset, metadata.BufferIndexSharedUniforms)
			encoder.SetVertexBuffer(t.Instances.Buffer(), t.Instances.ElementOffset(slot), metadata.BufferIndexInstanceUniforms)
			encoder.SetVertexBuffer(t.Effects.Buffer(), t.Effects.ElementOffset(slot), metadata.BufferIndexEffectsUniforms)
			encoder.SetFragmentBuffer(t.Effects.Buffer(), t.Effects.ElementOffset(slot), metadata.BufferIndexEffectsUniforms)
			encoder.SetFragmentBuffer(t.Materials.Buffer(), t.Materials.ElementOffset(slot), metadata.BufferIndexMaterialUniforms)
			encoder.SetFragmentBuffer(t.Environment.Buffer(), t.Environment.ElementOffset(slot), metadata.BufferIndexEnvironmentUniforms)
			if g.UseSkinning {
				encoder.SetVertexBuffer(t.Palettes.Buffer(), t.Palettes.Offset(), metadata.BufferIndexMeshPalettes)
			}
			if precalc != nil {
				if buf, offset, ok := precalc.PrecalculatedOutput(m.identifier); ok {
					encoder.SetVertexBuffer(buf, offset, metadata.BufferIndexPrecalculationOutput)
				}
			}
			constants := renderer.DrawCallConstants{GroupIndex: uint32(gi), DrawCallIndex: uint32(di)}
			encoder.SetVertexBytes(constants.Encode(), metadata.BufferIndexDrawCallConstants)
			for _, ti := range dc.TextureIndices {
				encoder.SetFragmentTexture(dc.Submesh.Textures[ti], ti)
			}
			encoder.DrawIndexed(dc.Submesh, dc.InstanceCount)
			encoder.PopDebugGroup()
		}
	}
	return nil
}

func (m *GeometryModule) InstanceCount() int {
	return m.instanceCount
}

// VisibleCount is the number of instances within render distance.
func (m *GeometryModule) VisibleCount() int {
	return m.visibleCount
}

func (m *GeometryModule) DrawCallGroups() []*renderer.DrawCallGroup {
	return m.groups
}

func (m *GeometryModule) InstanceUniforms() *renderer.UniformRingBuffer {
	return m.targets.Instances
}

func (m *GeometryModule) Palettes() *renderer.UniformRingBuffer {
	return m.targets.Palettes
}

// Targets exposes every ring buffer of the module.
func (m *GeometryModule) Targets() renderer.PackTargets {
	return m.targets
}
