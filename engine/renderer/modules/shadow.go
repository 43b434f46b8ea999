package modules

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

/**
 * @brief Renders the shadow casting groups of the caster modules into the
 * shadow map. The pass is only encoded on frames with shadow properties.
 */
type ShadowModule struct {
	moduleState
	casters   []string
	uniforms  *renderer.UniformRingBuffer
	pipelines map[bool]metadata.Pipeline
	active    bool
	drawn     int
}

func NewShadowModule(casters ...string) *ShadowModule {
	return &ShadowModule{
		moduleState: moduleState{
			identifier: ShadowIdentifier,
			layer:      -10,
			shared:     casters,
		},
		casters: casters,
	}
}

func (m *ShadowModule) InitializeBuffers(setup *Setup) error {
	rb, err := renderer.NewUniformRingBuffer(setup.Device, "Shadow Uniform Buffer", renderer.ShadowUniformsSize, 1, setup.MaxFramesInFlight)
	if err != nil {
		return err
	}
	m.uniforms = rb
	return nil
}

func (m *ShadowModule) LoadAssets(setup *Setup) error {
	return nil
}

func (m *ShadowModule) LoadPipeline(setup *Setup) error {
	if setup.Device == nil {
		return fmt.Errorf("%s: %w", m.identifier, core.ErrDeviceUnavailable)
	}
	m.pipelines = make(map[bool]metadata.Pipeline, 2)
	for _, skinned := range []bool{false, true} {
		fn := "shadowVertexShader"
		if skinned {
			fn += "Skinned"
		}
		p, err := setup.Device.MakeRenderPipeline(metadata.PipelineConfig{
			Label:          "Shadow Pipeline " + fn,
			VertexFunction: fn,
			RenderPass:     metadata.RENDERPASS_TYPE_SHADOW,
			Skinned:        skinned,
		})
		if err != nil {
			return err
		}
		m.pipelines[skinned] = p
	}
	m.initialized = true
	return nil
}

func (m *ShadowModule) UpdateBufferState(bufferIndex int) error {
	return m.uniforms.BeginFrame(bufferIndex)
}

func (m *ShadowModule) UpdateBuffers(frame *FrameContext) []error {
	shadow := frame.State.Shadow
	m.active = shadow != nil
	m.drawn = 0
	if !m.active {
		return nil
	}
	buf, err := m.uniforms.Element(0)
	if err != nil {
		return []error{core.NewWarning(m.identifier, core.KindOf(err), uuidNone, err)}
	}
	u := renderer.ShadowUniforms{DirectionalLightMVP: shadow.DirectionalLightMVP}
	u.Encode(buf)
	return nil
}

func (m *ShadowModule) RenderPass() metadata.RenderPassType {
	return metadata.RENDERPASS_TYPE_SHADOW
}

// Active reports whether the shadow pass is encoded this frame.
func (m *ShadowModule) Active() bool {
	return m.active
}

func (m *ShadowModule) Draw(encoder renderer.RenderEncoder, shared map[string]RenderModule) []error {
	if !m.active {
		return nil
	}
	encoder.PushDebugGroup("Draw Shadows")
	defer encoder.PopDebugGroup()

	for _, id := range m.casters {
		src, ok := shared[id].(ShadowCasterSource)
		if !ok {
			continue
		}
		instances, palettes := src.InstanceUniforms(), src.Palettes()
		for gi, g := range src.DrawCallGroups() {
			if !g.GeneratesShadows {
				continue
			}
			pipeline := m.pipelines[g.UseSkinning]
			for di, dc := range g.DrawCalls {
				if dc.InstanceCount == 0 || len(dc.VertexBuffers) == 0 {
					continue
				}
				encoder.SetPipeline(pipeline)
				encoder.SetVertexBuffer(dc.VertexBuffers[0], 0, metadata.BufferIndexMeshPositions)
				encoder.SetVertexBuffer(instances.Buffer(), instances.ElementOffset(dc.UniformBufferIndex), metadata.BufferIndexInstanceUniforms)
				encoder.SetVertexBuffer(m.uniforms.Buffer(), m.uniforms.Offset(), metadata.BufferIndexSharedUniforms)
				if g.UseSkinning && palettes != nil {
					encoder.SetVertexBuffer(palettes.Buffer(), palettes.Offset(), metadata.BufferIndexMeshPalettes)
				}
				constants := renderer.DrawCallConstants{GroupIndex: uint32(gi), DrawCallIndex: uint32(di)}
				encoder.SetVertexBytes(constants.Encode(), metadata.BufferIndexDrawCallConstants)
				encoder.DrawIndexed(dc.Submesh, dc.InstanceCount)
				m.drawn += dc.InstanceCount
			}
		}
	}
	return nil
}

// InstanceCount is the number of instances drawn into the last shadow map.
func (m *ShadowModule) InstanceCount() int {
	return m.drawn
}
