package modules

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

const precalculationFunction = "precalculationComputeShader"

/**
 * @brief Runs a compute pass over the instance uniforms of the geometry
 * modules before any of them draws. The output of every source module is
 * allocated for the maximum instance count up front.
 */
type PrecalculationModule struct {
	moduleState
	sources  []string
	pipeline metadata.ComputePipeline
	outputs  map[string]*renderer.UniformRingBuffer
}

func NewPrecalculationModule(sources ...string) *PrecalculationModule {
	return &PrecalculationModule{
		moduleState: moduleState{
			identifier: PrecalculationIdentifier,
			layer:      -50,
			shared:     append([]string{SharedBuffersIdentifier}, sources...),
		},
		sources: sources,
		outputs: make(map[string]*renderer.UniformRingBuffer, len(sources)),
	}
}

func (m *PrecalculationModule) InitializeBuffers(setup *Setup) error {
	for _, src := range m.sources {
		rb, err := renderer.NewUniformRingBuffer(setup.Device, "Precalculation Output "+src,
			renderer.PrecalculatedUniformsSize, setup.MaxInstances, setup.MaxFramesInFlight)
		if err != nil {
			return err
		}
		m.outputs[src] = rb
	}
	return nil
}

func (m *PrecalculationModule) LoadAssets(setup *Setup) error {
	return nil
}

func (m *PrecalculationModule) LoadPipeline(setup *Setup) error {
	if setup.Device == nil {
		return fmt.Errorf("%s: %w", m.identifier, core.ErrDeviceUnavailable)
	}
	p, err := setup.Device.MakeComputePipeline(metadata.ComputePipelineConfig{
		Label:    "Precalculation Pipeline",
		Function: precalculationFunction,
	})
	if err != nil {
		return err
	}
	m.pipeline = p
	m.initialized = true
	return nil
}

func (m *PrecalculationModule) UpdateBufferState(bufferIndex int) error {
	for _, src := range m.sources {
		if err := m.outputs[src].BeginFrame(bufferIndex); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBuffers has nothing to write; the GPU fills the output.
func (m *PrecalculationModule) UpdateBuffers(frame *FrameContext) []error {
	return nil
}

func (m *PrecalculationModule) InstanceCount() int {
	return 0
}

func (m *PrecalculationModule) Dispatch(encoder renderer.ComputeEncoder, shared map[string]RenderModule) []error {
	sharedBuf, sharedOffset, ok := sharedUniforms(shared)
	if !ok {
		err := fmt.Errorf("%w: %s", core.ErrModuleNotFound, SharedBuffersIdentifier)
		return []error{core.NewWarning(m.identifier, core.KindOf(err), uuidNone, err)}
	}

	encoder.PushDebugGroup("Precalculation")
	defer encoder.PopDebugGroup()
	encoder.SetPipeline(m.pipeline)
	width := max(m.pipeline.ThreadExecutionWidth(), 1)

	for _, id := range m.sources {
		src, ok := shared[id].(PrecalculationSource)
		if !ok {
			continue
		}
		count := src.InstanceCount()
		if count == 0 {
			continue
		}
		instances := src.InstanceUniforms()
		out := m.outputs[id]
		encoder.PushDebugGroup(id)
		encoder.SetBuffer(sharedBuf, sharedOffset, metadata.BufferIndexSharedUniforms)
		encoder.SetBuffer(instances.Buffer(), instances.Offset(), metadata.BufferIndexInstanceUniforms)
		if palettes := src.Palettes(); palettes != nil {
			encoder.SetBuffer(palettes.Buffer(), palettes.Offset(), metadata.BufferIndexMeshPalettes)
		}
		encoder.SetBuffer(out.Buffer(), out.Offset(), metadata.BufferIndexPrecalculationOutput)
		encoder.Dispatch((count+width-1)/width, width)
		encoder.PopDebugGroup()
	}
	return nil
}

// PrecalculatedOutput returns the output buffer and frame offset of a source.
func (m *PrecalculationModule) PrecalculatedOutput(module string) (metadata.Buffer, int, bool) {
	out, ok := m.outputs[module]
	if !ok || !m.initialized {
		return nil, 0, false
	}
	return out.Buffer(), out.Offset(), true
}
