package modules

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// DefaultMaterialShininess is the specular exponent of the simple pipelines.
const DefaultMaterialShininess = 32

// SharedBuffersModule writes the camera and scene lighting once per frame.
// Every geometry module reads it.
type SharedBuffersModule struct {
	moduleState
	uniforms  *renderer.UniformRingBuffer
	Shininess float32
}

func NewSharedBuffersModule() *SharedBuffersModule {
	return &SharedBuffersModule{
		moduleState: moduleState{identifier: SharedBuffersIdentifier, layer: -100},
		Shininess:   DefaultMaterialShininess,
	}
}

func (m *SharedBuffersModule) InitializeBuffers(setup *Setup) error {
	rb, err := renderer.NewUniformRingBuffer(setup.Device, "Shared Uniform Buffer", renderer.SharedUniformsSize, 1, setup.MaxFramesInFlight)
	if err != nil {
		return err
	}
	m.uniforms = rb
	return nil
}

func (m *SharedBuffersModule) LoadAssets(setup *Setup) error {
	return nil
}

func (m *SharedBuffersModule) LoadPipeline(setup *Setup) error {
	if m.uniforms == nil {
		return fmt.Errorf("%s: %w", m.identifier, core.ErrBufferAllocation)
	}
	m.initialized = true
	return nil
}

func (m *SharedBuffersModule) UpdateBufferState(bufferIndex int) error {
	return m.uniforms.BeginFrame(bufferIndex)
}

func (m *SharedBuffersModule) UpdateBuffers(frame *FrameContext) []error {
	buf, err := m.uniforms.Element(0)
	if err != nil {
		return []error{core.NewWarning(m.identifier, core.KindOf(err), uuidNone, err)}
	}
	cam := frame.State.Camera
	u := renderer.SharedUniforms{
		ProjectionMatrix:  cam.Projection,
		ViewMatrix:        cam.GetView(),
		MaterialShininess: m.Shininess,
	}
	if env := frame.State.Environment; env != nil {
		u.AmbientLightColor = env.AmbientColor.MulScalar(env.AmbientIntensity)
		u.DirectionalLightDirection = env.DirectionalLightDirection
		u.DirectionalLightColor = env.DirectionalLightColor
	}
	u.Encode(buf)
	return nil
}

func (m *SharedBuffersModule) InstanceCount() int {
	return 0
}

func (m *SharedBuffersModule) SharedUniforms() (metadata.Buffer, int) {
	return m.uniforms.Buffer(), m.uniforms.Offset()
}
