package renderer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/animation"
	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

// CoordinateFlip converts right-handed asset space to the left-handed render
// space by negating the Z basis.
var CoordinateFlip = math.NewMat4Scale(math.NewVec3(1, 1, -1))

// FrameState is the per-frame input shared by every module.
type FrameState struct {
	Camera      *scene.Camera
	Environment *scene.EnvironmentProperties
	// Shadow is nil when no shadow map is rendered this frame.
	Shadow      *scene.ShadowProperties
	FrameNumber uint64
	FrameRate   float64
}

// Time is the scene time in seconds used for effects and animations.
func (f *FrameState) Time() float64 {
	if f.FrameRate <= 0 {
		return 0
	}
	return float64(f.FrameNumber) / f.FrameRate
}

// PackTargets are the ring buffers a packer writes. Only Instances is
// required; Palettes may be nil for modules that never skin.
type PackTargets struct {
	Instances   *UniformRingBuffer
	Materials   *UniformRingBuffer
	Effects     *UniformRingBuffer
	Environment *UniformRingBuffer
	Palettes    *UniformRingBuffer
}

// PackResult summarizes a Pack call.
type PackResult struct {
	Slots int
	// Visible counts instances within render distance.
	Visible         int
	PaletteMatrices int
	Warnings        []error
}

// UniformPacker writes the per-instance uniforms of a module.
type UniformPacker struct {
	Module    string
	Positions *scene.PositionGraph
	// RenderDistance culls instances at or beyond it; <= 0 disables culling.
	RenderDistance float32
}

type paletteRange struct {
	start, size int
}

// instanceState is what every draw call of a group shares for one entity.
type instanceState struct {
	visible     bool
	model       math.Mat4
	normal      math.Mat3
	effects     scene.EffectValues
	palette     paletteRange
	environment EnvironmentUniforms
}

type packFrame struct {
	packer   *UniformPacker
	entities *scene.EntitySet
	frame    *FrameState
	targets  PackTargets
	now      float64
	camera   math.Vec3

	palette         []byte
	paletteCapacity int
	paletteOffset   int

	overflowReported bool
	result           PackResult
}

// Pack writes one record per slot in the order laid out by AssignSlots.
// Slots of missing or culled entities keep HasGeometry unset; they are never
// compacted so the draw phase stays in step with the buffer.
func (p *UniformPacker) Pack(groups []*DrawCallGroup, entities *scene.EntitySet, frame *FrameState, targets PackTargets) PackResult {
	c := &packFrame{
		packer:   p,
		entities: entities,
		frame:    frame,
		targets:  targets,
		now:      frame.Time(),
		camera:   frame.Camera.GetPosition(),
	}
	if targets.Palettes != nil {
		c.palette, _ = targets.Palettes.Element(0)
		c.paletteCapacity = targets.Palettes.NaturalSize() / PaletteMatrixSize
	}

	c.result.Slots = AssignSlots(groups, targets.Instances.Capacity())
	for gi, g := range groups {
		c.packGroup(gi, g)
	}
	c.result.PaletteMatrices = c.paletteOffset
	return c.result
}

func (c *packFrame) warn(kind core.ErrorKind, entity uuid.NullUUID, cause error) {
	c.result.Warnings = append(c.result.Warnings, core.NewWarning(c.packer.Module, kind, entity, cause))
}

func (c *packFrame) packGroup(gi int, g *DrawCallGroup) {
	g.EnvironmentTexture = nil
	drawn := 0
	for _, dc := range g.DrawCalls {
		drawn = max(drawn, dc.InstanceCount)
		if dc.InstanceCount < len(g.Instances) && !c.overflowReported {
			c.overflowReported = true
			c.warn(core.KindInstanceOverflow, uuid.NullUUID{},
				fmt.Errorf("%w: capacity %d", core.ErrInstanceOverflow, c.targets.Instances.Capacity()))
		}
	}

	states := make([]*instanceState, drawn)
	for ii := 0; ii < drawn; ii++ {
		states[ii] = c.resolveInstance(g, g.Instances[ii])
		if states[ii] != nil && states[ii].visible {
			c.result.Visible++
		}
	}

	for di, dc := range g.DrawCalls {
		for ii := 0; ii < dc.InstanceCount; ii++ {
			c.writeSlot(dc.UniformBufferIndex+ii, gi, di, dc, states[ii])
		}
	}
}

// resolveInstance returns nil when the entity cannot be drawn this frame.
func (c *packFrame) resolveInstance(g *DrawCallGroup, id uuid.UUID) *instanceState {
	entityID := uuid.NullUUID{UUID: id, Valid: true}
	e, ok := c.entities.Get(id)
	if !ok {
		c.warn(core.KindMissingEntity, entityID, core.ErrEntityNotFound)
		return nil
	}
	world, err := c.packer.entityWorld(e)
	if err != nil {
		c.warn(core.KindOf(err), entityID, err)
		return nil
	}
	position := world.Translation()
	if !c.packer.withinRenderDistance(position, c.camera) {
		return &instanceState{}
	}

	effects := scene.EvaluateEffects(e.Effects, c.now)
	model := world.
		Mul(meshTransform(g.Mesh, c.frame.FrameNumber)).
		Mul(CoordinateFlip).
		Mul(effects.ScaleMatrix())
	st := &instanceState{
		visible: true,
		model:   model,
		normal:  math.NewMat3Normal(model),
		effects: effects,
	}
	if g.UseSkinning {
		st.palette = c.packPalettes(g.Mesh, entityID)
	}
	st.environment = c.environment(position, g)
	return st
}

func (c *packFrame) writeSlot(slot, gi, di int, dc *DrawCall, st *instanceState) {
	instance := InstanceUniforms{
		ModelMatrix:        math.NewMat4Identity(),
		NormalMatrix:       math.NewMat3Identity(),
		DrawCallIndex:      uint32(di),
		DrawCallGroupIndex: uint32(gi),
	}
	if st != nil && st.visible {
		instance.ModelMatrix = st.model
		instance.NormalMatrix = st.normal
		instance.HasGeometry = true
		instance.PaletteStartIndex = uint32(st.palette.start)
		instance.PaletteSize = uint32(st.palette.size)

		if buf, err := element(c.targets.Materials, slot); err == nil {
			material := dc.Submesh.Material
			material.Opacity *= st.effects.Alpha
			EncodeMaterialUniforms(buf, &material)
		}
		if buf, err := element(c.targets.Effects, slot); err == nil {
			effects := EffectsUniforms{
				Alpha: st.effects.Alpha,
				Glow:  st.effects.Glow,
				Tint:  st.effects.Tint,
				Scale: st.effects.ScaleMatrix(),
			}
			effects.Encode(buf)
		}
		if buf, err := element(c.targets.Environment, slot); err == nil {
			st.environment.Encode(buf)
		}
	}
	if buf, err := c.targets.Instances.Element(slot); err == nil {
		instance.Encode(buf)
	}
}

func element(r *UniformRingBuffer, slot int) ([]byte, error) {
	if r == nil {
		return nil, core.ErrInstanceOutOfRange
	}
	return r.Element(slot)
}

// packPalettes appends the palettes of every animated skin of the mesh.
func (c *packFrame) packPalettes(mesh *metadata.Mesh, entity uuid.NullUUID) paletteRange {
	start := c.paletteOffset
	for i := range mesh.Skins {
		skin := &mesh.Skins[i]
		if skin.AnimationIndex < 0 || skin.AnimationIndex >= len(mesh.Animations) {
			continue
		}
		n := skin.PaletteSize()
		if c.paletteOffset+n > c.paletteCapacity {
			c.warn(core.KindPaletteOverflow, entity,
				fmt.Errorf("%w: %d + %d > %d matrices", core.ErrPaletteOverflow, c.paletteOffset, n, c.paletteCapacity))
			break
		}
		skeleton := mesh.Animations[skin.AnimationIndex]
		pose := animation.EvaluateAnimation(skeleton, c.now)
		EncodePalette(c.palette[c.paletteOffset*PaletteMatrixSize:], animation.EvaluateMatrixPalette(pose, skin))
		c.paletteOffset += n
	}
	return paletteRange{start: start, size: c.paletteOffset - start}
}

func (c *packFrame) environment(position math.Vec3, g *DrawCallGroup) EnvironmentUniforms {
	u := EnvironmentUniforms{
		DirectionalLightMVP: math.NewMat4Identity(),
		ShadowMVPTransform:  math.NewMat4Identity(),
	}
	if env := c.frame.Environment; env != nil {
		u.AmbientLightColor = env.AmbientColor
		u.AmbientLightIntensity = env.AmbientIntensity
		u.DirectionalLightDirection = env.DirectionalLightDirection
		u.DirectionalLightColor = env.DirectionalLightColor
		if probe, ok := env.ProbeFor(position); ok && probe.Texture != nil {
			u.HasEnvironmentMap = true
			if g.EnvironmentTexture == nil {
				g.EnvironmentTexture = probe.Texture
			}
		}
	}
	if shadow := c.frame.Shadow; shadow != nil {
		u.DirectionalLightMVP = shadow.DirectionalLightMVP
		u.ShadowMVPTransform = shadow.ShadowMVPTransform
	}
	return u
}

func (p *UniformPacker) withinRenderDistance(position, camera math.Vec3) bool {
	if p.RenderDistance <= 0 {
		return true
	}
	return position.Distance(camera) < p.RenderDistance
}

// entityWorld resolves the world transform of an entity by kind.
func (p *UniformPacker) entityWorld(e *scene.Entity) (math.Mat4, error) {
	switch e.Kind {
	case scene.KindAnchor, scene.KindGroup:
		return p.Positions.WorldTransform(e.Position)
	case scene.KindSurface:
		world, err := p.Positions.WorldTransform(e.Position)
		if err != nil || e.Surface == nil {
			return world, err
		}
		return world.Mul(math.NewMat4Scale(e.Surface.Extent)), nil
	case scene.KindTracker, scene.KindTarget:
		return p.Positions.BaseWorldTransform(e.Position)
	case scene.KindPathSegment:
		if e.Path == nil {
			return math.Mat4{}, fmt.Errorf("%w: path segment %s without path data", core.ErrInvalidMeshData, e.ID)
		}
		start, err := p.Positions.WorldTransform(e.Path.Start)
		if err != nil {
			return math.Mat4{}, err
		}
		end, err := p.Positions.WorldTransform(e.Path.End)
		if err != nil {
			return math.Mat4{}, err
		}
		return PathSegmentTransform(start.Translation(), end.Translation(), e.Path.Radius), nil
	default:
		return math.Mat4{}, fmt.Errorf("%w: unknown entity kind %s", core.ErrUnknown, e.Kind)
	}
}

func meshTransform(mesh *metadata.Mesh, frameNumber uint64) math.Mat4 {
	if mesh == nil {
		return math.NewMat4Identity()
	}
	if n := len(mesh.WorldTransformAnimations); n > 0 {
		return mesh.WorldTransformAnimations[frameNumber%uint64(n)]
	}
	return mesh.WorldTransform
}

// PathSegmentTransform maps a unit tube, centered on the origin and running
// along +Y, onto the segment from start to end.
func PathSegmentTransform(start, end math.Vec3, radius float32) math.Mat4 {
	axis := end.Sub(start)
	length := axis.Length()
	y := math.NewVec3Up()
	if length > math.K_FLOAT_EPSILON {
		y = axis.MulScalar(1 / length)
	}
	reference := math.NewVec3Forward()
	if d := y.Dot(reference); d > 0.99 || d < -0.99 {
		reference = math.NewVec3(1, 0, 0)
	}
	x := y.Cross(reference).Normalized()
	z := x.Cross(y)

	out := math.NewMat4Identity()
	columns := [3]math.Vec3{x.MulScalar(radius), y.MulScalar(length), z.MulScalar(radius)}
	for col, v := range columns {
		out.Data[col*4+0] = v.X
		out.Data[col*4+1] = v.Y
		out.Data[col*4+2] = v.Z
	}
	return out.WithTranslation(start.Add(axis.MulScalar(0.5)))
}
