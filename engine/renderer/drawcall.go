package renderer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

// ModelProvider loads model assets. An invalid id asks for the default model.
type ModelProvider interface {
	Model(id uuid.NullUUID) (*metadata.ModelAsset, error)
}

// PipelineVariant selects the pipeline a draw call is encoded with.
type PipelineVariant struct {
	Shading scene.Shading
	Skinned bool
}

// DrawCall renders one submesh of a group for every instance of the group.
type DrawCall struct {
	VertexBuffers []metadata.Buffer
	Submesh       *metadata.Submesh
	Variant       PipelineVariant
	Pipeline      metadata.Pipeline
	// InstanceCount is refreshed every frame.
	InstanceCount int
	// UniformBufferIndex is the uniform slot of the first instance.
	UniformBufferIndex int
	TextureIndices     []metadata.TextureIndex
}

func (dc *DrawCall) IndexCount() uint32            { return dc.Submesh.IndexCount }
func (dc *DrawCall) IndexType() metadata.IndexType { return dc.Submesh.IndexType }
func (dc *DrawCall) IndexOffset() uint64           { return dc.Submesh.IndexOffset }
func (dc *DrawCall) IndexBuffer() metadata.Buffer  { return dc.Submesh.IndexBuffer }

// DrawCallGroup holds the draw calls of one model and the entities drawing it.
type DrawCallGroup struct {
	// Model is the asset binding; invalid means the default model.
	Model            uuid.NullUUID
	DrawCalls        []*DrawCall
	Instances        []uuid.UUID
	GeneratesShadows bool
	UseSkinning      bool
	ModuleIdentifier string
	Mesh             *metadata.Mesh
	// EnvironmentTexture is the probe selected for the group this frame.
	EnvironmentTexture metadata.Texture
}

// SortKey orders groups. The default model sorts first.
func (g *DrawCallGroup) SortKey() string {
	return modelKey(g.Model)
}

func modelKey(id uuid.NullUUID) string {
	if !id.Valid {
		return ""
	}
	return id.UUID.String()
}

// DrawCallConstants are pushed before every draw so shaders can index the
// precalculation output.
type DrawCallConstants struct {
	GroupIndex    uint32
	DrawCallIndex uint32
}

const DrawCallConstantsSize = 8

func (c DrawCallConstants) Encode() []byte {
	out := make([]byte, DrawCallConstantsSize)
	binary.LittleEndian.PutUint32(out[0:], c.GroupIndex)
	binary.LittleEndian.PutUint32(out[4:], c.DrawCallIndex)
	return out
}

// DrawCallGroupOptions configures a builder.
type DrawCallGroupOptions struct {
	ModuleIdentifier string
	// BindingFor overrides the model binding of an entity.
	BindingFor func(e *scene.Entity) uuid.NullUUID
	// ForceSimpleShading selects the simple pipelines for every group.
	ForceSimpleShading bool
}

// DrawCallGroupBuilder turns entities into sorted draw call groups. Meshes
// are uploaded once per model and reused across builds.
type DrawCallGroupBuilder struct {
	device   Device
	provider ModelProvider
	opts     DrawCallGroupOptions
	meshes   map[string]cachedMesh
}

// cachedMesh remembers the asset a mesh was uploaded from so a replaced
// asset is uploaded again.
type cachedMesh struct {
	asset *metadata.MeshAsset
	mesh  *metadata.Mesh
}

func NewDrawCallGroupBuilder(device Device, provider ModelProvider, opts DrawCallGroupOptions) *DrawCallGroupBuilder {
	if opts.BindingFor == nil {
		opts.BindingFor = func(e *scene.Entity) uuid.NullUUID { return e.Model }
	}
	return &DrawCallGroupBuilder{
		device:   device,
		provider: provider,
		opts:     opts,
		meshes:   make(map[string]cachedMesh),
	}
}

// SetForceSimpleShading switches every group built afterwards to the simple
// pipelines. Low quality uses it.
func (b *DrawCallGroupBuilder) SetForceSimpleShading(force bool) {
	b.opts.ForceSimpleShading = force
}

// BuildDrawCallGroups builds the groups of entities without caching meshes.
func BuildDrawCallGroups(device Device, entities []*scene.Entity, provider ModelProvider, opts DrawCallGroupOptions) ([]*DrawCallGroup, []error) {
	return NewDrawCallGroupBuilder(device, provider, opts).Build(entities)
}

// Build produces one group per distinct model binding, with one draw call per
// submesh. Groups are sorted by SortKey and instances by entity id; the
// packer and the draw phase both rely on this order. Models that fail to
// load are reported as warnings and left out.
func (b *DrawCallGroupBuilder) Build(entities []*scene.Entity) ([]*DrawCallGroup, []error) {
	var warnings []error
	byModel := make(map[string]*DrawCallGroup)
	simple := make(map[string]bool)

	for _, e := range entities {
		binding := b.opts.BindingFor(e)
		key := modelKey(binding)
		g, ok := byModel[key]
		if !ok {
			g = &DrawCallGroup{Model: binding, ModuleIdentifier: b.opts.ModuleIdentifier}
			byModel[key] = g
			simple[key] = true
		}
		g.Instances = append(g.Instances, e.ID)
		g.GeneratesShadows = g.GeneratesShadows || e.CastsShadows
		simple[key] = simple[key] && e.Shading == scene.ShadingSimple
	}

	groups := make([]*DrawCallGroup, 0, len(byModel))
	for key, g := range byModel {
		mesh, err := b.mesh(g.Model)
		if err != nil {
			entity := uuid.NullUUID{}
			if len(g.Instances) == 1 {
				entity = uuid.NullUUID{UUID: g.Instances[0], Valid: true}
			}
			warnings = append(warnings, core.NewWarning(b.opts.ModuleIdentifier, core.KindOf(err), entity, err))
			continue
		}
		sort.Slice(g.Instances, func(i, j int) bool { return g.Instances[i].String() < g.Instances[j].String() })
		g.Mesh = mesh
		g.UseSkinning = mesh.IsSkinned()
		variant := PipelineVariant{Shading: scene.ShadingPhysicallyBased, Skinned: g.UseSkinning}
		if simple[key] || b.opts.ForceSimpleShading {
			variant.Shading = scene.ShadingSimple
		}
		for i := range mesh.Submeshes {
			sm := &mesh.Submeshes[i]
			g.DrawCalls = append(g.DrawCalls, &DrawCall{
				VertexBuffers:  mesh.VertexBuffers,
				Submesh:        sm,
				Variant:        variant,
				TextureIndices: textureIndices(sm),
			})
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].SortKey() < groups[j].SortKey() })
	return groups, warnings
}

func textureIndices(sm *metadata.Submesh) []metadata.TextureIndex {
	out := make([]metadata.TextureIndex, 0, len(sm.Textures))
	for idx := range sm.Textures {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *DrawCallGroupBuilder) mesh(binding uuid.NullUUID) (*metadata.Mesh, error) {
	key := modelKey(binding)
	if b.provider == nil {
		return nil, fmt.Errorf("model '%s': %w", key, core.ErrModelNotFound)
	}
	asset, err := b.provider.Model(binding)
	if err != nil {
		return nil, fmt.Errorf("model '%s': %w", key, err)
	}
	if asset == nil || len(asset.Meshes) == 0 {
		return nil, fmt.Errorf("model '%s': %w", key, core.ErrModelNotFound)
	}
	if len(asset.Meshes) > 1 {
		return nil, fmt.Errorf("model '%s' has %d meshes: %w", key, len(asset.Meshes), core.ErrMultipleMeshes)
	}
	if c, ok := b.meshes[key]; ok && c.asset == asset.Meshes[0] {
		return c.mesh, nil
	}
	mesh, err := UploadMesh(b.device, asset.Meshes[0])
	if err != nil {
		return nil, fmt.Errorf("model '%s': %w", key, err)
	}
	b.meshes[key] = cachedMesh{asset: asset.Meshes[0], mesh: mesh}
	return mesh, nil
}

// UploadMesh copies a mesh asset into device buffers.
func UploadMesh(device Device, asset *metadata.MeshAsset) (*metadata.Mesh, error) {
	if device == nil {
		return nil, core.ErrDeviceUnavailable
	}
	mesh := &metadata.Mesh{
		Name:                     asset.Name,
		WorldTransform:           asset.WorldTransform,
		WorldTransformAnimations: asset.WorldTransformAnimations,
		Skins:                    asset.Skins,
		Animations:               asset.Animations,
	}
	for i, stream := range asset.Vertices {
		if len(stream) == 0 {
			return nil, fmt.Errorf("%w: mesh '%s' vertex stream %d is empty", core.ErrInvalidMeshData, asset.Name, i)
		}
		buf, err := device.MakeBuffer(fmt.Sprintf("%s vertices %d", asset.Name, i), metadata.RENDERBUFFER_TYPE_VERTEX, len(stream))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrBufferAllocation, err)
		}
		copy(buf.Contents(), stream)
		mesh.VertexBuffers = append(mesh.VertexBuffers, buf)
	}
	for i := range asset.Submeshes {
		sa := &asset.Submeshes[i]
		if len(sa.Indices) == 0 || len(sa.Indices)%sa.IndexType.Size() != 0 {
			return nil, fmt.Errorf("%w: mesh '%s' submesh '%s' has %d index bytes", core.ErrInvalidMeshData, asset.Name, sa.Name, len(sa.Indices))
		}
		buf, err := device.MakeBuffer(fmt.Sprintf("%s indices %s", asset.Name, sa.Name), metadata.RENDERBUFFER_TYPE_INDEX, len(sa.Indices))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrBufferAllocation, err)
		}
		copy(buf.Contents(), sa.Indices)
		mesh.Submeshes = append(mesh.Submeshes, metadata.Submesh{
			Name:        sa.Name,
			IndexBuffer: buf,
			IndexCount:  uint32(sa.IndexCount()),
			IndexType:   sa.IndexType,
			Material:    sa.Material,
			Textures:    sa.Textures,
		})
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// AssignSlots lays out the uniform slots of a frame: groups in order, draw
// calls in order, one slot per instance. Instances beyond capacity are not
// drawn. It returns the number of slots in use.
func AssignSlots(groups []*DrawCallGroup, capacity int) int {
	next := 0
	for _, g := range groups {
		for _, dc := range g.DrawCalls {
			dc.UniformBufferIndex = next
			count := len(g.Instances)
			if next+count > capacity {
				count = max(capacity-next, 0)
			}
			dc.InstanceCount = count
			next += count
		}
	}
	return next
}

// AssignPipelines sets the pipeline of every draw call from its variant.
// Draw calls without a pipeline are skipped by the draw phase.
func AssignPipelines(groups []*DrawCallGroup, pipelines map[PipelineVariant]metadata.Pipeline) {
	for _, g := range groups {
		for _, dc := range g.DrawCalls {
			dc.Pipeline = pipelines[dc.Variant]
		}
	}
}
