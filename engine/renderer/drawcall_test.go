package renderer_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/headless"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

func groupSummary(groups []*renderer.DrawCallGroup) []string {
	var out []string
	for _, g := range groups {
		out = append(out, "group:"+g.SortKey())
		for _, id := range g.Instances {
			out = append(out, id.String())
		}
	}
	return out
}

func TestBuildDrawCallGroupsIsDeterministic(t *testing.T) {
	entities := []*scene.Entity{
		{ID: entityID(4), Model: bind(modelTube)},
		{ID: entityID(2)},
		{ID: entityID(3), Model: bind(modelPlane)},
		{ID: entityID(1), Model: bind(modelTube)},
		{ID: entityID(5)},
	}
	lib := newLibrary(t)

	first, warnings := renderer.BuildDrawCallGroups(headless.NewDevice(headless.Options{}), entities, lib, renderer.DrawCallGroupOptions{})
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	reversed := slices.Clone(entities)
	slices.Reverse(reversed)
	second, _ := renderer.BuildDrawCallGroups(headless.NewDevice(headless.Options{}), reversed, lib, renderer.DrawCallGroupOptions{})

	a, b := groupSummary(first), groupSummary(second)
	if !slices.Equal(a, b) {
		t.Fatalf("order depends on input:\n%v\n%v", a, b)
	}
	if len(first) != 3 {
		t.Fatalf("got %d groups, want 3", len(first))
	}
	if first[0].Model.Valid {
		t.Errorf("default model group is not first: %s", first[0].SortKey())
	}
	if got := first[0].Instances; got[0] != entityID(2) || got[1] != entityID(5) {
		t.Errorf("default group instances = %v", got)
	}
	if first[1].Model.UUID != modelPlane || first[2].Model.UUID != modelTube {
		t.Errorf("groups not sorted by model: %s, %s", first[1].SortKey(), first[2].SortKey())
	}
}

func TestBuildDrawCallGroupsReportsBadModels(t *testing.T) {
	entities := []*scene.Entity{
		{ID: entityID(1), Model: bind(modelMissing)},
		{ID: entityID(2), Model: bind(modelTwoMeshes)},
		{ID: entityID(3)},
	}
	groups, warnings := renderer.BuildDrawCallGroups(headless.NewDevice(headless.Options{}), entities, newLibrary(t), renderer.DrawCallGroupOptions{ModuleIdentifier: "anchors"})
	if len(groups) != 1 || groups[0].Model.Valid {
		t.Fatalf("expected only the default group, got %v", groupSummary(groups))
	}
	kinds := map[core.ErrorKind]uuid.UUID{}
	for _, w := range warnings {
		var re *core.RenderError
		if !errors.As(w, &re) {
			t.Fatalf("warning %v is not a RenderError", w)
		}
		if re.Severity != core.SeverityWarning || re.Module != "anchors" {
			t.Errorf("record = %+v", re)
		}
		kinds[re.Kind] = re.Entity.UUID
	}
	if kinds[core.KindMissingModel] != entityID(1) {
		t.Errorf("missing model not reported for entity 1: %v", kinds)
	}
	if kinds[core.KindMultipleMeshes] != entityID(2) {
		t.Errorf("multiple meshes not reported for entity 2: %v", kinds)
	}
}

func TestBuildDrawCallGroupsVariants(t *testing.T) {
	tests := []struct {
		name     string
		shadings []scene.Shading
		force    bool
		want     scene.Shading
	}{
		{"all simple", []scene.Shading{scene.ShadingSimple, scene.ShadingSimple}, false, scene.ShadingSimple},
		{"mixed", []scene.Shading{scene.ShadingSimple, scene.ShadingPhysicallyBased}, false, scene.ShadingPhysicallyBased},
		{"forced", []scene.Shading{scene.ShadingPhysicallyBased}, true, scene.ShadingSimple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entities []*scene.Entity
			for i, s := range tt.shadings {
				entities = append(entities, &scene.Entity{ID: entityID(i), Shading: s, CastsShadows: i == 0})
			}
			groups, _ := renderer.BuildDrawCallGroups(headless.NewDevice(headless.Options{}), entities, newLibrary(t),
				renderer.DrawCallGroupOptions{ForceSimpleShading: tt.force})
			if len(groups) != 1 {
				t.Fatalf("got %d groups", len(groups))
			}
			g := groups[0]
			if got := g.DrawCalls[0].Variant.Shading; got != tt.want {
				t.Errorf("shading = %v, want %v", got, tt.want)
			}
			if !g.GeneratesShadows {
				t.Error("group should generate shadows when one instance casts them")
			}
		})
	}
}

func TestBuildDrawCallGroupsSkinning(t *testing.T) {
	entities := []*scene.Entity{{ID: entityID(1), Model: bind(modelSkinned)}}
	groups, warnings := renderer.BuildDrawCallGroups(headless.NewDevice(headless.Options{}), entities, newLibrary(t), renderer.DrawCallGroupOptions{})
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	if !groups[0].UseSkinning || !groups[0].DrawCalls[0].Variant.Skinned {
		t.Error("skinned model should select the skinned variant")
	}
}

func TestDrawCallGroupBuilderCachesMeshes(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	b := renderer.NewDrawCallGroupBuilder(dev, newLibrary(t), renderer.DrawCallGroupOptions{})
	entities := []*scene.Entity{{ID: entityID(1)}, {ID: entityID(2), Model: bind(modelPlane)}}

	if _, w := b.Build(entities); len(w) != 0 {
		t.Fatalf("warnings: %v", w)
	}
	allocated := dev.BufferCount()
	if allocated == 0 {
		t.Fatal("no buffers uploaded")
	}
	if _, w := b.Build(entities); len(w) != 0 {
		t.Fatalf("warnings: %v", w)
	}
	if dev.BufferCount() != allocated {
		t.Errorf("rebuild uploaded again: %d buffers, want %d", dev.BufferCount(), allocated)
	}
}

func TestDrawCallGroupBuilderUploadsReplacedModel(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	lib := newLibrary(t)
	b := renderer.NewDrawCallGroupBuilder(dev, lib, renderer.DrawCallGroupOptions{})
	entities := []*scene.Entity{{ID: entityID(1), Model: bind(modelPlane)}}

	first, w := b.Build(entities)
	if len(w) != 0 {
		t.Fatalf("warnings: %v", w)
	}
	lib.Register(modelPlane, renderer.SingleMeshModel(renderer.GenerateCubeAsset(1, 1, 1, "replaced", metadata.DefaultMaterial())))
	second, w := b.Build(entities)
	if len(w) != 0 {
		t.Fatalf("warnings: %v", w)
	}
	if first[0].Mesh == second[0].Mesh {
		t.Fatal("replaced model reused the old mesh")
	}
	if got := second[0].DrawCalls[0].IndexCount(); got != 36 {
		t.Errorf("replaced model has %d indices, want 36", got)
	}
}

func TestAssignSlots(t *testing.T) {
	newGroups := func() []*renderer.DrawCallGroup {
		return []*renderer.DrawCallGroup{
			{Instances: make([]uuid.UUID, 2), DrawCalls: []*renderer.DrawCall{{}}},
			{Instances: make([]uuid.UUID, 3), DrawCalls: []*renderer.DrawCall{{}, {}}},
			{Instances: make([]uuid.UUID, 1), DrawCalls: []*renderer.DrawCall{{}}},
		}
	}
	tests := []struct {
		name      string
		capacity  int
		wantUsed  int
		wantIndex []int
		wantCount []int
	}{
		{"fits", 100, 9, []int{0, 2, 5, 8}, []int{2, 3, 3, 1}},
		{"truncated", 6, 6, []int{0, 2, 5, 6}, []int{2, 3, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := newGroups()
			if got := renderer.AssignSlots(groups, tt.capacity); got != tt.wantUsed {
				t.Errorf("AssignSlots = %d, want %d", got, tt.wantUsed)
			}
			var index, count []int
			for _, g := range groups {
				for _, dc := range g.DrawCalls {
					index = append(index, dc.UniformBufferIndex)
					count = append(count, dc.InstanceCount)
				}
			}
			if !slices.Equal(index, tt.wantIndex) || !slices.Equal(count, tt.wantCount) {
				t.Errorf("index=%v count=%v, want %v %v", index, count, tt.wantIndex, tt.wantCount)
			}
		})
	}
}

func TestAssignPipelines(t *testing.T) {
	simple := &headless.Pipeline{}
	groups := []*renderer.DrawCallGroup{{DrawCalls: []*renderer.DrawCall{
		{Variant: renderer.PipelineVariant{Shading: scene.ShadingSimple}},
		{Variant: renderer.PipelineVariant{Shading: scene.ShadingPhysicallyBased, Skinned: true}},
	}}}
	renderer.AssignPipelines(groups, map[renderer.PipelineVariant]metadata.Pipeline{
		{Shading: scene.ShadingSimple}: simple,
	})
	if groups[0].DrawCalls[0].Pipeline != simple {
		t.Error("simple variant not assigned")
	}
	if groups[0].DrawCalls[1].Pipeline != nil {
		t.Error("unknown variant should stay without pipeline")
	}
}

func TestUploadMeshRejectsEmptyStreams(t *testing.T) {
	asset := renderer.GenerateCubeAsset(1, 1, 1, "cube", metadata.DefaultMaterial())
	asset.Vertices[1] = nil
	_, err := renderer.UploadMesh(headless.NewDevice(headless.Options{}), asset)
	if !errors.Is(err, core.ErrInvalidMeshData) {
		t.Errorf("UploadMesh = %v", err)
	}
}

func TestGeneratedPrimitivesUpload(t *testing.T) {
	material := metadata.DefaultMaterial()
	tests := []struct {
		asset       *metadata.MeshAsset
		wantIndices uint32
		wantVerts   int
	}{
		{renderer.GenerateCubeAsset(1, 2, 3, "cube", material), 36, 24},
		{renderer.GeneratePlaneAsset(0, 1, "plane", material), 6, 4},
		{renderer.GenerateCylinderAsset(2, "tube", material), 18, 8},
	}
	for _, tt := range tests {
		mesh, err := renderer.UploadMesh(headless.NewDevice(headless.Options{}), tt.asset)
		if err != nil {
			t.Fatalf("%s: %v", tt.asset.Name, err)
		}
		if mesh.Submeshes[0].IndexCount != tt.wantIndices {
			t.Errorf("%s: %d indices, want %d", tt.asset.Name, mesh.Submeshes[0].IndexCount, tt.wantIndices)
		}
		if got := mesh.VertexBuffers[0].Length() / renderer.PositionStride; got != tt.wantVerts {
			t.Errorf("%s: %d vertices, want %d", tt.asset.Name, got, tt.wantVerts)
		}
	}
}
