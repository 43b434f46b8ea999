package renderer_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/animation"
	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/headless"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

var (
	modelPlane     = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	modelTube      = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	modelTwoMeshes = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	modelSkinned   = uuid.MustParse("00000000-0000-0000-0000-00000000000d")
	modelMissing   = uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
)

func entityID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("10000000-0000-0000-0000-%012x", n))
}

func bind(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

func skinnedCube(t *testing.T) *metadata.MeshAsset {
	t.Helper()
	times := []float64{0, 1}
	var translations []math.Vec3
	var rotations []math.Quaternion
	for k := range times {
		translations = append(translations, math.NewVec3(0, float32(k), 0), math.NewVec3(1, 0, 0))
		rotations = append(rotations, math.NewQuatIdentity(), math.NewQuatIdentity())
	}
	skel, err := animation.NewAnimatedSkeleton(nil, []int{animation.NoParent, 0}, times, translations, rotations)
	if err != nil {
		t.Fatalf("NewAnimatedSkeleton: %v", err)
	}
	mesh := renderer.GenerateCubeAsset(1, 1, 1, "skinned", metadata.DefaultMaterial())
	mesh.Skins = []animation.SkinData{{
		SkinToSkeletonMap:     []int{0, 1},
		InverseBindTransforms: []math.Mat4{math.NewMat4Identity(), math.NewMat4Identity()},
		AnimationIndex:        0,
	}}
	mesh.Animations = []*animation.AnimatedSkeleton{skel}
	return mesh
}

func newLibrary(t *testing.T) *renderer.ModelLibrary {
	t.Helper()
	material := metadata.DefaultMaterial()
	lib := renderer.NewModelLibrary(renderer.SingleMeshModel(renderer.GenerateCubeAsset(1, 1, 1, "default", material)))
	lib.Register(modelPlane, renderer.SingleMeshModel(renderer.GeneratePlaneAsset(2, 2, "plane", material)))
	lib.Register(modelTube, renderer.SingleMeshModel(renderer.GenerateCylinderAsset(8, "tube", material)))
	lib.Register(modelTwoMeshes, &metadata.ModelAsset{
		Name: "two",
		Meshes: []*metadata.MeshAsset{
			renderer.GenerateCubeAsset(1, 1, 1, "a", material),
			renderer.GenerateCubeAsset(1, 1, 1, "b", material),
		},
	})
	lib.Register(modelSkinned, renderer.SingleMeshModel(skinnedCube(t)))
	return lib
}

type packFixture struct {
	device   *headless.Device
	library  *renderer.ModelLibrary
	graph    *scene.PositionGraph
	entities []*scene.Entity
	frame    *renderer.FrameState
	targets  renderer.PackTargets
}

func newPackFixture(t *testing.T, capacity, paletteMatrices int) *packFixture {
	t.Helper()
	dev := headless.NewDevice(headless.Options{})
	ring := func(label string, size, instances int) *renderer.UniformRingBuffer {
		rb, err := renderer.NewUniformRingBuffer(dev, label, size, instances, 3)
		if err != nil {
			t.Fatalf("NewUniformRingBuffer(%s): %v", label, err)
		}
		return rb
	}
	env := scene.DefaultEnvironment()
	return &packFixture{
		device:  dev,
		library: newLibrary(t),
		graph:   scene.NewPositionGraph(),
		frame: &renderer.FrameState{
			Camera:      scene.NewCamera(math.NewMat4Identity(), math.NewMat4Identity(), scene.OrientationLandscapeRight),
			Environment: &env,
			FrameRate:   60,
		},
		targets: renderer.PackTargets{
			Instances:   ring("instances", renderer.InstanceUniformsSize, capacity),
			Materials:   ring("materials", renderer.MaterialUniformsSize, capacity),
			Effects:     ring("effects", renderer.EffectsUniformsSize, capacity),
			Environment: ring("environment", renderer.EnvironmentUniformsSize, capacity),
			Palettes:    ring("palettes", renderer.PaletteMatrixSize*paletteMatrices, 1),
		},
	}
}

// anchor adds an anchor entity at a world position.
func (f *packFixture) anchor(t *testing.T, n int, at math.Vec3, model uuid.NullUUID) *scene.Entity {
	t.Helper()
	pos, err := f.graph.Add(math.NewMat4Translation(at), scene.NoParent)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	e := &scene.Entity{ID: entityID(n), Kind: scene.KindAnchor, Model: model, Position: pos}
	f.entities = append(f.entities, e)
	return e
}

func (f *packFixture) pack(t *testing.T, renderDistance float32) ([]*renderer.DrawCallGroup, renderer.PackResult) {
	t.Helper()
	groups, warnings := renderer.BuildDrawCallGroups(f.device, f.entities, f.library, renderer.DrawCallGroupOptions{ModuleIdentifier: "test"})
	if len(warnings) != 0 {
		t.Fatalf("BuildDrawCallGroups warnings: %v", warnings)
	}
	packer := &renderer.UniformPacker{Module: "test", Positions: f.graph, RenderDistance: renderDistance}
	return groups, packer.Pack(groups, scene.NewEntitySet(f.entities), f.frame, f.targets)
}

func (f *packFixture) instance(t *testing.T, slot int) renderer.InstanceUniforms {
	t.Helper()
	buf, err := f.targets.Instances.Element(slot)
	if err != nil {
		t.Fatalf("Element(%d): %v", slot, err)
	}
	return renderer.DecodeInstanceUniforms(buf)
}
