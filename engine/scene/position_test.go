package scene

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

func randomTransform(rng *rand.Rand) math.Mat4 {
	translation := math.NewMat4Translation(math.NewVec3(rng.Float32()*4-2, rng.Float32()*4-2, rng.Float32()*4-2))
	rotation := math.NewMat4EulerY(rng.Float32() * 2 * math.K_PI)
	return translation.Mul(rotation)
}

func buildChain(t *testing.T, g *PositionGraph, locals []math.Mat4) []PositionID {
	t.Helper()
	ids := make([]PositionID, len(locals))
	parent := NoParent
	for i, m := range locals {
		id, err := g.Add(m, parent)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids[i] = id
		parent = id
	}
	return ids
}

func chainProduct(locals []math.Mat4) math.Mat4 {
	out := math.NewMat4Identity()
	for _, m := range locals {
		out = out.Mul(m)
	}
	return out
}

func TestWorldTransformIsRootToLeafProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for depth := 1; depth <= 8; depth++ {
		g := NewPositionGraph()
		locals := make([]math.Mat4, depth)
		for i := range locals {
			locals[i] = randomTransform(rng)
		}
		ids := buildChain(t, g, locals)
		leaf := ids[depth-1]

		world, err := g.WorldTransform(leaf)
		if err != nil {
			t.Fatalf("WorldTransform: %v", err)
		}
		if !world.Compare(chainProduct(locals), 1e-4) {
			t.Fatalf("depth %d: world transform is not the chain product", depth)
		}
		if g.TransformHasChanged(leaf) {
			t.Fatalf("depth %d: leaf still reports changed after update", depth)
		}

		// Mutate one ancestor; the leaf reports stale until updated.
		k := rng.Intn(depth)
		locals[k] = randomTransform(rng)
		if err := g.SetTransform(ids[k], locals[k]); err != nil {
			t.Fatalf("SetTransform: %v", err)
		}
		if !g.TransformHasChanged(leaf) {
			t.Fatalf("depth %d: leaf does not report ancestor %d change", depth, k)
		}
		if err := g.UpdateTransforms(leaf); err != nil {
			t.Fatalf("UpdateTransforms: %v", err)
		}
		if g.TransformHasChanged(leaf) {
			t.Fatalf("depth %d: leaf still changed after UpdateTransforms", depth)
		}
		world, _ = g.WorldTransform(leaf)
		if !world.Compare(chainProduct(locals), 1e-4) {
			t.Fatalf("depth %d: world transform stale after mutating ancestor %d", depth, k)
		}
	}
}

func TestSiblingSeesParentUpdatedThroughOtherChild(t *testing.T) {
	g := NewPositionGraph()
	root, _ := g.Add(math.NewMat4Translation(math.NewVec3(1, 0, 0)), NoParent)
	a, _ := g.Add(math.NewMat4Translation(math.NewVec3(0, 1, 0)), root)
	b, _ := g.Add(math.NewMat4Translation(math.NewVec3(0, 0, 1)), root)
	g.UpdateAll()

	_ = g.SetTransform(root, math.NewMat4Translation(math.NewVec3(5, 0, 0)))
	if err := g.UpdateTransforms(a); err != nil {
		t.Fatal(err)
	}
	if !g.TransformHasChanged(b) {
		t.Fatal("sibling should be stale after the parent was resolved through another child")
	}
	world, _ := g.WorldTransform(b)
	if got := world.Translation(); !got.Compare(math.NewVec3(5, 0, 1), 1e-5) {
		t.Errorf("sibling translation = %+v, want (5,0,1)", got)
	}
}

func TestAbsoluteHeadingIsIdempotent(t *testing.T) {
	local := math.NewMat4Translation(math.NewVec3(3, 2, 1)).
		Mul(math.NewMat4EulerY(0.7)).
		Mul(math.NewMat4Scale(math.NewVec3(2, 2, 2)))
	h := NewAbsoluteHeading(math.NewQuatFromAxisAngle(math.NewVec3Up(), 1.1, true))

	once := ApplyHeading(local, h)
	twice := ApplyHeading(once, h)
	if !once.Compare(twice, 1e-5) {
		t.Fatal("applying an absolute heading twice changed the transform")
	}
	if !once.Translation().Compare(local.Translation(), 1e-6) {
		t.Errorf("absolute heading moved the position")
	}
	if !once.Upper3x3().Compare(h.Rotation.ToMat4().Upper3x3(), 1e-5) {
		t.Errorf("absolute heading did not replace rotation and scale")
	}
}

func TestRelativeHeadingDoesNotAccumulate(t *testing.T) {
	g := NewPositionGraph()
	local := math.NewMat4Translation(math.NewVec3(0, 0, -2))
	id, _ := g.Add(local, NoParent)
	h := NewRelativeHeading(math.NewQuatFromAxisAngle(math.NewVec3Up(), math.K_PI/4, true))
	_ = g.SetHeading(id, &h)

	first, _ := g.WorldTransform(id)
	_ = g.SetHeading(id, &h)
	second, _ := g.WorldTransform(id)
	if !first.Compare(second, 1e-5) {
		t.Fatal("relative heading accumulated across updates")
	}
	if !first.Compare(local.Mul(h.Rotation.ToMat4()), 1e-5) {
		t.Fatal("relative heading should post-multiply the local transform")
	}
	base, _ := g.BaseWorldTransform(id)
	if !base.Compare(local, 1e-6) {
		t.Fatal("base world transform should ignore the heading")
	}
}

func TestFacePointHeading(t *testing.T) {
	g := NewPositionGraph()
	id, _ := g.Add(math.NewMat4Translation(math.NewVec3(0, 0, 0)), NoParent)
	h := Heading{Mode: HeadingAbsolute, Updater: FacePointHeading{Target: math.NewVec3(5, 3, 0)}}
	_ = g.SetHeading(id, &h)

	world, _ := g.WorldTransform(id)
	forward := math.NewVec3Forward().ToVec4(0)
	got := world.MulVec4(forward).ToVec3()
	if !got.Compare(math.NewVec3(1, 0, 0), 1e-5) {
		t.Errorf("forward = %+v, want +X", got)
	}
	resolved, _ := g.Heading(id)
	if resolved.Rotation == (math.Quaternion{}) {
		t.Errorf("updater did not refresh the rotation")
	}
}

func TestSetParentRejectsCycles(t *testing.T) {
	g := NewPositionGraph()
	ids := buildChain(t, g, []math.Mat4{math.NewMat4Identity(), math.NewMat4Identity(), math.NewMat4Identity()})

	if err := g.SetParent(ids[0], ids[2]); !errors.Is(err, core.ErrPositionCycle) {
		t.Fatalf("ancestor under descendant: error = %v, want ErrPositionCycle", err)
	}
	if err := g.SetParent(ids[1], ids[1]); !errors.Is(err, core.ErrPositionCycle) {
		t.Fatalf("self parent: error = %v, want ErrPositionCycle", err)
	}
	if g.Parent(ids[0]) != NoParent {
		t.Fatal("rejected assignment must leave the graph untouched")
	}
	if err := g.SetParent(ids[2], ids[0]); err != nil {
		t.Fatalf("valid reparent: %v", err)
	}
	if err := g.SetParent(ids[2], PositionID(99)); !errors.Is(err, core.ErrPositionNotFound) {
		t.Fatalf("missing parent: error = %v", err)
	}
}

func TestRemoveDetachesChildren(t *testing.T) {
	g := NewPositionGraph()
	root, _ := g.Add(math.NewMat4Translation(math.NewVec3(10, 0, 0)), NoParent)
	child, _ := g.Add(math.NewMat4Translation(math.NewVec3(1, 0, 0)), root)
	g.UpdateAll()

	if err := g.Remove(root); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if g.Contains(root) || g.Parent(child) != NoParent {
		t.Fatal("child should become a root")
	}
	world, _ := g.WorldTransform(child)
	if got := world.Translation(); !got.Compare(math.NewVec3(1, 0, 0), 1e-6) {
		t.Errorf("detached child translation = %+v", got)
	}
	if err := g.Remove(root); !errors.Is(err, core.ErrPositionNotFound) {
		t.Errorf("double remove: error = %v", err)
	}

	reused, _ := g.Add(math.NewMat4Identity(), NoParent)
	if reused != root || g.Len() != 2 {
		t.Errorf("slot not reused: id %d len %d", reused, g.Len())
	}
}
