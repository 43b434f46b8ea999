package loaders

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-ar/engine/core"
)

func TestModelLoaderPrimitives(t *testing.T) {
	tests := []struct {
		name        string
		manifest    string
		wantName    string
		wantVerts   int
		wantIndices int
	}{
		{
			name: "cube",
			manifest: `id = "9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a01"
name = "marker"
[mesh]
primitive = "cube"
size = [0.2, 0.2, 0.2]`,
			wantName:    "marker",
			wantVerts:   24,
			wantIndices: 36,
		},
		{
			name: "plane",
			manifest: `id = "9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a02"
[mesh]
primitive = "plane"
size = [2, 0, 2]`,
			wantName:    "9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a02",
			wantVerts:   4,
			wantIndices: 6,
		},
		{
			name: "cylinder default segments",
			manifest: `id = "9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a03"
name = "pole"
[mesh]
primitive = "cylinder"`,
			wantName:    "pole",
			wantVerts:   (defaultCylinderSegments + 1) * 2,
			wantIndices: defaultCylinderSegments * 6,
		},
	}
	ml := &ModelLoader{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, model, err := ml.Parse([]byte(tt.manifest))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.String()[:8] != "9b2f7c1e" {
				t.Errorf("unexpected id %s", id)
			}
			if len(model.Meshes) != 1 {
				t.Fatalf("expected 1 mesh, got %d", len(model.Meshes))
			}
			mesh := model.Meshes[0]
			if mesh.Name != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, mesh.Name)
			}
			if got := len(mesh.Vertices[0]) / 12; got != tt.wantVerts {
				t.Errorf("expected %d vertices, got %d", tt.wantVerts, got)
			}
			if got := mesh.Submeshes[0].IndexCount(); got != tt.wantIndices {
				t.Errorf("expected %d indices, got %d", tt.wantIndices, got)
			}
		})
	}
}

func TestModelLoaderMaterial(t *testing.T) {
	manifest := `id = "9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a04"
[mesh]
primitive = "cube"
size = [1, 1, 1]
[material]
base_color = [1, 0, 0, 0.5]
roughness = 2.0
opacity = 0.5`
	_, model, err := (&ModelLoader{}).Parse([]byte(manifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := model.Meshes[0].Submeshes[0].Material
	if m.BaseColor.X != 1 || m.BaseColor.Y != 0 || m.BaseColor.W != 0.5 {
		t.Errorf("unexpected base color %+v", m.BaseColor)
	}
	if m.Roughness != 1 {
		t.Errorf("expected roughness clamped to 1, got %f", m.Roughness)
	}
	if m.Opacity != 0.5 {
		t.Errorf("expected opacity 0.5, got %f", m.Opacity)
	}
	if m.AmbientOcclusion != 1 {
		t.Errorf("expected default ambient occlusion, got %f", m.AmbientOcclusion)
	}
}

func TestModelLoaderRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		invalid  bool
	}{
		{"bad id", "id = \"nope\"\n[mesh]\nprimitive = \"cube\"", false},
		{"unknown primitive", "id = \"9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a05\"\n[mesh]\nprimitive = \"torus\"", true},
		{"unknown key", "id = \"9b2f7c1e-3c55-4d2e-9a61-0d4f4b1f0a06\"\ncolor = 1\n[mesh]\nprimitive = \"cube\"", false},
		{"not toml", "id = ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := (&ModelLoader{}).Parse([]byte(tt.manifest))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, core.ErrInvalidMeshData); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidMeshData) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}
}
