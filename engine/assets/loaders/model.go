package loaders

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

const (
	PrimitiveCube     = "cube"
	PrimitivePlane    = "plane"
	PrimitiveCylinder = "cylinder"
)

// defaultCylinderSegments is used when a cylinder manifest omits segments.
const defaultCylinderSegments = 16

// ModelManifest describes a procedural model bound to a model id.
type ModelManifest struct {
	ID       string           `toml:"id"`
	Name     string           `toml:"name"`
	Mesh     MeshManifest     `toml:"mesh"`
	Material MaterialManifest `toml:"material"`
}

type MeshManifest struct {
	Primitive string     `toml:"primitive"`
	Size      [3]float32 `toml:"size"`
	Segments  int        `toml:"segments"`
}

// MaterialManifest overrides the default material. Missing keys keep the
// default value.
type MaterialManifest struct {
	BaseColor        *[4]float32 `toml:"base_color"`
	Roughness        *float32    `toml:"roughness"`
	Metalness        *float32    `toml:"metalness"`
	AmbientOcclusion *float32    `toml:"ambient_occlusion"`
	Opacity          *float32    `toml:"opacity"`
	Specular         *float32    `toml:"specular"`
	Clearcoat        *float32    `toml:"clearcoat"`
}

func (m MaterialManifest) properties() metadata.MaterialProperties {
	p := metadata.DefaultMaterial()
	if m.BaseColor != nil {
		c := *m.BaseColor
		p.BaseColor = math.NewVec4(c[0], c[1], c[2], c[3])
	}
	set := func(dst *float32, v *float32) {
		if v != nil {
			*dst = math.Clamp(*v, 0, 1)
		}
	}
	set(&p.Roughness, m.Roughness)
	set(&p.Metalness, m.Metalness)
	set(&p.AmbientOcclusion, m.AmbientOcclusion)
	set(&p.Opacity, m.Opacity)
	set(&p.Specular, m.Specular)
	set(&p.Clearcoat, m.Clearcoat)
	return p
}

/**
 * @brief Loads *.model.toml manifests into single mesh models built from
 * the procedural primitives.
 */
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string) (uuid.UUID, *metadata.ModelAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id, model, err := ml.Parse(data)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("model manifest %s: %w", path, err)
	}
	return id, model, nil
}

// Parse builds the model described by a manifest document.
func (ml *ModelLoader) Parse(data []byte) (uuid.UUID, *metadata.ModelAsset, error) {
	var manifest ModelManifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&manifest); err != nil {
		return uuid.Nil, nil, err
	}

	id, err := uuid.Parse(manifest.ID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid id %q: %w", manifest.ID, err)
	}
	name := manifest.Name
	if name == "" {
		name = id.String()
	}

	material := manifest.Material.properties()
	size := manifest.Mesh.Size
	var mesh *metadata.MeshAsset
	switch manifest.Mesh.Primitive {
	case PrimitiveCube:
		mesh = renderer.GenerateCubeAsset(size[0], size[1], size[2], name, material)
	case PrimitivePlane:
		mesh = renderer.GeneratePlaneAsset(size[0], size[2], name, material)
	case PrimitiveCylinder:
		segments := manifest.Mesh.Segments
		if segments == 0 {
			segments = defaultCylinderSegments
		}
		mesh = renderer.GenerateCylinderAsset(segments, name, material)
		if size != [3]float32{} {
			mesh.WorldTransform = math.NewMat4Scale(math.NewVec3(size[0], size[1], size[2]))
		}
	default:
		return uuid.Nil, nil, fmt.Errorf("%w: unknown primitive %q", core.ErrInvalidMeshData, manifest.Mesh.Primitive)
	}
	return id, renderer.SingleMeshModel(mesh), nil
}
