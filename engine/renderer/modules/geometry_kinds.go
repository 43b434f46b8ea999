package modules

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

// pathSegmentSides is the tessellation of the path tube.
const pathSegmentSides = 16

// PathModelID is the model binding of every path segment.
var PathModelID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("anima-ar/path-segment"))

// NewAnchorsModule draws anchors and groups with their bound model.
func NewAnchorsModule() *GeometryModule {
	return NewGeometryModule(GeometryConfig{
		Identifier:     AnchorsIdentifier,
		Layer:          0,
		Kinds:          []scene.EntityKind{scene.KindAnchor, scene.KindGroup},
		FunctionPrefix: "anchorGeometry",
	})
}

// NewTrackersModule draws trackers and their targets. Trackers ignore the
// heading of their own position.
func NewTrackersModule() *GeometryModule {
	return NewGeometryModule(GeometryConfig{
		Identifier:     TrackersIdentifier,
		Layer:          1,
		Kinds:          []scene.EntityKind{scene.KindTracker, scene.KindTarget},
		FunctionPrefix: "trackerGeometry",
	})
}

// NewSurfacesModule draws detected planes as a unit plane scaled to their
// extent.
func NewSurfacesModule() *GeometryModule {
	material := metadata.DefaultMaterial()
	material.BaseColor = math.NewVec4(1, 1, 1, 0.25)
	material.Opacity = 0.25
	plane := renderer.GeneratePlaneAsset(1, 1, "surface", material)
	return NewGeometryModule(GeometryConfig{
		Identifier:     SurfacesIdentifier,
		Layer:          2,
		Kinds:          []scene.EntityKind{scene.KindSurface},
		FunctionPrefix: "surfaceGeometry",
		Models:         renderer.NewModelLibrary(renderer.SingleMeshModel(plane)),
		BindingFor:     func(*scene.Entity) uuid.NullUUID { return uuid.NullUUID{} },
	})
}

// NewPathsModule draws path segments as tubes tinted with the segment color.
func NewPathsModule() *GeometryModule {
	lib := renderer.NewModelLibrary(nil)
	lib.Register(PathModelID, renderer.SingleMeshModel(
		renderer.GenerateCylinderAsset(pathSegmentSides, "path segment", metadata.DefaultMaterial())))
	return NewGeometryModule(GeometryConfig{
		Identifier:     PathsIdentifier,
		Layer:          3,
		Kinds:          []scene.EntityKind{scene.KindPathSegment},
		FunctionPrefix: "pathGeometry",
		Models:         lib,
		BindingFor: func(*scene.Entity) uuid.NullUUID {
			return uuid.NullUUID{UUID: PathModelID, Valid: true}
		},
		Prepare: tintPathSegments,
	})
}

// tintPathSegments prepends the segment color as tint and alpha effects so
// the effects of the entity still win.
func tintPathSegments(entities []*scene.Entity) []*scene.Entity {
	out := make([]*scene.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Path == nil {
			out = append(out, e)
			continue
		}
		c := *e
		color := e.Path.Color
		c.Effects = append([]scene.Effect{
			scene.NewConstantEffect(scene.EffectTint, color.ToVec3()),
			scene.NewConstantEffect(scene.EffectAlpha, math.NewVec3(color.W, 0, 0)),
		}, e.Effects...)
		out = append(out, &c)
	}
	return out
}
