package scene

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

// EntityKind discriminates the geometric entity variants.
type EntityKind uint8

const (
	KindAnchor EntityKind = iota
	KindTracker
	KindTarget
	KindPathSegment
	KindSurface
	KindGroup
)

var entityKindNames = [...]string{"anchor", "tracker", "target", "path-segment", "surface", "group"}

func (k EntityKind) String() string {
	if int(k) < len(entityKindNames) {
		return entityKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Shading selects the lighting model of the entity's pipeline.
type Shading uint8

const (
	ShadingPhysicallyBased Shading = iota
	ShadingSimple
)

// PathSegment joins two positions with a tube of the given radius.
type PathSegment struct {
	Start  PositionID
	End    PositionID
	Color  math.Vec4
	Radius float32
}

// Surface is a detected plane drawn with the default model scaled to its extent.
type Surface struct {
	Extent math.Vec3
}

// Entity is a geometric entity of the AR scene. Kind selects which of the
// kind-specific fields is set.
type Entity struct {
	ID   uuid.UUID
	Kind EntityKind
	// Model is the asset to draw. An invalid value binds the default model.
	Model        uuid.NullUUID
	Position     PositionID
	Effects      []Effect
	Shading      Shading
	CastsShadows bool

	Path    *PathSegment
	Surface *Surface
}

// Validate checks the kind-specific payload.
func (e *Entity) Validate() error {
	switch e.Kind {
	case KindAnchor, KindTracker, KindTarget, KindGroup:
		return nil
	case KindPathSegment:
		if e.Path == nil {
			return fmt.Errorf("%w: %s: path segment without path data", core.ErrInvalidEntity, e.ID)
		}
		return nil
	case KindSurface:
		if e.Surface == nil {
			return fmt.Errorf("%w: %s: surface without extent", core.ErrInvalidEntity, e.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s: unknown kind %d", core.ErrInvalidEntity, e.ID, e.Kind)
	}
}

// EntitySet indexes the active entities of a frame by identifier.
type EntitySet struct {
	byID    map[uuid.UUID]*Entity
	ordered []*Entity
}

// NewEntitySet builds a set ordered by entity id. Duplicate ids keep the
// last entity given.
func NewEntitySet(entities []*Entity) *EntitySet {
	s := &EntitySet{byID: make(map[uuid.UUID]*Entity, len(entities))}
	for _, e := range entities {
		s.byID[e.ID] = e
	}
	s.ordered = make([]*Entity, 0, len(s.byID))
	for _, e := range s.byID {
		s.ordered = append(s.ordered, e)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].ID.String() < s.ordered[j].ID.String()
	})
	return s
}

func (s *EntitySet) Get(id uuid.UUID) (*Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

func (s *EntitySet) Len() int {
	return len(s.ordered)
}

// All returns the entities sorted by id.
func (s *EntitySet) All() []*Entity {
	return s.ordered
}

// OfKinds returns the entities of the given kinds, sorted by id.
func (s *EntitySet) OfKinds(kinds ...EntityKind) []*Entity {
	var out []*Entity
	for _, e := range s.ordered {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
