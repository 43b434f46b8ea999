package scene

import (
	"testing"

	"github.com/google/uuid"
)

func TestEntitySetOrderingAndLookup(t *testing.T) {
	ids := []uuid.UUID{
		uuid.MustParse("30000000-0000-0000-0000-000000000000"),
		uuid.MustParse("10000000-0000-0000-0000-000000000000"),
		uuid.MustParse("20000000-0000-0000-0000-000000000000"),
	}
	entities := []*Entity{
		{ID: ids[0], Kind: KindTracker},
		{ID: ids[1], Kind: KindAnchor},
		{ID: ids[2], Kind: KindAnchor},
	}
	set := NewEntitySet(entities)
	if set.Len() != 3 {
		t.Fatalf("Len = %d", set.Len())
	}
	all := set.All()
	if all[0].ID != ids[1] || all[1].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("entities not sorted by id")
	}
	anchors := set.OfKinds(KindAnchor)
	if len(anchors) != 2 || anchors[0].ID != ids[1] {
		t.Errorf("OfKinds(anchor) = %d entities", len(anchors))
	}
	if e, ok := set.Get(ids[0]); !ok || e.Kind != KindTracker {
		t.Errorf("Get did not find the tracker")
	}
	if _, ok := set.Get(uuid.New()); ok {
		t.Errorf("Get found an unknown id")
	}
}

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		wantErr bool
	}{
		{"anchor", Entity{Kind: KindAnchor}, false},
		{"path without data", Entity{Kind: KindPathSegment}, true},
		{"path", Entity{Kind: KindPathSegment, Path: &PathSegment{Radius: 0.1}}, false},
		{"surface without extent", Entity{Kind: KindSurface}, true},
		{"unknown kind", Entity{Kind: EntityKind(42)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.entity.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
