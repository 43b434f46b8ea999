package renderer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// ModelLibrary is an in-memory ModelProvider filled by the asset loader.
type ModelLibrary struct {
	mu           sync.RWMutex
	models       map[uuid.UUID]*metadata.ModelAsset
	defaultModel *metadata.ModelAsset
}

func NewModelLibrary(defaultModel *metadata.ModelAsset) *ModelLibrary {
	return &ModelLibrary{
		models:       make(map[uuid.UUID]*metadata.ModelAsset),
		defaultModel: defaultModel,
	}
}

// Register binds a model to an id, replacing any previous one.
func (l *ModelLibrary) Register(id uuid.UUID, model *metadata.ModelAsset) {
	l.mu.Lock()
	l.models[id] = model
	l.mu.Unlock()
}

// Remove drops the model bound to id. Entities bound to it stop drawing.
func (l *ModelLibrary) Remove(id uuid.UUID) {
	l.mu.Lock()
	delete(l.models, id)
	l.mu.Unlock()
}

// Len returns the number of registered models, the default excluded.
func (l *ModelLibrary) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.models)
}

func (l *ModelLibrary) Model(id uuid.NullUUID) (*metadata.ModelAsset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !id.Valid {
		if l.defaultModel == nil {
			return nil, fmt.Errorf("default model: %w", core.ErrModelNotFound)
		}
		return l.defaultModel, nil
	}
	m, ok := l.models[id.UUID]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", id.UUID, core.ErrModelNotFound)
	}
	return m, nil
}

// SingleMeshModel wraps a mesh asset into a model.
func SingleMeshModel(mesh *metadata.MeshAsset) *metadata.ModelAsset {
	return &metadata.ModelAsset{Name: mesh.Name, Meshes: []*metadata.MeshAsset{mesh}}
}
