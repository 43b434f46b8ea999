package assets

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// Loader turns an asset file into the model bound to its id.
type Loader interface {
	Load(path string) (uuid.UUID, *metadata.ModelAsset, error)
}
