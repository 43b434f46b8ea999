package metadata

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
)

func errInvalidMesh(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidMeshData, fmt.Sprintf(format, args...))
}
