// Package assets keeps a model library in sync with a directory of model
// manifests.
package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/assets/loaders"
	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeModel
)

const modelManifestSuffix = ".model.toml"

type AssetInfo struct {
	Path       string
	Type       AssetType
	ID         uuid.UUID
	LastLoaded time.Time
}

/**
 * @brief Loads every manifest under a directory into a model library and
 * reloads them when they change on disk. A manifest that fails to load
 * keeps the previously loaded model.
 */
type AssetManager struct {
	library *renderer.ModelLibrary
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader
	// OnChange, when set, is called after a manifest was loaded or removed.
	OnChange func(info AssetInfo, err error)

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	wg       sync.WaitGroup
}

func NewAssetManager(library *renderer.ModelLibrary) (*AssetManager, error) {
	if library == nil {
		return nil, errors.New("asset manager requires a model library")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	am := &AssetManager{
		library:  library,
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	am.registerLoader(AssetTypeModel, &loaders.ModelLoader{})
	return am, nil
}

// Initialize loads the manifests under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.watchRecursive(assetsDir, false); err != nil {
		return err
	}
	am.wg.Add(1)
	go am.start()
	return nil
}

func (am *AssetManager) Library() *renderer.ModelLibrary {
	return am.library
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// Assets returns the loaded assets keyed by path.
func (am *AssetManager) Assets() map[string]AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make(map[string]AssetInfo, len(am.assets))
	for k, v := range am.assets {
		out[k] = v
	}
	return out
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("watch %s: %s", e.Name, err.Error())
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}
		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher error: %s", err.Error())
		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and loads the files found on the way.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		if !unWatch {
			am.handleFileEvent(walkPath)
		}
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}
	path = filepath.Clean(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return
	}
	id, model, err := loader.Load(path)
	info := AssetInfo{Path: path, Type: assetType, ID: id, LastLoaded: time.Now()}
	if err != nil {
		core.LogWarn("asset %s not loaded: %s", path, err.Error())
		am.notify(info, err)
		return
	}

	am.mutex.Lock()
	if prev, ok := am.assets[path]; ok && prev.ID != id {
		am.library.Remove(prev.ID)
	}
	am.assets[path] = info
	am.mutex.Unlock()

	am.library.Register(id, model)
	core.LogDebug("model %s loaded from %s", id, path)
	am.notify(info, nil)
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	path = filepath.Clean(path)
	am.mutex.Lock()
	info, ok := am.assets[path]
	delete(am.assets, path)
	am.mutex.Unlock()
	if !ok {
		return
	}
	am.library.Remove(info.ID)
	core.LogDebug("model %s removed with %s", info.ID, path)
	am.notify(info, nil)
}

func (am *AssetManager) notify(info AssetInfo, err error) {
	if am.OnChange != nil {
		am.OnChange(info, err)
	}
}

// Close stops watching. It is safe to call more than once.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	err := am.fsnotify.Close()
	am.wg.Wait()
	return err
}

func determineAssetType(path string) AssetType {
	switch {
	case strings.HasSuffix(path, modelManifestSuffix):
		return AssetTypeModel
	default:
		return AssetTypeNone
	}
}
