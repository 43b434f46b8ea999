package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
)

const markerID = "5d1e2f70-8a9b-4c3d-8e7f-102132435465"

func manifest(name string) []byte {
	return []byte("id = \"" + markerID + "\"\nname = \"" + name + "\"\n[mesh]\nprimitive = \"cube\"\nsize = [1, 1, 1]\n")
}

func newManager(t *testing.T, dir string) (*AssetManager, chan AssetInfo) {
	t.Helper()
	am, err := NewAssetManager(renderer.NewModelLibrary(nil))
	if err != nil {
		t.Fatalf("NewAssetManager failed: %v", err)
	}
	loaded := make(chan AssetInfo, 64)
	am.OnChange = func(info AssetInfo, err error) {
		if err != nil {
			return
		}
		select {
		case loaded <- info:
		default:
		}
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { am.Close() })
	return am, loaded
}

func modelName(am *AssetManager) string {
	m, err := am.Library().Model(uuid.NullUUID{UUID: uuid.MustParse(markerID), Valid: true})
	if err != nil {
		return ""
	}
	return m.Name
}

func TestInitializeLoadsNestedManifests(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "markers")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "marker.model.toml"), manifest("marker"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.model.toml"), []byte("id = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	am, loaded := newManager(t, dir)
	select {
	case info := <-loaded:
		if info.ID.String() != markerID || info.Type != AssetTypeModel {
			t.Errorf("unexpected change %+v", info)
		}
	default:
		t.Error("no change reported for the initial load")
	}
	if got := modelName(am); got != "marker" {
		t.Fatalf("expected model marker, got %q", got)
	}
	if n := am.Library().Len(); n != 1 {
		t.Errorf("expected 1 model, got %d", n)
	}
	if n := len(am.Assets()); n != 1 {
		t.Errorf("expected 1 asset, got %d", n)
	}
}

func TestManifestHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker.model.toml")
	if err := os.WriteFile(path, manifest("before"), 0o644); err != nil {
		t.Fatal(err)
	}
	am, _ := newManager(t, dir)
	if got := modelName(am); got != "before" {
		t.Fatalf("expected model before, got %q", got)
	}

	if err := os.WriteFile(path, manifest("after"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return modelName(am) == "after" })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, err := am.Library().Model(uuid.NullUUID{UUID: uuid.MustParse(markerID), Valid: true})
		return errors.Is(err, core.ErrModelNotFound)
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for the asset watcher")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseTwice(t *testing.T) {
	am, err := NewAssetManager(renderer.NewModelLibrary(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := am.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
