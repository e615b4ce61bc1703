package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testManifest(name string) *Manifest {
	return &Manifest{
		ID:       "reviewsift/" + name,
		Name:     name,
		Revision: "abc123",
		Files: []ManifestFile{
			{Name: FileWeights, Size: 1000},
			{Name: FileConfig, Size: 50},
			{Name: FileVocab, Size: 200},
		},
		Size:     1250,
		PulledAt: time.Now().UTC(),
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	m := testManifest("model-a")
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("model-a")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.ID != m.ID {
		t.Errorf("loaded ID = %q, want %q", loaded.ID, m.ID)
	}
	if loaded.Revision != m.Revision {
		t.Errorf("loaded revision = %q, want %q", loaded.Revision, m.Revision)
	}
	if len(loaded.Files) != 3 {
		t.Errorf("loaded files = %d, want 3", len(loaded.Files))
	}
	if !loaded.Complete() {
		t.Errorf("loaded manifest not complete")
	}
}

func TestStore_SaveRejectsEmptyName(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(&Manifest{}); err == nil {
		t.Fatal("Save() with empty name succeeded, want error")
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Load("nope"); err == nil {
		t.Fatal("Load() of missing model succeeded, want error")
	}
}

func TestStore_Exists(t *testing.T) {
	store := NewStore(t.TempDir())

	if store.Exists("model-a") {
		t.Error("Exists() before save = true, want false")
	}

	if err := store.Save(testManifest("model-a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists("model-a") {
		t.Error("Exists() after save = false, want true")
	}

	// An incomplete manifest does not count as present.
	incomplete := testManifest("model-b")
	incomplete.Files = incomplete.Files[:1]
	if err := store.Save(incomplete); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.Exists("model-b") {
		t.Error("Exists() with incomplete manifest = true, want false")
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore(t.TempDir())

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() on empty store error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List() on empty store = %d entries, want 0", len(list))
	}

	for _, name := range []string{"model-b", "model-a"} {
		if err := store.Save(testManifest(name)); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	list, err = store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(list))
	}
	if list[0].Name != "model-a" || list[1].Name != "model-b" {
		t.Errorf("List() order = %q, %q; want sorted by name", list[0].Name, list[1].Name)
	}
}

func TestStore_ListSkipsManifestlessDirs(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save(testManifest("model-a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "stray"), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d entries, want 1", len(list))
	}
}

func TestStore_ListMissingBaseDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %d entries, want 0", len(list))
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(testManifest("model-a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Remove("model-a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if store.Exists("model-a") {
		t.Error("Exists() after Remove() = true, want false")
	}

	if err := store.Remove(".."); err == nil {
		t.Error("Remove(\"..\") succeeded, want error")
	}
}

func TestStore_Infos(t *testing.T) {
	store := NewStore(t.TempDir())

	infos, err := store.Infos()
	if err != nil {
		t.Fatalf("Infos() error = %v", err)
	}
	if len(infos) != len(DefaultModels) {
		t.Fatalf("Infos() on empty store = %d entries, want %d", len(infos), len(DefaultModels))
	}
	for _, info := range infos {
		if info.Downloaded {
			t.Errorf("model %q marked downloaded on empty store", info.Name)
		}
	}

	// Pull the default model plus one the default list doesn't know.
	def := DefaultModel()
	if err := store.Save(testManifest(def.Name)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(testManifest("custom-model")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	infos, err = store.Infos()
	if err != nil {
		t.Fatalf("Infos() error = %v", err)
	}
	if len(infos) != len(DefaultModels)+1 {
		t.Fatalf("Infos() = %d entries, want %d", len(infos), len(DefaultModels)+1)
	}

	byName := make(map[string]ModelInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}

	if !byName[def.Name].Downloaded {
		t.Errorf("default model not marked downloaded after save")
	}
	custom, ok := byName["custom-model"]
	if !ok {
		t.Fatal("locally pulled model missing from Infos()")
	}
	if !custom.Downloaded {
		t.Error("custom model not marked downloaded")
	}
	if custom.Size != 1250 {
		t.Errorf("custom model size = %d, want 1250", custom.Size)
	}
}
