package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// manifestFilename sits next to the artifacts in each model directory.
const manifestFilename = "manifest.yaml"

// Store manages model directories under a base path. Each pulled model
// lives in its own directory with a manifest.yaml describing what was
// pulled.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a store rooted at basePath. The directory is created
// on first write, not here, so a read-only deployment can still list.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// BasePath returns the store's root directory.
func (s *Store) BasePath() string {
	return s.basePath
}

// Dir returns the directory a model's artifacts live in.
func (s *Store) Dir(name string) string {
	return filepath.Join(s.basePath, name)
}

func (s *Store) manifestPath(name string) string {
	return filepath.Join(s.Dir(name), manifestFilename)
}

// Exists reports whether the named model has a complete manifest.
func (s *Store) Exists(name string) bool {
	m, err := s.Load(name)
	return err == nil && m.Complete()
}

// Load reads the named model's manifest.
func (s *Store) Load(name string) (*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.manifestPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("model %s not found", name)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", name, err)
	}

	return &m, nil
}

// Save writes a model's manifest, creating the directory if needed.
func (s *Store) Save(m *Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("manifest name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Dir(m.Name), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(s.manifestPath(m.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// List returns the manifests of all locally stored models, sorted by
// name. Directories without a readable manifest are skipped.
func (s *Store) List() ([]*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	manifests := make([]*Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(s.manifestPath(entry.Name()))
		if err != nil {
			continue
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			continue
		}
		manifests = append(manifests, &m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name < manifests[j].Name
	})

	return manifests, nil
}

// Remove deletes the named model's directory and everything in it.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid model name %q", name)
	}

	if err := os.RemoveAll(s.Dir(name)); err != nil {
		return fmt.Errorf("failed to remove model %s: %w", name, err)
	}

	return nil
}

// Infos merges the default model list with local store state: defaults
// gain Downloaded flags, and locally pulled models with no default
// entry are appended.
func (s *Store) Infos() ([]ModelInfo, error) {
	manifests, err := s.List()
	if err != nil {
		return nil, err
	}

	local := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		local[m.Name] = m
	}

	infos := make([]ModelInfo, 0, len(DefaultModels)+len(manifests))
	for _, info := range DefaultModels {
		if m, ok := local[info.Name]; ok {
			info.Downloaded = m.Complete()
			if m.Size > 0 {
				info.Size = m.Size
			}
			delete(local, info.Name)
		}
		infos = append(infos, info)
	}

	extra := make([]ModelInfo, 0, len(local))
	for _, m := range local {
		extra = append(extra, ModelInfo{
			ID:         m.ID,
			Name:       m.Name,
			Downloaded: m.Complete(),
			Size:       m.Size,
			MaxTokens:  512,
		})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })

	return append(infos, extra...), nil
}
