package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/pkg/security"
)

// StoredDataset describes one labelled output kept on disk.
type StoredDataset struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Model     string         `json:"model"`
	Rows      int            `json:"rows"`
	Labelled  int            `json:"labelled"`
	Counts    map[string]int `json:"counts"`
	SizeBytes int64          `json:"size_bytes"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store keeps labelled datasets on disk: one CSV per entry plus a JSON
// metadata sidecar named after the entry id.
type Store struct {
	dir string
	log *logger.Logger
	mu  sync.RWMutex
}

// NewStore creates the store directory if needed.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("cannot create dataset store %s", dir), err)
	}
	return &Store{dir: dir, log: log.WithComponent("datasets")}, nil
}

// Save persists a labelling result and returns its metadata.
func (s *Store) Save(result *LabelResult, model string) (*StoredDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := &StoredDataset{
		ID:        uuid.NewString(),
		Name:      result.Filename,
		Model:     model,
		Rows:      result.Total,
		Labelled:  result.Labelled,
		Counts:    result.Counts,
		SizeBytes: int64(len(result.CSV)),
		CreatedAt: time.Now().UTC(),
	}

	if err := os.WriteFile(s.csvPath(meta.ID), result.CSV, 0o644); err != nil {
		return nil, errors.InternalError("writing dataset CSV", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, errors.InternalError("encoding dataset metadata", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), data, 0o644); err != nil {
		os.Remove(s.csvPath(meta.ID))
		return nil, errors.InternalError("writing dataset metadata", err)
	}

	s.log.Info("dataset stored", "id", meta.ID, "name", meta.Name, "rows", meta.Rows)
	return meta, nil
}

// List returns all stored datasets, newest first.
func (s *Store) List() ([]*StoredDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.InternalError("reading dataset store", err)
	}

	out := make([]*StoredDataset, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		meta, err := readMeta(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable dataset metadata", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Get returns metadata for one stored dataset.
func (s *Store) Get(id string) (*StoredDataset, error) {
	if err := security.ValidateDatasetID(id); err != nil {
		return nil, errors.ValidationError("invalid dataset id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := readMeta(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("dataset")
		}
		return nil, errors.InternalError("reading dataset metadata", err)
	}
	return meta, nil
}

// Open returns the stored CSV for download along with its metadata.
// The caller closes the reader.
func (s *Store) Open(id string) (io.ReadCloser, *StoredDataset, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.csvPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NotFoundError("dataset file")
		}
		return nil, nil, errors.InternalError("opening dataset CSV", err)
	}
	return f, meta, nil
}

// Delete removes a stored dataset and its metadata.
func (s *Store) Delete(id string) error {
	if err := security.ValidateDatasetID(id); err != nil {
		return errors.ValidationError("invalid dataset id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metaErr := os.Remove(s.metaPath(id))
	csvErr := os.Remove(s.csvPath(id))
	if os.IsNotExist(metaErr) && os.IsNotExist(csvErr) {
		return errors.NotFoundError("dataset")
	}
	if metaErr != nil && !os.IsNotExist(metaErr) {
		return errors.InternalError("deleting dataset metadata", metaErr)
	}
	if csvErr != nil && !os.IsNotExist(csvErr) {
		return errors.InternalError("deleting dataset CSV", csvErr)
	}

	s.log.Info("dataset deleted", "id", id)
	return nil
}

func (s *Store) csvPath(id string) string  { return filepath.Join(s.dir, id+".csv") }
func (s *Store) metaPath(id string) string { return filepath.Join(s.dir, id+".json") }

func readMeta(path string) (*StoredDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta StoredDataset
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
