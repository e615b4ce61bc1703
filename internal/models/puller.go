package models

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// Puller downloads model artifacts from the hub into the local store.
type Puller struct {
	hub   *HubClient
	store *Store
	log   *logger.Logger
}

// NewPuller creates a puller.
func NewPuller(hub *HubClient, store *Store, log *logger.Logger) *Puller {
	return &Puller{
		hub:   hub,
		store: store,
		log:   log.WithComponent("models"),
	}
}

// PullProgress reports download progress for one artifact.
type PullProgress struct {
	// File is the artifact currently downloading.
	File string

	// FileIndex and FileCount position the artifact in the pull.
	FileIndex int
	FileCount int

	// Downloaded and Total are byte counts for the current file; Total
	// is -1 when unknown.
	Downloaded int64
	Total      int64
}

// Pull downloads every classifier artifact of the repository into the
// local store and writes the manifest. An incomplete earlier pull is
// overwritten file by file.
func (p *Puller) Pull(ctx context.Context, repoID string, onProgress func(PullProgress)) (*Manifest, error) {
	name := LocalName(repoID)
	dir := p.store.Dir(name)

	info, err := p.hub.GetModelInfo(ctx, repoID)
	if err != nil {
		return nil, err
	}

	weightsPath, _, err := p.hub.FindWeightsFile(ctx, repoID)
	if err != nil {
		return nil, err
	}

	// Weights first so a failed pull dies before the cheap files, then
	// config, then whatever optional artifacts the repo has.
	files := []string{weightsPath, FileConfig}
	available := repoFileSet(info)
	for _, opt := range optionalFiles {
		if available[opt] {
			files = append(files, opt)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	manifest := &Manifest{
		ID:       repoID,
		Name:     name,
		Revision: info.SHA,
		PulledAt: time.Now().UTC(),
	}

	for i, repoPath := range files {
		// onnx/model.onnx lands as model.onnx; everything else keeps
		// its base name.
		localName := path.Base(repoPath)
		size, err := p.pullFile(ctx, repoID, repoPath, filepath.Join(dir, localName), func(downloaded, total int64) {
			if onProgress != nil {
				onProgress(PullProgress{
					File:       localName,
					FileIndex:  i,
					FileCount:  len(files),
					Downloaded: downloaded,
					Total:      total,
				})
			}
		})
		if err != nil {
			return nil, err
		}

		manifest.Files = append(manifest.Files, ManifestFile{Name: localName, Size: size})
		manifest.Size += size
		p.log.Debug("pulled artifact", "model", repoID, "file", localName, "bytes", size)
	}

	if !manifest.Complete() {
		return nil, fmt.Errorf("model %s is missing required artifacts (needs %s and a vocabulary file)", repoID, strings.Join(requiredFiles, ", "))
	}

	if err := p.store.Save(manifest); err != nil {
		return nil, err
	}

	p.log.Info("model pulled",
		"model", repoID,
		"dir", dir,
		"files", len(manifest.Files),
		"bytes", manifest.Size,
	)
	return manifest, nil
}

// pullFile downloads one artifact through a temp file so a torn
// download never masquerades as a complete one.
func (p *Puller) pullFile(ctx context.Context, repoID, repoPath, dest string, onProgress func(downloaded, total int64)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pull-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := p.hub.DownloadFile(ctx, repoID, repoPath, tmp, onProgress)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return size, nil
}

// repoFileSet flattens the repository's root-level file listing.
func repoFileSet(info *HubModelInfo) map[string]bool {
	set := make(map[string]bool, len(info.Siblings))
	for _, f := range info.Siblings {
		set[f.RFilename] = true
	}
	return set
}

// LocalName derives the store directory name from a hub repo id:
// "org/model" becomes "model".
func LocalName(repoID string) string {
	if i := strings.LastIndex(repoID, "/"); i >= 0 {
		return repoID[i+1:]
	}
	return repoID
}
