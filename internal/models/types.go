// Package models provides the model hub client and the local model
// store the classifier loads artifacts from.
package models

import (
	"fmt"
	"time"
)

// Artifact filenames that make up a classification model directory.
const (
	// FileWeights is the ONNX graph the inference session loads.
	FileWeights = "model.onnx"

	// FileConfig is the transformer export's config.json carrying the
	// id2label mapping.
	FileConfig = "config.json"

	// FileVocab and FileTokenizer are the two vocabulary formats the
	// tokenizer understands; a model directory needs at least one.
	FileVocab     = "vocab.txt"
	FileTokenizer = "tokenizer.json"
)

// requiredFiles must all be present for a model to be loadable.
var requiredFiles = []string{FileWeights, FileConfig}

// optionalFiles are pulled when the repository has them.
var optionalFiles = []string{
	FileVocab,
	FileTokenizer,
	"tokenizer_config.json",
	"special_tokens_map.json",
}

// ModelInfo describes a classification model, either a known default or
// an entry in the local store.
type ModelInfo struct {
	// ID is the hub repository id (e.g., "org/review-noise-deberta-v3-small").
	ID string `json:"id" yaml:"id"`

	// Name is the local directory name under the models dir.
	Name string `json:"name" yaml:"name"`

	// DisplayName is the human-readable model name.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// Description is the model description.
	Description string `json:"description" yaml:"description"`

	// MaxTokens is the maximum sequence length the model accepts.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Downloaded indicates the model is present in the local store.
	Downloaded bool `json:"downloaded" yaml:"downloaded"`

	// IsDefault marks the model the engine loads when none is configured.
	IsDefault bool `json:"is_default" yaml:"is_default"`

	// Size is the total artifact size in bytes, when known.
	Size int64 `json:"size" yaml:"size"`

	// DownloadURL is the hub page for the model.
	DownloadURL string `json:"download_url" yaml:"download_url"`
}

// Validate validates the model info.
func (mi *ModelInfo) Validate() error {
	if mi.ID == "" {
		return fmt.Errorf("model ID cannot be empty")
	}

	if mi.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if mi.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}

	return nil
}

// Manifest records what a pull put into a model directory. It is
// written as manifest.yaml next to the artifacts.
type Manifest struct {
	// ID is the hub repository the artifacts came from.
	ID string `json:"id" yaml:"id"`

	// Name is the local directory name.
	Name string `json:"name" yaml:"name"`

	// Revision is the hub revision that was pulled.
	Revision string `json:"revision" yaml:"revision"`

	// Files lists the pulled artifacts.
	Files []ManifestFile `json:"files" yaml:"files"`

	// Size is the total size of the pulled artifacts in bytes.
	Size int64 `json:"size" yaml:"size"`

	// PulledAt is when the pull completed.
	PulledAt time.Time `json:"pulled_at" yaml:"pulled_at"`
}

// ManifestFile is one pulled artifact.
type ManifestFile struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}

// HasFile reports whether the manifest lists the named artifact.
func (m *Manifest) HasFile(name string) bool {
	for _, f := range m.Files {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Complete reports whether the manifest covers every required artifact
// plus at least one vocabulary file.
func (m *Manifest) Complete() bool {
	for _, name := range requiredFiles {
		if !m.HasFile(name) {
			return false
		}
	}
	return m.HasFile(FileVocab) || m.HasFile(FileTokenizer)
}
