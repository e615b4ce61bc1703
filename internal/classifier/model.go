package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/review"
)

// manifest mirrors the fields of the transformer export's config.json
// that the engine cares about.
type manifest struct {
	NameOrPath string            `json:"_name_or_path"`
	ID2Label   map[string]string `json:"id2label"`
	ModelType  string            `json:"model_type"`
}

func (m *manifest) name() string {
	if m == nil {
		return ""
	}
	return filepath.Base(m.NameOrPath)
}

// loadManifest reads config.json from the model directory and checks
// that its label mapping matches the fixed label order. A missing
// manifest is tolerated; a mismatched one is a model load failure, since
// silently reordered labels would corrupt every prediction.
func loadManifest(modelDir string) (*manifest, error) {
	path := filepath.Join(modelDir, "config.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.ModelLoadError("failed to read model config: "+path, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.ModelLoadError("failed to parse model config: "+path, err)
	}

	if err := validateLabelMapping(m.ID2Label); err != nil {
		return nil, err
	}

	return &m, nil
}

// validateLabelMapping checks a config.json id2label block against the
// canonical label order.
func validateLabelMapping(id2label map[string]string) error {
	if len(id2label) == 0 {
		return nil
	}

	if len(id2label) != review.NumLabels {
		return errors.ModelLoadError(
			fmt.Sprintf("model declares %d labels, want %d", len(id2label), review.NumLabels), nil)
	}

	for idxStr, name := range id2label {
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return errors.ModelLoadError("non-numeric label index in model config: "+idxStr, err)
		}

		label, err := review.ParseLabel(name)
		if err != nil {
			return errors.ModelLoadError(fmt.Sprintf("unknown label %q in model config", name), err)
		}

		if label.Index() != idx {
			return errors.ModelLoadError(
				fmt.Sprintf("label order mismatch: %q is at index %d, want %d", name, idx, label.Index()), nil)
		}
	}

	return nil
}
