package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

func TestValidateLabelMapping(t *testing.T) {
	tests := []struct {
		name     string
		id2label map[string]string
		wantErr  bool
	}{
		{
			name:     "empty mapping tolerated",
			id2label: nil,
		},
		{
			name: "hub style tags",
			id2label: map[string]string{
				"0": "LABEL_0", "1": "LABEL_1", "2": "LABEL_2", "3": "LABEL_3",
			},
		},
		{
			name: "canonical names",
			id2label: map[string]string{
				"0": "Valid", "1": "SpamAds", "2": "LowQuality", "3": "RantWithoutVisit",
			},
		},
		{
			name: "display names",
			id2label: map[string]string{
				"0": "Valid", "1": "Spam/Ads", "2": "Low Quality", "3": "Rant Without Visit",
			},
		},
		{
			name: "reordered labels rejected",
			id2label: map[string]string{
				"0": "SpamAds", "1": "Valid", "2": "LowQuality", "3": "RantWithoutVisit",
			},
			wantErr: true,
		},
		{
			name: "wrong label count rejected",
			id2label: map[string]string{
				"0": "Valid", "1": "SpamAds", "2": "LowQuality",
			},
			wantErr: true,
		},
		{
			name: "unknown label rejected",
			id2label: map[string]string{
				"0": "Valid", "1": "SpamAds", "2": "LowQuality", "3": "Sarcasm",
			},
			wantErr: true,
		},
		{
			name: "non numeric index rejected",
			id2label: map[string]string{
				"zero": "Valid", "1": "SpamAds", "2": "LowQuality", "3": "RantWithoutVisit",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLabelMapping(tt.id2label)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateLabelMapping error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsFatal(err) {
				t.Errorf("label mapping failure should be fatal, got %v", err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		dir := t.TempDir()
		doc := `{
			"_name_or_path": "org/review-noise-deberta-v3-small",
			"model_type": "deberta-v2",
			"id2label": {"0": "LABEL_0", "1": "LABEL_1", "2": "LABEL_2", "3": "LABEL_3"}
		}`
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(doc), 0o644); err != nil {
			t.Fatalf("write config.json: %v", err)
		}

		m, err := loadManifest(dir)
		if err != nil {
			t.Fatalf("loadManifest error: %v", err)
		}
		if m == nil {
			t.Fatal("manifest is nil")
		}
		if m.name() != "review-noise-deberta-v3-small" {
			t.Errorf("name = %q, want %q", m.name(), "review-noise-deberta-v3-small")
		}
	})

	t.Run("missing manifest tolerated", func(t *testing.T) {
		m, err := loadManifest(t.TempDir())
		if err != nil {
			t.Fatalf("loadManifest error: %v", err)
		}
		if m != nil {
			t.Errorf("manifest = %+v, want nil", m)
		}
	})

	t.Run("malformed manifest rejected", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write config.json: %v", err)
		}

		_, err := loadManifest(dir)
		if err == nil {
			t.Fatal("expected parse error")
		}

		appErr, ok := err.(*errors.AppError)
		if !ok {
			t.Fatalf("expected *errors.AppError, got %T", err)
		}
		if appErr.Code != errors.CodeModelLoad {
			t.Errorf("code = %s, want %s", appErr.Code, errors.CodeModelLoad)
		}
	})

	t.Run("mismatched labels rejected", func(t *testing.T) {
		dir := t.TempDir()
		doc := `{"id2label": {"0": "LowQuality", "1": "SpamAds", "2": "Valid", "3": "RantWithoutVisit"}}`
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(doc), 0o644); err != nil {
			t.Fatalf("write config.json: %v", err)
		}

		if _, err := loadManifest(dir); err == nil {
			t.Fatal("expected label mismatch error")
		}
	})
}
