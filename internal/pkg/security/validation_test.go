package security

import (
	"strings"
	"testing"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"valid", "Great food and service!", false},
		{"single char", "k", false},
		{"unicode", "最高のレストラン", false},
		{"valid at max", strings.Repeat("a", MaxTextLength), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxTextLength+1), true},
		{"invalid utf8", string([]byte{0xff, 0xfe, 0xfd}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateText() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDatasetID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid uuid", "b6f3e1c2-9a7d-4e5f-8a1b-2c3d4e5f6a7b", false},
		{"valid simple", "reviews-2024", false},
		{"valid underscore", "reviews_batch_1", false},
		{"empty", "", true},
		{"leading hyphen", "-reviews", true},
		{"slash", "reviews/1", true},
		{"too long", strings.Repeat("a", MaxDatasetIDLength+1), true},
		{"spaces", "my dataset", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatasetID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDatasetID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateColumnName(t *testing.T) {
	tests := []struct {
		name    string
		col     string
		wantErr bool
	}{
		{"valid", "text", false},
		{"valid with space", "review text", false},
		{"empty", "", true},
		{"control char", "text\x00", true},
		{"too long", strings.Repeat("c", MaxColumnNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumnName("text_col", tt.col)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateColumnName(%q) error = %v, wantErr %v", tt.col, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchSize(t *testing.T) {
	tests := []struct {
		batchSize int
		wantErr   bool
	}{
		{1, false},
		{16, false},
		{256, false},
		{0, true},
		{-1, true},
		{257, true},
	}

	for _, tt := range tests {
		err := ValidateBatchSize(tt.batchSize)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBatchSize(%d) error = %v, wantErr %v", tt.batchSize, err, tt.wantErr)
		}
	}
}

func TestValidateWorkers(t *testing.T) {
	tests := []struct {
		workers int
		wantErr bool
	}{
		{1, false},
		{8, false},
		{64, false},
		{0, true},
		{65, true},
	}

	for _, tt := range tests {
		err := ValidateWorkers(tt.workers)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateWorkers(%d) error = %v, wantErr %v", tt.workers, err, tt.wantErr)
		}
	}
}

func TestValidateCSVFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"valid", "reviews.csv", false},
		{"valid upper ext", "REVIEWS.CSV", false},
		{"empty", "", true},
		{"wrong extension", "reviews.xlsx", true},
		{"no extension", "reviews", true},
		{"traversal", "../reviews.csv", true},
		{"absolute", "/tmp/reviews.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCSVFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCSVFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"valid", 1024, false},
		{"at limit", MaxUploadSize, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"over limit", MaxUploadSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadSize(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUploadSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestClassifyRequestValidator(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v := &ClassifyRequestValidator{Text: "great place"}
		if err := v.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		v := &ClassifyRequestValidator{Text: ""}
		if err := v.Validate(); err == nil {
			t.Error("Validate() error = nil, want validation error")
		}
	})
}

func TestLabelRequestValidator(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v := &LabelRequestValidator{Filename: "reviews.csv", Size: 2048, TextColumn: "text"}
		if err := v.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("bad filename", func(t *testing.T) {
		v := &LabelRequestValidator{Filename: "reviews.pdf", Size: 2048}
		if err := v.Validate(); err == nil {
			t.Error("Validate() error = nil, want validation error")
		}
	})

	t.Run("oversized", func(t *testing.T) {
		v := &LabelRequestValidator{Filename: "reviews.csv", Size: MaxUploadSize + 1}
		if err := v.Validate(); err == nil {
			t.Error("Validate() error = nil, want validation error")
		}
	})

	t.Run("bad column", func(t *testing.T) {
		v := &LabelRequestValidator{Filename: "reviews.csv", Size: 10, TextColumn: "bad\x00col"}
		if err := v.Validate(); err == nil {
			t.Error("Validate() error = nil, want validation error")
		}
	})
}
