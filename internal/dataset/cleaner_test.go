package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"reflect"
	"strings"
	"testing"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func runClean(t *testing.T, input string) (*CleanStats, [][]string) {
	t.Helper()

	var out bytes.Buffer
	stats, err := NewCleaner(testLogger()).Clean(context.Background(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("output CSV does not parse: %v", err)
	}
	return stats, records
}

func TestCleanJSONLines(t *testing.T) {
	input := strings.Join([]string{
		`{"user_id":"u1","name":"Ann","time":1577647222000,"rating":5,"text":"Great food","gmap_id":"g1","pics":[{"url":"http://x"}],"resp":{"time":1,"text":"thanks"}}`,
		`{"user_id":"u2","name":"Bob","time":1577647222001,"rating":1,"text":"   ","gmap_id":"g1"}`,
		`{"user_id":"u3","name":"Cid","time":1577647222002,"rating":3,"text":"ok place","gmap_id":"g2"}`,
	}, "\n")

	stats, records := runClean(t, input)

	if stats.RowsIn != 3 || stats.RowsOut != 2 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 3 in, 2 out, 1 dropped", stats)
	}
	if !reflect.DeepEqual(records[0], outputColumns) {
		t.Errorf("header = %v, want %v", records[0], outputColumns)
	}

	first := records[1]
	if first[0] != "u1" || first[2] != "1577647222000" || first[3] != "5" {
		t.Errorf("first row = %v", first)
	}
	if first[5] != `[{"url":"http://x"}]` {
		t.Errorf("pics cell = %q", first[5])
	}
	// Maps re-serialize with sorted keys.
	if first[6] != `{"text":"thanks","time":1}` {
		t.Errorf("resp cell = %q", first[6])
	}

	second := records[2]
	if second[0] != "u3" || second[5] != "" || second[6] != "" {
		t.Errorf("second row = %v", second)
	}
}

func TestCleanArrayJSON(t *testing.T) {
	input := `[
		{"user_id":"u1","name":"Ann","time":1,"rating":4.5,"text":"Nice spot","gmap_id":"g1"},
		{"user_id":"u2","name":"Bob","time":2,"rating":2,"text":"Loud","gmap_id":"g2"}
	]`

	stats, records := runClean(t, input)

	if stats.RowsIn != 2 || stats.RowsOut != 2 {
		t.Errorf("stats = %+v, want 2 in, 2 out", stats)
	}
	if records[1][3] != "4.5" {
		t.Errorf("rating cell = %q, want 4.5", records[1][3])
	}
}

func TestCleanDropsMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing gmap_id", `{"user_id":"u1","name":"Ann","time":1,"rating":5,"text":"Good"}`},
		{"null user_id", `{"user_id":null,"name":"Ann","time":1,"rating":5,"text":"Good","gmap_id":"g1"}`},
		{"placeholder name", `{"user_id":"u1","name":"nan","time":1,"rating":5,"text":"Good","gmap_id":"g1"}`},
		{"placeholder text", `{"user_id":"u1","name":"Ann","time":1,"rating":5,"text":"N/A","gmap_id":"g1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, records := runClean(t, tt.line)
			if stats.RowsOut != 0 || stats.Dropped != 1 {
				t.Errorf("stats = %+v, want row dropped", stats)
			}
			if len(records) != 1 {
				t.Errorf("output rows = %v, want header only", records)
			}
		})
	}
}

func TestCleanNormalizesFields(t *testing.T) {
	input := `{"user_id":"u1","name":" A\u200bnn ","time":1,"rating":5,"text":"Great\tfood  here","gmap_id":"g1"}`

	_, records := runClean(t, input)

	row := records[1]
	if row[1] != "Ann" {
		t.Errorf("name = %q, want Ann", row[1])
	}
	if row[4] != "Great food here" {
		t.Errorf("text = %q, want Great food here", row[4])
	}
}

func TestCleanHeaderAlwaysWritten(t *testing.T) {
	_, records := runClean(t, `{"user_id":"","name":"","time":"","rating":"","text":"","gmap_id":""}`)

	if len(records) != 1 || !reflect.DeepEqual(records[0], outputColumns) {
		t.Errorf("output = %v, want header only", records)
	}
}

func TestCleanSkipsBlankLines(t *testing.T) {
	input := "\n" + `{"user_id":"u1","name":"Ann","time":1,"rating":5,"text":"Good","gmap_id":"g1"}` + "\n\n"

	stats, _ := runClean(t, input)
	if stats.RowsIn != 1 || stats.RowsOut != 1 {
		t.Errorf("stats = %+v, want 1 in, 1 out", stats)
	}
}

func TestCleanInvalidInput(t *testing.T) {
	for _, input := range []string{"", "not json at all"} {
		var out bytes.Buffer
		_, err := NewCleaner(testLogger()).Clean(context.Background(), strings.NewReader(input), &out)
		if err == nil {
			t.Errorf("Clean(%q) should fail", input)
			continue
		}
		if appErr, ok := err.(*errors.AppError); !ok || appErr.Code != errors.CodeValidation {
			t.Errorf("Clean(%q) error = %v, want validation error", input, err)
		}
	}
}

func TestCleanReportsLineNumber(t *testing.T) {
	input := `{"user_id":"u1","name":"Ann","time":1,"rating":5,"text":"Good","gmap_id":"g1"}` + "\n{bad json\n"

	var out bytes.Buffer
	_, err := NewCleaner(testLogger()).Clean(context.Background(), strings.NewReader(input), &out)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line 2 mentioned", err)
	}
}
