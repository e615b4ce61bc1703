// Package dataset reads, cleans, and stores review datasets.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// Row is one data row of a labeled evaluation dataset. Index is the
// 1-based position among data rows, header excluded.
type Row struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	RawLabel string `json:"label"`

	// Malformed marks rows the CSV parser could not recover a record
	// from. Text and RawLabel are empty for such rows.
	Malformed bool `json:"malformed,omitempty"`
}

// ReadLabeled loads a CSV dataset with a review-text column and a
// ground-truth label column. Files that are not valid UTF-8 are decoded
// as Latin-1, matching the exports the original datasets came from.
// A missing file or a missing column is a configuration error; a row
// the parser cannot recover is returned with Malformed set so callers
// can report it instead of losing it.
func ReadLabeled(path, textColumn, labelColumn string) ([]Row, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("cannot read dataset %s", path), err)
	}

	content, err := decodeText(raw)
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("cannot decode dataset %s", path), err)
	}

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("dataset %s has no header row", path), err)
	}

	textIdx := columnIndex(header, textColumn)
	labelIdx := columnIndex(header, labelColumn)
	if textIdx < 0 {
		return nil, errors.ConfigurationError(
			fmt.Sprintf("dataset %s has no %q column (columns: %s)", path, textColumn, strings.Join(header, ", ")), nil)
	}
	if labelIdx < 0 {
		return nil, errors.ConfigurationError(
			fmt.Sprintf("dataset %s has no %q column (columns: %s)", path, labelColumn, strings.Join(header, ", ")), nil)
	}

	var rows []Row
	for i := 1; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rows = append(rows, Row{Index: i, Malformed: true})
			continue
		}

		row := Row{Index: i}
		if textIdx < len(record) {
			row.Text = record[textIdx]
		}
		if labelIdx < len(record) {
			row.RawLabel = record[labelIdx]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// decodeText returns file content as UTF-8, stripping a leading BOM.
func decodeText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return strings.TrimPrefix(string(raw), "\ufeff"), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.TrimSpace(col) == name {
			return i
		}
	}
	return -1
}
