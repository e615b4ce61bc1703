package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	textproc "github.com/reviewsift/review-sift/internal/text"
)

// requiredColumns are the fields every kept row must carry after
// cleaning; rows missing any of them are dropped.
var requiredColumns = []string{"user_id", "name", "time", "rating", "text", "gmap_id"}

// outputColumns is the fixed output schema and order. pics and resp are
// carried through untouched when present.
var outputColumns = []string{"user_id", "name", "time", "rating", "text", "pics", "resp", "gmap_id"}

// cleanProgressEvery is how often, in input rows, the cleaner checks
// for cancellation and reports progress.
const cleanProgressEvery = 10000

// CleanStats summarizes one cleaning run.
type CleanStats struct {
	RowsIn  int `json:"rows_in"`
	RowsOut int `json:"rows_out"`
	Dropped int `json:"dropped"`
}

// Cleaner converts raw review dumps (JSON Lines or a JSON array) into a
// clean CSV with a stable schema. Both input forms stream, so dumps of
// any size process in bounded memory.
type Cleaner struct {
	log *logger.Logger

	// OnProgress, when set, is called periodically with the running
	// input row count.
	OnProgress func(rowsIn int)
}

// NewCleaner creates a cleaner.
func NewCleaner(log *logger.Logger) *Cleaner {
	return &Cleaner{log: log.WithComponent("cleaner")}
}

// CleanFile reads inputPath and writes the rows that keep all required
// fields to outputPath as CSV.
func (c *Cleaner) CleanFile(ctx context.Context, inputPath, outputPath string) (*CleanStats, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("cannot read input %s", inputPath), err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("cannot create output %s", outputPath), err)
	}

	stats, err := c.Clean(ctx, in, out)
	if err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, errors.InternalError("closing output", err)
	}
	return stats, nil
}

// Clean streams records from r and writes cleaned CSV rows to w. The
// header is always written so the output schema is stable even when
// every row is dropped.
func (c *Cleaner) Clean(ctx context.Context, r io.Reader, w io.Writer) (*CleanStats, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	first, err := sniffJSON(br)
	if err != nil {
		return nil, errors.ValidationError("input is empty or not JSON")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(outputColumns); err != nil {
		return nil, errors.InternalError("writing CSV header", err)
	}

	stats := &CleanStats{}
	emit := func(record map[string]any) error {
		stats.RowsIn++
		if row, keep := cleanRecord(record); keep {
			stats.RowsOut++
			if err := cw.Write(row); err != nil {
				return errors.InternalError("writing CSV row", err)
			}
		}
		if stats.RowsIn%cleanProgressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if c.OnProgress != nil {
				c.OnProgress(stats.RowsIn)
			}
		}
		return nil
	}

	if first == '[' {
		c.log.Debug("cleaning JSON array input")
		err = cleanArray(br, emit)
	} else {
		c.log.Debug("cleaning JSON Lines input")
		err = cleanLines(br, emit)
	}
	if err != nil {
		return nil, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, errors.InternalError("flushing CSV", err)
	}

	stats.Dropped = stats.RowsIn - stats.RowsOut
	c.log.Info("dataset cleaned", "rows_in", stats.RowsIn, "rows_out", stats.RowsOut, "dropped", stats.Dropped)
	return stats, nil
}

// sniffJSON returns the first non-whitespace byte without consuming it.
func sniffJSON(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}

func cleanLines(br *bufio.Reader, emit func(map[string]any) error) error {
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 1<<20), 16<<20)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		record, err := decodeRecord(raw)
		if err != nil {
			return errors.Wrap(errors.CodeValidation, fmt.Sprintf("line %d: invalid JSON", line), err)
		}
		if err := emit(record); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.InternalError("reading input", err)
	}
	return nil
}

func cleanArray(br *bufio.Reader, emit func(map[string]any) error) error {
	dec := json.NewDecoder(br)
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return errors.Wrap(errors.CodeValidation, "invalid JSON array", err)
	}
	for dec.More() {
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return errors.Wrap(errors.CodeValidation, "invalid JSON array element", err)
		}
		if err := emit(record); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(errors.CodeValidation, "invalid JSON array", err)
	}
	return nil
}

func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

// cleanRecord normalizes the required fields and reports whether the
// row keeps all of them. The returned row follows outputColumns.
func cleanRecord(record map[string]any) ([]string, bool) {
	values := make(map[string]string, len(outputColumns))
	for _, col := range requiredColumns {
		cleaned, empty := textproc.Clean(fieldString(record[col]))
		if empty {
			return nil, false
		}
		values[col] = cleaned
	}

	values["pics"] = fieldString(record["pics"])
	values["resp"] = fieldString(record["resp"])

	row := make([]string, len(outputColumns))
	for i, col := range outputColumns {
		row[i] = values[col]
	}
	return row, true
}

// fieldString renders a decoded JSON value as the string the CSV cell
// carries. Numbers keep their source representation; structured values
// serialize as compact JSON.
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
