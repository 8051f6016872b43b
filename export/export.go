// Package export writes search results as CSV or JSON.
//
// Records are flattened: provenance keys (source, source_name, row_id, score,
// matched_field, matched_value) come first, then row columns in first-seen order.
// Cells a record does not have are written empty (CSV) or null (JSON).
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/results"
)

// ErrUnsupportedFormat is returned by WriteFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// WriteCSV writes rs as CSV with a header row.
func WriteCSV(w io.Writer, rs *results.ResultSet) error {
	cols := rs.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	line := make([]string, len(cols))
	for _, rec := range rs.Records() {
		for i, c := range cols {
			line[i] = cellText(rec[c])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rs as a JSON array of objects whose keys keep column order.
func WriteJSON(w io.Writer, rs *results.ResultSet) error {
	cols := rs.Columns()
	keys := make([][]byte, len(cols))
	for i, c := range cols {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		keys[i] = b
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for n, rec := range rs.Records() {
		if n > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for i, c := range cols {
			if i > 0 {
				bw.WriteString(", ")
			}
			val, err := json.Marshal(jsonValue(rec[c]))
			if err != nil {
				return fmt.Errorf("record %d column %q: %w", n, c, err)
			}
			bw.Write(keys[i])
			bw.WriteString(": ")
			bw.Write(val)
		}
		bw.WriteString("}")
	}
	if rs.Len() > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

// WriteFile writes rs to path, choosing CSV or JSON by extension.
func WriteFile(path string, rs *results.ResultSet) (err error) {
	var write func(io.Writer, *results.ResultSet) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, rs)
}

func cellText(x any) string {
	v, ok := core.ValueOf(x, nil)
	if !ok {
		return ""
	}
	s, err := v.Render()
	if err != nil {
		return fmt.Sprint(x)
	}
	return s
}

func jsonValue(x any) any {
	v, ok := core.ValueOf(x, nil)
	if !ok {
		return nil
	}
	switch v.Kind() {
	case core.KindInt:
		return v.Int()
	case core.KindBool:
		return v.Bool()
	case core.KindFloat:
		if math.IsInf(v.Float(), 0) {
			return fmt.Sprint(v.Float())
		}
		return v.Float()
	}
	s, _ := v.Render()
	return s
}
