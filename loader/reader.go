package loader

import (
	"context"
	"io"
)

// Reader yields the records of one tabular source.
//
// Columns is called once before the first Next. Next returns one record per call,
// positionally aligned with the columns, and io.EOF after the last record.
// Values may be any type core.ValueOf understands.
type Reader interface {
	Columns(ctx context.Context) ([]string, error)
	Next(ctx context.Context) ([]any, error)
	Close() error
}

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered list of named values, as produced by an upstream
// harmonization step.
type Record []Field

type recordReader struct {
	columns []string
	index   map[string]int
	records []Record
	pos     int
}

// FromRecords adapts ordered name/value records into a Reader. The header is the
// union of every record's field names in first-seen order; missing fields are nil.
// When a record repeats a name, the last value wins.
func FromRecords(records []Record) Reader {
	r := &recordReader{index: map[string]int{}, records: records}
	for _, rec := range records {
		for _, f := range rec {
			if _, ok := r.index[f.Name]; !ok {
				r.index[f.Name] = len(r.columns)
				r.columns = append(r.columns, f.Name)
			}
		}
	}
	return r
}

func (r *recordReader) Columns(context.Context) ([]string, error) {
	return append([]string(nil), r.columns...), nil
}

func (r *recordReader) Next(context.Context) ([]any, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	out := make([]any, len(r.columns))
	for _, f := range r.records[r.pos] {
		out[r.index[f.Name]] = f.Value
	}
	r.pos++
	return out, nil
}

func (r *recordReader) Close() error { return nil }

type rowsReader struct {
	columns []string
	rows    [][]any
	pos     int
}

// FromRows adapts an in-memory table into a Reader.
func FromRows(columns []string, rows [][]any) Reader {
	return &rowsReader{columns: columns, rows: rows}
}

func (r *rowsReader) Columns(context.Context) ([]string, error) {
	return append([]string(nil), r.columns...), nil
}

func (r *rowsReader) Next(context.Context) ([]any, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *rowsReader) Close() error { return nil }
