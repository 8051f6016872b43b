package core

import (
	"fmt"
	"strings"
)

// Header is an ordered set of unique column names shared by every row of a dataset.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader validates and indexes column names. Names are trimmed.
func NewHeader(names []string) (*Header, error) {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: position %d", ErrEmptyColumnName, i)
		}
		if _, dup := h.index[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		h.names[i] = name
		h.index[name] = i
	}
	return h, nil
}

// Index returns the position of a column, or -1.
func (h *Header) Index(name string) int {
	if i, ok := h.index[name]; ok {
		return i
	}
	return -1
}

func (h *Header) Name(i int) string { return h.names[i] }
func (h *Header) Len() int          { return len(h.names) }

// Names returns a copy of the column names in order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Row is one immutable record from one source.
type Row struct {
	sourceID string
	rowID    int
	header   *Header
	values   []Value
}

// NewRow copies values; the caller may reuse its slice.
func NewRow(sourceID string, rowID int, header *Header, values []Value) (*Row, error) {
	if len(values) != header.Len() {
		return nil, fmt.Errorf("%w: row %d has %d values, header has %d", ErrRowWidth, rowID, len(values), header.Len())
	}
	vals := make([]Value, len(values))
	copy(vals, values)
	return &Row{sourceID: sourceID, rowID: rowID, header: header, values: vals}, nil
}

func (r *Row) SourceID() string  { return r.sourceID }
func (r *Row) RowID() int        { return r.rowID }
func (r *Row) Header() *Header   { return r.header }
func (r *Row) Columns() []string { return r.header.Names() }
func (r *Row) Len() int          { return len(r.values) }
func (r *Row) At(i int) Value    { return r.values[i] }

// Get returns the value of a column; ok is false when the column does not exist.
func (r *Row) Get(column string) (Value, bool) {
	i := r.header.Index(column)
	if i < 0 {
		return Absent, false
	}
	return r.values[i], true
}

// Each visits columns in header order until fn returns false.
func (r *Row) Each(fn func(column string, v Value) bool) {
	for i, v := range r.values {
		if !fn(r.header.names[i], v) {
			return
		}
	}
}
