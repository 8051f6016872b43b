package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a stable identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DefaultThreshold is the fuzzy acceptance threshold used when none is given.
const DefaultThreshold = 80

// SourceDescriptor describes one loaded dataset.
type SourceDescriptor struct {
	ID       string
	Name     string
	Columns  []string
	RowCount int
	LoadedAt time.Time
	// Generation increments on every publish by the owning catalog.
	Generation uint64
	// Ordinal is the position of the source's first load; reloads keep it.
	Ordinal int
}

// Clone returns a deep copy.
func (d *SourceDescriptor) Clone() *SourceDescriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Columns = append([]string(nil), d.Columns...)
	return &c
}

// Match is one row accepted by a query.
type Match struct {
	Row *Row
	// Field is empty for filter-only matches.
	Field       string
	Score       int
	MatchedText string
	FilterOnly  bool
}

// DateRange bounds a query to rows with a date inside [Start, End]. Either bound may
// be nil. An empty Columns list means every date-like column.
type DateRange struct {
	Start   *time.Time
	End     *time.Time
	Columns []string
}

// IsZero reports whether the range constrains nothing.
func (r *DateRange) IsZero() bool {
	return r == nil || (r.Start == nil && r.End == nil)
}

// FieldFilter requires Column to equal Value, case-insensitively after trimming.
type FieldFilter struct {
	Column string
	Value  string
}

// ParseFieldFilter parses "column=value".
func ParseFieldFilter(s string) (FieldFilter, error) {
	col, val, ok := strings.Cut(s, "=")
	if !ok {
		return FieldFilter{}, &InvalidQueryError{Field: "filters", Reason: fmt.Sprintf("expected column=value, got %q", s)}
	}
	return FieldFilter{Column: strings.TrimSpace(col), Value: strings.TrimSpace(val)}, nil
}

// QuerySpec is an immutable description of one search.
type QuerySpec struct {
	Query     string
	Fuzzy     bool
	Threshold int
	// Columns restricts matching to these columns; empty means all.
	Columns []string
	// Sources restricts the search to these source IDs or names; empty means all.
	Sources   []string
	DateRange *DateRange
	Filters   []FieldFilter
	// Limit caps the number of matches returned; 0 means unlimited.
	Limit int
}

// HasQuery reports whether q carries a non-blank query.
func (q *QuerySpec) HasQuery() bool {
	return strings.TrimSpace(q.Query) != ""
}

// ActiveThreshold is the minimum score a row must reach: 100 in exact mode.
func (q *QuerySpec) ActiveThreshold() int {
	if !q.Fuzzy {
		return 100
	}
	return q.Threshold
}

// QueryOption configures a QuerySpec built by NewQuerySpec.
type QueryOption func(*QuerySpec)

// NewQuerySpec returns a spec with the default threshold and the given options applied.
func NewQuerySpec(opts ...QueryOption) *QuerySpec {
	q := &QuerySpec{Threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func WithQuery(text string) QueryOption {
	return func(q *QuerySpec) { q.Query = text }
}

// WithFuzzy enables fuzzy matching at the given threshold.
func WithFuzzy(threshold int) QueryOption {
	return func(q *QuerySpec) {
		q.Fuzzy = true
		q.Threshold = threshold
	}
}

func WithColumns(columns ...string) QueryOption {
	return func(q *QuerySpec) { q.Columns = append(q.Columns, columns...) }
}

func WithSources(sources ...string) QueryOption {
	return func(q *QuerySpec) { q.Sources = append(q.Sources, sources...) }
}

func WithDateRange(start, end *time.Time, columns ...string) QueryOption {
	return func(q *QuerySpec) {
		q.DateRange = &DateRange{Start: start, End: end, Columns: columns}
	}
}

func WithFilter(column, value string) QueryOption {
	return func(q *QuerySpec) {
		q.Filters = append(q.Filters, FieldFilter{Column: column, Value: value})
	}
}

func WithLimit(n int) QueryOption {
	return func(q *QuerySpec) { q.Limit = n }
}
