// Package results holds the ranked, de-duplicated output of a search.
package results

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/rowseek/core"
)

// Reason explains an empty result set.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoRowsInScope       Reason = "no_rows_in_scope"
	ReasonNoRowsPassedFilters Reason = "no_rows_passed_filters"
	ReasonNoRowsMetThreshold  Reason = "no_rows_met_threshold"
)

// MaxWarnings is how many warnings a result set retains; the rest are only counted.
const MaxWarnings = 100

// Record keys added by Records in addition to row columns.
const (
	KeySource       = "source"
	KeySourceName   = "source_name"
	KeyRowID        = "row_id"
	KeyScore        = "score"
	KeyMatchedField = "matched_field"
	KeyMatchedValue = "matched_value"
)

var metaKeys = []string{KeySource, KeySourceName, KeyRowID, KeyScore, KeyMatchedField, KeyMatchedValue}

// collisionSuffix is appended to a row column whose name equals a record key.
const collisionSuffix = " (row)"

// Stats describes the work done by one search.
type Stats struct {
	SourcesSearched   int
	RowsScanned       int
	RowsPassedFilters int
	FieldsScored      int
	// Matched counts accepted rows before Limit was applied.
	Matched int
	Elapsed time.Duration
}

// ResultSet is the outcome of one search. Matches are unique by (source, row) and
// ordered by score descending, then source load position, then row ID.
type ResultSet struct {
	QueryID  uuid.UUID
	Matches  []core.Match
	Reason   Reason
	Stats    Stats
	Warnings []core.FieldCoercionWarning
	// WarningCount includes warnings dropped beyond MaxWarnings.
	WarningCount int
	// Truncated is set when Limit cut the match list.
	Truncated bool
	// SourceNames maps source IDs to display names.
	SourceNames map[string]string
}

// New returns an empty result set with a fresh query ID.
func New() *ResultSet {
	return &ResultSet{QueryID: uuid.New(), SourceNames: map[string]string{}}
}

func (rs *ResultSet) Len() int    { return len(rs.Matches) }
func (rs *ResultSet) Empty() bool { return len(rs.Matches) == 0 }

// Records flattens matches into maps suitable for export. Absent values are nil.
func (rs *ResultSet) Records() []map[string]any {
	out := make([]map[string]any, 0, len(rs.Matches))
	for _, m := range rs.Matches {
		rec := make(map[string]any, m.Row.Len()+len(metaKeys))
		rec[KeySource] = m.Row.SourceID()
		rec[KeySourceName] = rs.sourceName(m.Row.SourceID())
		rec[KeyRowID] = m.Row.RowID()
		rec[KeyScore] = m.Score
		rec[KeyMatchedField] = m.Field
		rec[KeyMatchedValue] = m.MatchedText
		m.Row.Each(func(column string, v core.Value) bool {
			rec[recordColumn(column)] = v.Interface()
			return true
		})
		out = append(out, rec)
	}
	return out
}

// Columns returns the record keys in a stable order: the fixed keys first, then row
// columns in first-seen order across matches.
func (rs *ResultSet) Columns() []string {
	cols := append([]string(nil), metaKeys...)
	seen := make(map[string]struct{}, len(cols))
	for _, k := range cols {
		seen[k] = struct{}{}
	}
	for _, m := range rs.Matches {
		m.Row.Each(func(column string, _ core.Value) bool {
			key := recordColumn(column)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				cols = append(cols, key)
			}
			return true
		})
	}
	return cols
}

func (rs *ResultSet) sourceName(id string) string {
	if name, ok := rs.SourceNames[id]; ok {
		return name
	}
	return id
}

func recordColumn(column string) string {
	for _, k := range metaKeys {
		if column == k {
			return column + collisionSuffix
		}
	}
	return column
}

type key struct {
	source string
	row    int
}

type entry struct {
	match   core.Match
	ordinal int
}

// Collector de-duplicates matches on insert. It is not safe for concurrent use;
// parallel producers should merge into one collector from a single goroutine.
type Collector struct {
	best     map[key]entry
	warnings []core.FieldCoercionWarning
	warned   int
}

func NewCollector() *Collector {
	return &Collector{best: map[key]entry{}}
}

// Add keeps m unless a match for the same row with an equal or higher score exists.
// ordinal is the source's load position, used to order ties.
func (c *Collector) Add(m core.Match, ordinal int) {
	k := key{source: m.Row.SourceID(), row: m.Row.RowID()}
	if cur, ok := c.best[k]; ok && cur.match.Score >= m.Score {
		return
	}
	c.best[k] = entry{match: m, ordinal: ordinal}
}

// Warn records a warning, retaining at most MaxWarnings.
func (c *Collector) Warn(w core.FieldCoercionWarning) {
	c.warned++
	if len(c.warnings) < MaxWarnings {
		c.warnings = append(c.warnings, w)
	}
}

func (c *Collector) Len() int { return len(c.best) }

// Build sorts the collected matches and applies limit (0 means unlimited). It
// reports whether matches were dropped by the limit.
func (c *Collector) Build(limit int) ([]core.Match, bool) {
	entries := make([]entry, 0, len(c.best))
	for _, e := range c.best {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.match.Score != b.match.Score {
			return a.match.Score > b.match.Score
		}
		if a.ordinal != b.ordinal {
			return a.ordinal < b.ordinal
		}
		if a.match.Row.SourceID() != b.match.Row.SourceID() {
			return a.match.Row.SourceID() < b.match.Row.SourceID()
		}
		return a.match.Row.RowID() < b.match.Row.RowID()
	})

	truncated := false
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
		truncated = true
	}
	out := make([]core.Match, len(entries))
	for i, e := range entries {
		out[i] = e.match
	}
	return out, truncated
}

// Warnings returns the retained warnings and the total number reported.
func (c *Collector) Warnings() ([]core.FieldCoercionWarning, int) {
	return append([]core.FieldCoercionWarning(nil), c.warnings...), c.warned
}
