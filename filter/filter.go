// Package filter decides whether a row passes the structural constraints of a query:
// exact key/value filters and an inclusive date range.
package filter

import (
	"strings"
	"time"

	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/fuzzy"
)

type fieldFilter struct {
	column string
	value  string
}

// Predicate is the compiled, header-independent form of a query's filters.
type Predicate struct {
	filters     []fieldFilter
	hasRange    bool
	start       *time.Time
	end         *time.Time
	dateColumns []string
}

// Compile prepares the filters of spec. The spec is not retained.
func Compile(spec *core.QuerySpec) *Predicate {
	p := &Predicate{}
	if spec == nil {
		return p
	}
	for _, f := range spec.Filters {
		p.filters = append(p.filters, fieldFilter{
			column: strings.TrimSpace(f.Column),
			value:  fuzzy.Fold(strings.TrimSpace(f.Value)),
		})
	}
	if dr := spec.DateRange; !dr.IsZero() {
		p.hasRange = true
		if dr.Start != nil {
			s := *dr.Start
			p.start = &s
		}
		if dr.End != nil {
			e := *dr.End
			if isMidnight(e) {
				e = e.Add(24*time.Hour - time.Nanosecond)
			}
			p.end = &e
		}
		for _, c := range dr.Columns {
			p.dateColumns = append(p.dateColumns, strings.TrimSpace(c))
		}
	}
	return p
}

// Empty reports whether the predicate accepts every row.
func (p *Predicate) Empty() bool {
	return len(p.filters) == 0 && !p.hasRange
}

// Bound is a Predicate with column positions resolved against one header.
type Bound struct {
	p         *Predicate
	filterIdx []int
	dateIdx   []int
	scanAll   bool
	unusable  bool
}

// For resolves the predicate's columns against h. Column names match exactly first,
// then case-insensitively.
func (p *Predicate) For(h *core.Header) *Bound {
	b := &Bound{p: p, filterIdx: make([]int, len(p.filters))}
	for i, f := range p.filters {
		idx := resolve(h, f.column)
		b.filterIdx[i] = idx
		if idx < 0 && f.value != "" {
			b.unusable = true
		}
	}
	if p.hasRange {
		if len(p.dateColumns) == 0 {
			b.scanAll = true
		} else {
			for _, c := range p.dateColumns {
				if idx := resolve(h, c); idx >= 0 {
					b.dateIdx = append(b.dateIdx, idx)
				}
			}
			if len(b.dateIdx) == 0 {
				b.unusable = true
			}
		}
	}
	return b
}

// Rejects reports whether no row with this header can ever pass.
func (b *Bound) Rejects() bool { return b.unusable }

// Accepts reports whether row passes every filter and the date range. Date values
// that cannot be parsed in a configured date column are reported to warn, which
// may be nil.
func (b *Bound) Accepts(row *core.Row, warn func(core.FieldCoercionWarning)) bool {
	if b.unusable {
		return false
	}
	for i, f := range b.p.filters {
		if !b.filterMatches(row, b.filterIdx[i], f.value) {
			return false
		}
	}
	if !b.p.hasRange {
		return true
	}
	if b.scanAll {
		return b.anyDateInRange(row)
	}
	for _, idx := range b.dateIdx {
		v := row.At(idx)
		if v.IsAbsent() {
			continue
		}
		t, err := DateOf(v)
		if err != nil {
			if warn != nil {
				text, _ := v.Render()
				warn(core.FieldCoercionWarning{
					SourceID: row.SourceID(),
					RowID:    row.RowID(),
					Column:   row.Header().Name(idx),
					Value:    text,
					Reason:   core.ReasonUnparseableDate,
				})
			}
			continue
		}
		if b.p.inRange(t) {
			return true
		}
	}
	return false
}

func (b *Bound) filterMatches(row *core.Row, idx int, want string) bool {
	if idx < 0 {
		return want == ""
	}
	v := row.At(idx)
	if v.IsAbsent() {
		return want == ""
	}
	text, err := v.Render()
	if err != nil {
		return false
	}
	return fuzzy.Fold(strings.TrimSpace(text)) == want
}

func (b *Bound) anyDateInRange(row *core.Row) bool {
	for i := 0; i < row.Len(); i++ {
		v := row.At(i)
		switch v.Kind() {
		case core.KindTime:
			if b.p.inRange(v.Time()) {
				return true
			}
		case core.KindString:
			if !looksLikeDate(v.Str()) {
				continue
			}
			if t, err := ParseDate(v.Str()); err == nil && b.p.inRange(t) {
				return true
			}
		}
	}
	return false
}

func (p *Predicate) inRange(t time.Time) bool {
	if p.start != nil && t.Before(*p.start) {
		return false
	}
	if p.end != nil && t.After(*p.end) {
		return false
	}
	return true
}

// Accepts compiles spec and applies it to a single row without collecting warnings.
// Callers checking many rows should Compile once and reuse the Bound.
func Accepts(row *core.Row, spec *core.QuerySpec) bool {
	return Compile(spec).For(row.Header()).Accepts(row, nil)
}

func resolve(h *core.Header, name string) int {
	if idx := h.Index(name); idx >= 0 {
		return idx
	}
	for i := 0; i < h.Len(); i++ {
		if strings.EqualFold(h.Name(i), name) {
			return i
		}
	}
	return -1
}
