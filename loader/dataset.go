package loader

import (
	"sort"

	"github.com/poiesic/rowseek/core"
)

// Origin tells where a dataset's rows came from.
type Origin string

const (
	// OriginParsed rows were read from the source itself.
	OriginParsed Origin = "parsed"
	// OriginCache rows were restored from the row cache.
	OriginCache Origin = "cache"
)

// Dataset is one published source. It is immutable.
type Dataset struct {
	desc   *core.SourceDescriptor
	header *core.Header
	rows   []*core.Row
	origin Origin
}

func (d *Dataset) ID() string           { return d.desc.ID }
func (d *Dataset) Name() string         { return d.desc.Name }
func (d *Dataset) Ordinal() int         { return d.desc.Ordinal }
func (d *Dataset) Generation() uint64   { return d.desc.Generation }
func (d *Dataset) Header() *core.Header { return d.header }
func (d *Dataset) Len() int             { return len(d.rows) }
func (d *Dataset) Row(i int) *core.Row  { return d.rows[i] }
func (d *Dataset) Origin() Origin       { return d.origin }

// Rows returns the dataset's rows in RowID order. The slice must not be modified.
func (d *Dataset) Rows() []*core.Row { return d.rows }

// Descriptor returns a copy of the dataset's descriptor.
func (d *Dataset) Descriptor() *core.SourceDescriptor { return d.desc.Clone() }

// Snapshot is an immutable view of every published dataset.
type Snapshot struct {
	generation uint64
	byID       map[string]*Dataset
	ordered    []*Dataset
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byID: map[string]*Dataset{}}
}

func (s *Snapshot) with(ds *Dataset, generation uint64) *Snapshot {
	next := &Snapshot{generation: generation, byID: make(map[string]*Dataset, len(s.byID)+1)}
	for id, d := range s.byID {
		next.byID[id] = d
	}
	next.byID[ds.ID()] = ds
	next.order()
	return next
}

func (s *Snapshot) without(id string, generation uint64) *Snapshot {
	next := &Snapshot{generation: generation, byID: make(map[string]*Dataset, len(s.byID))}
	for k, d := range s.byID {
		if k != id {
			next.byID[k] = d
		}
	}
	next.order()
	return next
}

func (s *Snapshot) order() {
	s.ordered = make([]*Dataset, 0, len(s.byID))
	for _, d := range s.byID {
		s.ordered = append(s.ordered, d)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].Ordinal() < s.ordered[j].Ordinal()
	})
}

// Generation is the catalog generation at which this snapshot was published.
func (s *Snapshot) Generation() uint64 { return s.generation }

func (s *Snapshot) Len() int { return len(s.ordered) }

// Datasets returns every dataset ordered by first-load position.
func (s *Snapshot) Datasets() []*Dataset {
	return append([]*Dataset(nil), s.ordered...)
}

func (s *Snapshot) Dataset(id string) (*Dataset, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// RowCount is the total number of rows across datasets.
func (s *Snapshot) RowCount() int {
	n := 0
	for _, d := range s.ordered {
		n += d.Len()
	}
	return n
}
