// Package schema tracks the column vocabulary of every loaded source.
//
// The index is rebuilt copy-on-write whenever a source is published or removed and
// swapped in with a single atomic store, so readers never block and always observe a
// consistent view.
package schema

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/rowseek/core"
)

type snapshot struct {
	// columns per source ID, in header order
	sources map[string][]string
	// canonical column name -> IDs of the sources carrying it, sorted
	owners map[string][]string
	// lower-cased column name -> canonical names sharing it, sorted
	folded map[string][]string
}

func emptySnapshot() *snapshot {
	return &snapshot{
		sources: map[string][]string{},
		owners:  map[string][]string{},
		folded:  map[string][]string{},
	}
}

// Index is safe for concurrent use.
type Index struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New returns an empty index.
func New() *Index {
	x := &Index{}
	x.snap.Store(emptySnapshot())
	return x
}

// Publish records or replaces the columns of a source.
func (x *Index) Publish(desc *core.SourceDescriptor) {
	x.mu.Lock()
	defer x.mu.Unlock()
	sources := cloneSources(x.snap.Load().sources)
	sources[desc.ID] = slices.Clone(desc.Columns)
	x.snap.Store(build(sources))
}

// Remove forgets a source. Unknown IDs are ignored.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.snap.Load()
	if _, ok := cur.sources[id]; !ok {
		return
	}
	sources := cloneSources(cur.sources)
	delete(sources, id)
	x.snap.Store(build(sources))
}

func cloneSources(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func build(sources map[string][]string) *snapshot {
	s := emptySnapshot()
	s.sources = sources
	for id, cols := range sources {
		for _, c := range cols {
			s.owners[c] = append(s.owners[c], id)
		}
	}
	for c, ids := range s.owners {
		slices.Sort(ids)
		key := strings.ToLower(c)
		s.folded[key] = append(s.folded[key], c)
	}
	for _, names := range s.folded {
		slices.Sort(names)
	}
	return s
}

// Columns returns the columns of one source in header order.
func (x *Index) Columns(sourceID string) ([]string, bool) {
	cols, ok := x.snap.Load().sources[sourceID]
	if !ok {
		return nil, false
	}
	return slices.Clone(cols), true
}

// AllColumns maps every column name to the sorted IDs of the sources that have it.
func (x *Index) AllColumns() map[string][]string {
	s := x.snap.Load()
	out := make(map[string][]string, len(s.owners))
	for c, ids := range s.owners {
		out[c] = slices.Clone(ids)
	}
	return out
}

// Sources returns the indexed source IDs, sorted.
func (x *Index) Sources() []string {
	s := x.snap.Load()
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Vocabulary returns every distinct column name, sorted.
func (x *Index) Vocabulary() []string {
	s := x.snap.Load()
	out := make([]string, 0, len(s.owners))
	for c := range s.owners {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Sample returns up to n column names, most widely shared first, ties alphabetical.
// n <= 0 returns all of them.
func (x *Index) Sample(n int) []string {
	s := x.snap.Load()
	out := make([]string, 0, len(s.owners))
	for c := range s.owners {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := len(s.owners[out[i]]), len(s.owners[out[j]])
		if ci != cj {
			return ci > cj
		}
		return out[i] < out[j]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Resolve maps requested names to the canonical column names they match
// case-insensitively. Names that match nothing are dropped; the result keeps request
// order and has no duplicates.
func (x *Index) Resolve(names []string) []string {
	s := x.snap.Load()
	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		for _, c := range s.folded[strings.ToLower(strings.TrimSpace(n))] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
