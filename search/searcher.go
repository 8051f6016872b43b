package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/filter"
	"github.com/poiesic/rowseek/fuzzy"
	"github.com/poiesic/rowseek/loader"
	"github.com/poiesic/rowseek/metrics"
	"github.com/poiesic/rowseek/results"
	"github.com/poiesic/rowseek/schema"
)

// DefaultChunkSize is the number of rows one pool task filters and scores.
const DefaultChunkSize = 1024

// how often a chunk task checks for cancellation
const cancelCheckInterval = 256

// Searcher runs queries against a catalog's current snapshot.
type Searcher struct {
	catalog   *loader.Catalog
	index     *schema.Index
	pool      *ants.Pool
	chunkSize int
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithPoolSize sets the worker pool size for row scoring.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithChunkSize sets how many rows each pool task handles.
// Default is DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			n = DefaultChunkSize
		}
		s.chunkSize = n
		return nil
	}
}

// WithMetrics records search counts and latency.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Searcher) error {
		s.metrics = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(catalog *loader.Catalog, index *schema.Index, opts ...Option) (*Searcher, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		catalog:   catalog,
		index:     index,
		pool:      pool,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	s.logger = s.logger.With("component", "search")
	return s, nil
}

// Search runs spec against the current snapshot.
func (s *Searcher) Search(ctx context.Context, spec *core.QuerySpec) (*results.ResultSet, error) {
	return s.SearchWithMonitor(ctx, spec, nil)
}

// target is one dataset in scope with its columns resolved.
type target struct {
	ds     *loader.Dataset
	fields []int
	bound  *filter.Bound
}

// chunk is the outcome of one pool task.
type chunk struct {
	matches  []core.Match
	ordinal  int
	warnings []core.FieldCoercionWarning
	scanned  int
	passed   int
	scored   int
}

// SearchWithMonitor runs spec with a monitor that receives callbacks at each stage.
// It returns a *core.InvalidQueryError before any row is read when spec is invalid,
// and ctx.Err() when the context ends first.
func (s *Searcher) SearchWithMonitor(ctx context.Context, spec *core.QuerySpec, monitor Monitor) (*results.ResultSet, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()

	if err := core.ValidateQuerySpec(spec); err != nil {
		mode := fuzzy.Exact
		if spec != nil && spec.Fuzzy {
			mode = fuzzy.Fuzzy
		}
		s.metrics.ObserveSearch(mode.String(), metrics.OutcomeInvalid, 0, 0, 0)
		return nil, err
	}
	monitor.Start(spec)

	mode := fuzzy.Exact
	if spec.Fuzzy {
		mode = fuzzy.Fuzzy
	}
	var query *fuzzy.Query
	if spec.HasQuery() {
		query = fuzzy.Prepare(spec.Query, mode)
	}

	rs := results.New()
	targets, columns := s.scope(spec)
	pred := filter.Compile(spec)
	scopeRows := 0
	ids := make([]string, 0, len(targets))
	for i := range targets {
		targets[i].bound = pred.For(targets[i].ds.Header())
		scopeRows += targets[i].ds.Len()
		ids = append(ids, targets[i].ds.ID())
		rs.SourceNames[targets[i].ds.ID()] = targets[i].ds.Name()
	}
	monitor.AfterScope(ids, columns)

	chunks, err := s.run(ctx, targets, query, spec.ActiveThreshold())
	if err != nil {
		s.metrics.ObserveSearch(mode.String(), metrics.OutcomeError, time.Since(start), 0, 0)
		return nil, err
	}

	collector := results.NewCollector()
	for _, c := range chunks {
		rs.Stats.RowsScanned += c.scanned
		rs.Stats.RowsPassedFilters += c.passed
		rs.Stats.FieldsScored += c.scored
		for _, m := range c.matches {
			collector.Add(m, c.ordinal)
		}
		for _, w := range c.warnings {
			collector.Warn(w)
		}
	}
	monitor.AfterFilter(rs.Stats.RowsScanned, rs.Stats.RowsPassedFilters)
	monitor.AfterScoring(rs.Stats.FieldsScored, collector.Len())

	rs.Stats.SourcesSearched = len(targets)
	rs.Stats.Matched = collector.Len()
	rs.Matches, rs.Truncated = collector.Build(spec.Limit)
	rs.Warnings, rs.WarningCount = collector.Warnings()

	switch {
	case !rs.Empty():
	case scopeRows == 0:
		rs.Reason = results.ReasonNoRowsInScope
	case rs.Stats.RowsPassedFilters == 0:
		rs.Reason = results.ReasonNoRowsPassedFilters
	default:
		rs.Reason = results.ReasonNoRowsMetThreshold
	}
	rs.Stats.Elapsed = time.Since(start)

	outcome := metrics.OutcomeMatched
	if rs.Empty() {
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.ObserveSearch(mode.String(), outcome, rs.Stats.Elapsed, rs.Stats.RowsScanned, rs.Stats.Matched)
	s.logger.Debug("search complete",
		"query_id", rs.QueryID,
		"mode", mode.String(),
		"sources", rs.Stats.SourcesSearched,
		"scanned", rs.Stats.RowsScanned,
		"matches", rs.Stats.Matched,
		"reason", rs.Reason,
		"elapsed", rs.Stats.Elapsed)

	monitor.Finish(rs)
	return rs, nil
}

// scope picks the datasets a query covers and resolves target columns for each.
// It returns the canonical column names the query targets, or nil for all columns.
// Target columns only steer text matching, so a browse without query text ignores them.
func (s *Searcher) scope(spec *core.QuerySpec) ([]target, []string) {
	snap := s.catalog.Snapshot()

	byColumn := len(spec.Columns) > 0 && spec.HasQuery()
	var columns, names []string
	if byColumn {
		columns = s.index.Resolve(spec.Columns)
		// a dataset published after the index was consulted still matches by name
		names = append(names, columns...)
		for _, c := range spec.Columns {
			names = append(names, strings.TrimSpace(c))
		}
	}

	var targets []target
	for _, ds := range snap.Datasets() {
		if !inSources(ds, spec.Sources) {
			continue
		}
		t := target{ds: ds}
		if byColumn {
			t.fields = resolveFields(ds.Header(), names)
			if len(t.fields) == 0 {
				continue
			}
		} else {
			t.fields = make([]int, ds.Header().Len())
			for i := range t.fields {
				t.fields[i] = i
			}
		}
		targets = append(targets, t)
	}

	return targets, columns
}

func inSources(ds *loader.Dataset, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == ds.ID() || strings.EqualFold(src, ds.Name()) {
			return true
		}
	}
	return false
}

// resolveFields returns header positions of the named columns, case-insensitively,
// in header order and without duplicates.
func resolveFields(h *core.Header, names []string) []int {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = struct{}{}
	}
	var out []int
	for i := 0; i < h.Len(); i++ {
		if _, ok := want[strings.ToLower(h.Name(i))]; ok {
			out = append(out, i)
		}
	}
	return out
}

// run partitions every target into chunks and processes them on the pool. Each task
// writes only its own slot, so no locking is needed beyond the WaitGroup.
func (s *Searcher) run(ctx context.Context, targets []target, query *fuzzy.Query, threshold int) ([]chunk, error) {
	type span struct {
		t          *target
		start, end int
	}
	var spans []span
	for i := range targets {
		n := targets[i].ds.Len()
		for lo := 0; lo < n; lo += s.chunkSize {
			spans = append(spans, span{t: &targets[i], start: lo, end: min(lo+s.chunkSize, n)})
		}
	}

	out := make([]chunk, len(spans))
	var wg sync.WaitGroup
	var submitErr error
	for i, sp := range spans {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			out[i] = process(ctx, sp.t, sp.start, sp.end, query, threshold)
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()

	if submitErr != nil {
		return nil, submitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func process(ctx context.Context, t *target, start, end int, query *fuzzy.Query, threshold int) chunk {
	c := chunk{ordinal: t.ds.Ordinal()}
	warn := func(w core.FieldCoercionWarning) { c.warnings = append(c.warnings, w) }

	for i := start; i < end; i++ {
		if (i-start)%cancelCheckInterval == 0 && ctx.Err() != nil {
			return c
		}
		row := t.ds.Row(i)
		c.scanned++
		if !t.bound.Accepts(row, warn) {
			continue
		}
		c.passed++

		if query == nil {
			c.matches = append(c.matches, core.Match{Row: row, Score: 100, FilterOnly: true})
			continue
		}

		best, bestField, bestText, found := 0, "", "", false
		for _, idx := range t.fields {
			v := row.At(idx)
			if v.IsAbsent() {
				continue
			}
			text, err := v.Render()
			if err != nil {
				warn(core.FieldCoercionWarning{
					SourceID: row.SourceID(),
					RowID:    row.RowID(),
					Column:   row.Header().Name(idx),
					Value:    fmt.Sprint(v.Interface()),
					Reason:   core.ReasonUnrenderable,
				})
				continue
			}
			score := query.Score(text)
			c.scored++
			if !found || score > best {
				best, bestField, bestText, found = score, row.Header().Name(idx), text, true
			}
		}
		if found && best >= threshold {
			c.matches = append(c.matches, core.Match{Row: row, Field: bestField, Score: best, MatchedText: bestText})
		}
	}
	return c
}

// Release releases the scoring pool.
// The searcher should not be used after calling Release.
func (s *Searcher) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}
