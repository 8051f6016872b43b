package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/metrics"
)

// DefaultLoadTimeout bounds a single source load, including time spent queued.
const DefaultLoadTimeout = 2 * time.Minute

// Listener observes catalog changes. Calls are made while the catalog's publish
// lock is held, so they arrive strictly in publish order and must not call back
// into the Catalog's mutating methods.
type Listener interface {
	Published(ds *Dataset)
	Removed(id string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnPublish func(ds *Dataset)
	OnRemove  func(id string)
}

func (l ListenerFuncs) Published(ds *Dataset) {
	if l.OnPublish != nil {
		l.OnPublish(ds)
	}
}

func (l ListenerFuncs) Removed(id string) {
	if l.OnRemove != nil {
		l.OnRemove(id)
	}
}

// ProgressFunc is told how many sources of a LoadAll batch have finished.
type ProgressFunc func(done, total int)

// Catalog owns every loaded dataset.
type Catalog struct {
	snap atomic.Pointer[Snapshot]

	mu          sync.Mutex // serializes publishers
	ordinals    map[string]int
	nextOrdinal int
	generation  uint64
	listeners   []Listener

	pool     *ants.Pool
	timeout  time.Duration
	markers  core.Markers
	progress ProgressFunc
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithLoadConcurrency sets how many sources LoadAll reads at once.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithLoadConcurrency(size int) Option {
	return func(c *Catalog) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithLoadTimeout bounds each source load. Default is DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Catalog) error {
		if d <= 0 {
			d = DefaultLoadTimeout
		}
		c.timeout = d
		return nil
	}
}

// WithMissingMarkers replaces the placeholder strings treated as absent values.
func WithMissingMarkers(markers core.Markers) Option {
	return func(c *Catalog) error {
		if markers == nil {
			markers = core.DefaultMissingMarkers
		}
		c.markers = markers
		return nil
	}
}

// WithProgress reports LoadAll progress.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Catalog) error {
		c.progress = fn
		return nil
	}
}

// WithMetrics records load counts and catalog size.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Catalog) error {
		c.metrics = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...Option) (*Catalog, error) {
	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		ordinals: map[string]int{},
		pool:     pool,
		timeout:  DefaultLoadTimeout,
		markers:  core.DefaultMissingMarkers,
		logger:   slog.Default(),
	}
	c.snap.Store(emptySnapshot())

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Close()
			return nil, optErr
		}
	}
	c.logger = c.logger.With("component", "loader")
	return c, nil
}

// Subscribe registers a listener for future publishes and removals.
func (c *Catalog) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the current immutable view. It never blocks.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Sources returns descriptors of every published dataset by first-load position.
func (c *Catalog) Sources() []*core.SourceDescriptor {
	ds := c.Snapshot().Datasets()
	out := make([]*core.SourceDescriptor, len(ds))
	for i, d := range ds {
		out[i] = d.Descriptor()
	}
	return out
}

// LoadOption adjusts a single Load call.
type LoadOption func(*loadConfig)

type loadConfig struct {
	origin Origin
}

// WithOrigin marks where the rows being loaded come from. Default is OriginParsed.
func WithOrigin(o Origin) LoadOption {
	return func(lc *loadConfig) { lc.origin = o }
}

// Load reads every record from r and publishes the result under id, replacing any
// dataset already published under that id. r is closed before Load returns.
// Failures are returned as *LoadError and leave the catalog unchanged.
func (c *Catalog) Load(ctx context.Context, id, name string, r Reader, opts ...LoadOption) (*core.SourceDescriptor, error) {
	start := time.Now()
	desc, err := c.load(ctx, id, name, r, opts...)
	c.metrics.ObserveLoad(err, time.Since(start))
	if err != nil {
		c.logger.Warn("source load failed", "source", id, "err", err)
		return nil, err
	}
	c.logger.Debug("source loaded", "source", id, "rows", desc.RowCount,
		"columns", len(desc.Columns), "generation", desc.Generation, "elapsed", time.Since(start))
	return desc, nil
}

func (c *Catalog) load(ctx context.Context, id, name string, r Reader, opts ...LoadOption) (*core.SourceDescriptor, error) {
	if id == "" {
		if r != nil {
			r.Close()
		}
		return nil, newLoadError(id, ErrSourceIDRequired)
	}
	if r == nil {
		return nil, newLoadError(id, ErrReaderRequired)
	}
	defer r.Close()

	lc := loadConfig{origin: OriginParsed}
	for _, opt := range opts {
		opt(&lc)
	}
	if name == "" {
		name = id
	}

	header, rows, err := c.read(ctx, id, r)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		desc: &core.SourceDescriptor{
			ID:       id,
			Name:     name,
			Columns:  header.Names(),
			RowCount: len(rows),
		},
		header: header,
		rows:   rows,
		origin: lc.origin,
	}
	if err := c.publish(ctx, ds); err != nil {
		return nil, newLoadError(id, err)
	}
	return ds.Descriptor(), nil
}

func (c *Catalog) read(ctx context.Context, id string, r Reader) (*core.Header, []*core.Row, error) {
	cols, err := r.Columns(ctx)
	if err != nil {
		return nil, nil, newLoadError(id, fmt.Errorf("reading header: %w", err))
	}
	if len(cols) == 0 {
		return nil, nil, newLoadError(id, ErrNoColumns)
	}
	header, err := core.NewHeader(cols)
	if err != nil {
		return nil, nil, newLoadError(id, err)
	}

	var rows []*core.Row
	vals := make([]core.Value, header.Len())
	for rowID := 0; ; rowID++ {
		if rowID%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, newLoadError(id, err)
			}
		}
		raw, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, &LoadError{SourceID: id, Row: rowID, Err: err}
		}
		if len(raw) != header.Len() {
			return nil, nil, &LoadError{SourceID: id, Row: rowID,
				Err: fmt.Errorf("%w: %d fields, header has %d", ErrRowWidth, len(raw), header.Len())}
		}
		for i, x := range raw {
			vals[i], _ = core.ValueOf(x, c.markers)
		}
		row, err := core.NewRow(id, rowID, header, vals)
		if err != nil {
			return nil, nil, &LoadError{SourceID: id, Row: rowID, Err: err}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (c *Catalog) publish(ctx context.Context, ds *Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A load that timed out while building must not publish late.
	if err := ctx.Err(); err != nil {
		return err
	}

	ord, ok := c.ordinals[ds.desc.ID]
	if !ok {
		ord = c.nextOrdinal
		c.nextOrdinal++
		c.ordinals[ds.desc.ID] = ord
	}
	c.generation++
	ds.desc.Ordinal = ord
	ds.desc.Generation = c.generation
	ds.desc.LoadedAt = time.Now().UTC()

	next := c.snap.Load().with(ds, c.generation)
	c.snap.Store(next)
	c.metrics.SetLoaded(next.Len(), next.RowCount())

	for _, l := range c.listeners {
		l.Published(ds)
	}
	return nil
}

// Unload removes a dataset. It reports whether the id was published.
func (c *Catalog) Unload(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.snap.Load()
	if _, ok := cur.Dataset(id); !ok {
		return false
	}
	c.generation++
	next := cur.without(id, c.generation)
	c.snap.Store(next)
	c.metrics.SetLoaded(next.Len(), next.RowCount())

	for _, l := range c.listeners {
		l.Removed(id)
	}
	c.logger.Debug("source unloaded", "source", id)
	return true
}

// Source describes one source for LoadAll. Open is called on a pool worker.
type Source struct {
	ID     string
	Name   string
	Origin Origin
	Open   func(ctx context.Context) (Reader, error)
}

// LoadReport summarizes a LoadAll batch. Both lists follow input order.
type LoadReport struct {
	Loaded []*core.SourceDescriptor
	Failed []*LoadError
}

type outcome struct {
	desc *core.SourceDescriptor
	err  error
}

// LoadAll loads sources concurrently. Each source gets its own timeout that starts
// when LoadAll is called, so time spent waiting for a worker counts against it.
// A source that fails or times out is reported and never affects the others.
func (c *Catalog) LoadAll(ctx context.Context, sources []Source) *LoadReport {
	ctxs := make([]context.Context, len(sources))
	done := make([]chan outcome, len(sources))
	for i := range sources {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		ctxs[i] = sctx
		done[i] = make(chan outcome, 1)
	}

	// Submit blocks while the pool is saturated; keep that off the caller.
	go func() {
		for i, src := range sources {
			sctx, ch := ctxs[i], done[i]
			err := c.pool.Submit(func() {
				ch <- c.loadSource(sctx, src)
			})
			if err != nil {
				ch <- outcome{err: newLoadError(src.ID, err)}
			}
		}
	}()

	report := &LoadReport{}
	for i, src := range sources {
		var o outcome
		select {
		case o = <-done[i]:
		case <-ctxs[i].Done():
			select {
			case o = <-done[i]:
			default:
				o = outcome{err: newLoadError(src.ID, ctxs[i].Err())}
				c.logger.Warn("source load abandoned", "source", src.ID, "err", ctxs[i].Err())
			}
		}
		if o.err != nil {
			var le *LoadError
			if !errors.As(o.err, &le) {
				le = newLoadError(src.ID, o.err)
			}
			report.Failed = append(report.Failed, le)
		} else {
			report.Loaded = append(report.Loaded, o.desc)
		}
		if c.progress != nil {
			c.progress(i+1, len(sources))
		}
	}

	c.logger.Info("sources loaded", "loaded", len(report.Loaded), "failed", len(report.Failed))
	return report
}

func (c *Catalog) loadSource(ctx context.Context, src Source) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: newLoadError(src.ID, err)}
	}
	if src.Open == nil {
		return outcome{err: newLoadError(src.ID, ErrReaderRequired)}
	}
	start := time.Now()
	r, err := src.Open(ctx)
	if err != nil {
		err = newLoadError(src.ID, err)
		c.metrics.ObserveLoad(err, time.Since(start))
		c.logger.Warn("source open failed", "source", src.ID, "err", err)
		return outcome{err: err}
	}
	origin := src.Origin
	if origin == "" {
		origin = OriginParsed
	}
	desc, err := c.Load(ctx, src.ID, src.Name, r, WithOrigin(origin))
	return outcome{desc: desc, err: err}
}

// Close releases the load worker pool. Published datasets stay readable.
func (c *Catalog) Close() {
	if c.pool != nil {
		c.pool.Release()
	}
}
