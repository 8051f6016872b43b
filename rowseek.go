// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rowseek searches tabular records across many loaded sources with fuzzy
// matching, column scoping, date ranges and exact-value filters.
//
// Engine ties the pieces together: a loader.Catalog holding the published
// datasets, a schema.Index of their columns, a search.Searcher running queries,
// and an optional badger-backed row cache that lets later runs skip parsing.
package rowseek

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/loader"
	"github.com/poiesic/rowseek/metrics"
	"github.com/poiesic/rowseek/results"
	"github.com/poiesic/rowseek/schema"
	"github.com/poiesic/rowseek/search"
	"github.com/poiesic/rowseek/storage"
	"github.com/poiesic/rowseek/storage/badger"
)

// Engine is a loaded set of sources ready to be searched.
type Engine struct {
	catalog   *loader.Catalog
	index     *schema.Index
	searcher  *search.Searcher
	cache     storage.SourceRepository
	ownsCache bool
	logger    *slog.Logger
	closed    atomic.Bool
}

// Option configures an Engine.
type Option func(*engineOptions) error

type engineOptions struct {
	poolSize        int
	loadConcurrency int
	loadTimeout     time.Duration
	markers         core.Markers
	progress        loader.ProgressFunc
	metrics         *metrics.Recorder
	logger          *slog.Logger
	cacheDir        string
	cache           storage.SourceRepository
}

// WithPoolSize sets the number of scoring workers. Default is runtime.NumCPU().
func WithPoolSize(n int) Option {
	return func(o *engineOptions) error {
		o.poolSize = n
		return nil
	}
}

// WithLoadConcurrency sets how many sources load at once.
func WithLoadConcurrency(n int) Option {
	return func(o *engineOptions) error {
		o.loadConcurrency = n
		return nil
	}
}

// WithLoadTimeout bounds each source load. Default is loader.DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *engineOptions) error {
		o.loadTimeout = d
		return nil
	}
}

// WithMissingMarkers sets the cell texts read as absent values.
func WithMissingMarkers(markers ...string) Option {
	return func(o *engineOptions) error {
		o.markers = core.NewMarkers(markers...)
		return nil
	}
}

// WithProgress reports batch load progress.
func WithProgress(fn loader.ProgressFunc) Option {
	return func(o *engineOptions) error {
		o.progress = fn
		return nil
	}
}

// WithMetrics records load and search metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *engineOptions) error {
		o.metrics = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) error {
		o.logger = logger
		return nil
	}
}

// WithCacheDir opens an on-disk row cache in dir. The engine closes it.
func WithCacheDir(dir string) Option {
	return func(o *engineOptions) error {
		o.cacheDir = dir
		return nil
	}
}

// WithCache uses an existing row cache. The caller keeps ownership.
func WithCache(repo storage.SourceRepository) Option {
	return func(o *engineOptions) error {
		o.cache = repo
		return nil
	}
}

// New creates an empty engine.
func New(opts ...Option) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	catalogOpts := []loader.Option{
		loader.WithLogger(options.logger),
		loader.WithMetrics(options.metrics),
	}
	if options.loadConcurrency > 0 {
		catalogOpts = append(catalogOpts, loader.WithLoadConcurrency(options.loadConcurrency))
	}
	if options.loadTimeout > 0 {
		catalogOpts = append(catalogOpts, loader.WithLoadTimeout(options.loadTimeout))
	}
	if options.markers != nil {
		catalogOpts = append(catalogOpts, loader.WithMissingMarkers(options.markers))
	}
	if options.progress != nil {
		catalogOpts = append(catalogOpts, loader.WithProgress(options.progress))
	}
	catalog, err := loader.NewCatalog(catalogOpts...)
	if err != nil {
		return nil, err
	}

	index := schema.New()
	catalog.Subscribe(loader.ListenerFuncs{
		OnPublish: func(ds *loader.Dataset) { index.Publish(ds.Descriptor()) },
		OnRemove:  index.Remove,
	})

	searchOpts := []search.Option{
		search.WithLogger(options.logger),
		search.WithMetrics(options.metrics),
	}
	if options.poolSize > 0 {
		searchOpts = append(searchOpts, search.WithPoolSize(options.poolSize))
	}
	searcher, err := search.NewSearcher(catalog, index, searchOpts...)
	if err != nil {
		catalog.Close()
		return nil, err
	}

	e := &Engine{
		catalog:  catalog,
		index:    index,
		searcher: searcher,
		cache:    options.cache,
		logger:   options.logger.With("component", "engine"),
	}
	if e.cache == nil && options.cacheDir != "" {
		repo, err := badger.NewRepository(options.cacheDir)
		if err != nil {
			searcher.Release()
			catalog.Close()
			return nil, err
		}
		e.cache, e.ownsCache = repo, true
	}
	return e, nil
}

// Close releases worker pools and the row cache when the engine opened it.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.searcher.Release()
	e.catalog.Close()
	if e.ownsCache {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("error closing row cache", "err", err)
			return err
		}
	}
	return nil
}

// LoadSource parses r and publishes it under id, replacing any earlier version.
// Freshly parsed sources are written to the row cache when one is configured.
func (e *Engine) LoadSource(ctx context.Context, id, name string, r loader.Reader) (*core.SourceDescriptor, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	desc, err := e.catalog.Load(ctx, id, name, r)
	if err != nil {
		return nil, err
	}
	e.cacheDataset(ctx, desc)
	return desc, nil
}

// LoadSources loads many sources concurrently. Failures are reported per source
// and never abort the batch.
func (e *Engine) LoadSources(ctx context.Context, sources []loader.Source) (*loader.LoadReport, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	report := e.catalog.LoadAll(ctx, sources)
	for _, desc := range report.Loaded {
		e.cacheDataset(ctx, desc)
	}
	return report, nil
}

// cacheDataset stores the published dataset behind desc. Cache failures are
// logged; the in-memory load already succeeded.
func (e *Engine) cacheDataset(ctx context.Context, desc *core.SourceDescriptor) {
	if e.cache == nil {
		return
	}
	ds, ok := e.catalog.Snapshot().Dataset(desc.ID)
	if !ok || ds.Generation() != desc.Generation || ds.Origin() != loader.OriginParsed {
		return
	}
	if err := e.cache.SaveSource(ctx, ds.Descriptor(), ds.Rows()); err != nil {
		e.logger.Warn("failed to cache source", "source", desc.ID, "err", err)
	}
}

// Restore loads every cached source without re-parsing. Sources already
// published are replaced by their cached copies.
func (e *Engine) Restore(ctx context.Context) (*loader.LoadReport, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if e.cache == nil {
		return nil, ErrNoCache
	}
	cached, err := e.cache.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]loader.Source, len(cached))
	for i, desc := range cached {
		sources[i] = loader.Source{
			ID:     desc.ID,
			Name:   desc.Name,
			Origin: loader.OriginCache,
			Open: func(context.Context) (loader.Reader, error) {
				return storage.NewCachedReader(e.cache, desc.ID), nil
			},
		}
	}
	report := e.catalog.LoadAll(ctx, sources)
	e.logger.Info("restored cached sources", "restored", len(report.Loaded), "failed", len(report.Failed))
	return report, nil
}

// CachedSources lists what the row cache holds.
func (e *Engine) CachedSources(ctx context.Context) ([]*core.SourceDescriptor, error) {
	if e.cache == nil {
		return nil, ErrNoCache
	}
	return e.cache.ListSources(ctx)
}

// Evict removes a source from the row cache. Missing entries are not an error.
func (e *Engine) Evict(ctx context.Context, id string) error {
	if e.cache == nil {
		return ErrNoCache
	}
	if err := e.cache.DeleteSource(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Unload removes a source from memory. It reports whether it was loaded.
func (e *Engine) Unload(id string) bool {
	return e.catalog.Unload(id)
}

// Search runs spec against the sources loaded at call time.
func (e *Engine) Search(ctx context.Context, spec *core.QuerySpec) (*results.ResultSet, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.searcher.Search(ctx, spec)
}

// SearchWithMonitor is Search with stage callbacks.
func (e *Engine) SearchWithMonitor(ctx context.Context, spec *core.QuerySpec, monitor search.Monitor) (*results.ResultSet, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.searcher.SearchWithMonitor(ctx, spec, monitor)
}

// ListSources returns the loaded sources in load order.
func (e *Engine) ListSources() []*core.SourceDescriptor {
	return e.catalog.Sources()
}

// Dataset returns the loaded dataset for id.
func (e *Engine) Dataset(id string) (*loader.Dataset, bool) {
	return e.catalog.Snapshot().Dataset(id)
}

// ColumnsFor returns a source's columns in header order.
func (e *Engine) ColumnsFor(id string) ([]string, bool) {
	return e.index.Columns(id)
}

// SampleColumns returns up to n column names, most widespread first.
func (e *Engine) SampleColumns(n int) []string {
	return e.index.Sample(n)
}

// AllColumns maps every column name to the sorted IDs of the sources that have it.
func (e *Engine) AllColumns() map[string][]string {
	return e.index.AllColumns()
}
