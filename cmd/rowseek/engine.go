package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/rowseek"
	"github.com/poiesic/rowseek/config"
	"github.com/poiesic/rowseek/loader"
	"github.com/poiesic/rowseek/source"
	"github.com/urfave/cli/v2"
)

// openEngine builds an engine from the effective config. cacheDir enables the row
// cache; progress, when non-nil, is told about batch loads.
func openEngine(c *cli.Context, cacheDir string, progress loader.ProgressFunc) (*rowseek.Engine, error) {
	cfg := configFrom(c)
	opts := []rowseek.Option{
		rowseek.WithPoolSize(cfg.PoolSize),
		rowseek.WithLoadConcurrency(cfg.LoadConcurrency),
		rowseek.WithLoadTimeout(cfg.LoadTimeout),
		rowseek.WithMissingMarkers(cfg.MissingMarkers...),
		rowseek.WithMetrics(recorderFrom(c)),
		rowseek.WithLogger(slog.Default()),
	}
	if cacheDir != "" {
		opts = append(opts, rowseek.WithCacheDir(cacheDir))
	}
	if progress != nil {
		opts = append(opts, rowseek.WithProgress(progress))
	}
	return rowseek.New(opts...)
}

// collectSources lists every file under the data dir and every configured table.
func collectSources(cfg *config.Config) ([]loader.Source, error) {
	sources, err := source.Discover(cfg.DataDir, cfg.Patterns, cfg.SourceOptions())
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", cfg.DataDir, err)
	}
	for _, s := range cfg.SQL {
		tables, err := source.SQLSources(source.SQLSource{
			Name:   s.Name,
			Driver: s.Driver,
			DSN:    s.DSN,
			Tables: s.Tables,
			Logger: slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, tables...)
	}
	return sources, nil
}

// loadEngine fills e either from the row cache or by parsing every source.
// Individual failures are logged; the command goes on with what loaded.
func loadEngine(ctx context.Context, cfg *config.Config, e *rowseek.Engine, fromCache bool) (*loader.LoadReport, error) {
	var report *loader.LoadReport
	var err error
	if fromCache {
		report, err = e.Restore(ctx)
	} else {
		var sources []loader.Source
		if sources, err = collectSources(cfg); err != nil {
			return nil, err
		}
		report, err = e.LoadSources(ctx, sources)
	}
	if err != nil {
		return nil, err
	}
	for _, f := range report.Failed {
		slog.Warn("skipping source", "source", f.SourceID, "err", f.Err)
	}
	if len(report.Loaded) == 0 {
		slog.Warn("no sources loaded", "data_dir", cfg.DataDir, "from_cache", fromCache)
	}
	return report, nil
}

// openLoaded is openEngine plus loadEngine for the read-only commands.
func openLoaded(c *cli.Context, fromCache bool) (*rowseek.Engine, error) {
	cfg := configFrom(c)
	cacheDir := ""
	if fromCache {
		if cfg.CacheDir == "" {
			return nil, fmt.Errorf("--cache needs a cache directory (--cache-dir or cache_dir)")
		}
		cacheDir = cfg.CacheDir
	}
	e, err := openEngine(c, cacheDir, nil)
	if err != nil {
		return nil, err
	}
	if _, err := loadEngine(c.Context, cfg, e, fromCache); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
