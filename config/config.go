// Package config loads rowseek settings from YAML with ROWSEEK_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/poiesic/rowseek/source"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for rowseek.
// Environment variables always override YAML values.
type Config struct {
	// DataDir is scanned for source files.
	DataDir string `yaml:"data_dir" env:"ROWSEEK_DATA_DIR" env-default:"."`
	// Patterns restricts discovery to matching base names (filepath.Match globs).
	Patterns []string `yaml:"patterns" env:"ROWSEEK_PATTERNS"`
	// CacheDir holds the row cache. Empty disables caching.
	CacheDir string `yaml:"cache_dir" env:"ROWSEEK_CACHE_DIR"`

	// PoolSize is the number of scoring workers; 0 means one per CPU.
	PoolSize        int           `yaml:"pool_size" env:"ROWSEEK_POOL_SIZE" env-default:"0"`
	LoadConcurrency int           `yaml:"load_concurrency" env:"ROWSEEK_LOAD_CONCURRENCY" env-default:"4"`
	LoadTimeout     time.Duration `yaml:"load_timeout" env:"ROWSEEK_LOAD_TIMEOUT" env-default:"2m"`

	// Threshold is the default fuzzy threshold for the CLI.
	Threshold   int      `yaml:"threshold" env:"ROWSEEK_THRESHOLD" env-default:"80"`
	DateColumns []string `yaml:"date_columns" env:"ROWSEEK_DATE_COLUMNS"`
	// MissingMarkers are cell texts read as absent values.
	MissingMarkers []string `yaml:"missing_markers" env:"ROWSEEK_MISSING_MARKERS" env-default:"nan,NaN,NAN,NaT,<NA>,null,NULL"`
	// Encoding is the charset of CSV and TSV files.
	Encoding string `yaml:"encoding" env:"ROWSEEK_ENCODING" env-default:"utf-8"`
	// HTMLTable selects the table read from HTML exports.
	HTMLTable string `yaml:"html_table" env:"ROWSEEK_HTML_TABLE" env-default:"table"`

	SQL []SQLConfig `yaml:"sql"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr" env:"ROWSEEK_METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"ROWSEEK_LOG_LEVEL" env-default:"info"`
	// MaxColumns caps the columns shown per match in terminal output.
	MaxColumns int `yaml:"max_columns" env:"ROWSEEK_MAX_COLUMNS" env-default:"8"`
}

// SQLConfig names database tables to load as sources.
type SQLConfig struct {
	Name   string   `yaml:"name"`
	Driver string   `yaml:"driver"`
	DSN    string   `yaml:"dsn"`
	Tables []string `yaml:"tables"`
}

// Load reads path (YAML) and applies environment overrides. An empty path reads
// the environment and defaults only. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("%w: threshold %d outside 0..100", ErrInvalidConfig, c.Threshold)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("%w: pool_size must not be negative", ErrInvalidConfig)
	}
	if c.LoadConcurrency < 1 {
		return fmt.Errorf("%w: load_concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("%w: load_timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxColumns < 0 {
		return fmt.Errorf("%w: max_columns must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := source.LookupEncoding(c.Encoding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	names := make(map[string]struct{}, len(c.SQL))
	for i, s := range c.SQL {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: sql[%d] needs a name", ErrInvalidConfig, i)
		case s.DSN == "":
			return fmt.Errorf("%w: sql %q needs a dsn", ErrInvalidConfig, s.Name)
		case len(s.Tables) == 0:
			return fmt.Errorf("%w: sql %q lists no tables", ErrInvalidConfig, s.Name)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: duplicate sql name %q", ErrInvalidConfig, s.Name)
		}
		names[s.Name] = struct{}{}
		if _, err := source.SQLSources(source.SQLSource{Driver: s.Driver}); err != nil {
			return fmt.Errorf("%w: sql %q: %w", ErrInvalidConfig, s.Name, err)
		}
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
}

// SourceOptions returns the file reader options the config describes.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		Encoding: c.Encoding,
		HTML:     source.HTMLOptions{Selector: c.HTMLTable},
	}
}

// Write emits the effective configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
