package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/poiesic/rowseek/loader"
)

const (
	defaultConnectAttempts = 3
	defaultConnectDelay    = 500 * time.Millisecond
)

// SQLSource describes tables of one database to expose as sources.
type SQLSource struct {
	// Name prefixes the source IDs, which take the form "name/table".
	Name string
	// Driver is one of "sqlite", "postgres" (or "pgx") and "sqlserver".
	Driver string
	DSN    string
	Tables []string
	// Logger receives connection retry diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// driverName maps a configured driver to its database/sql registration.
func driverName(d string) (string, error) {
	switch strings.ToLower(d) {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, d)
}

// quoteTable quotes each dot-separated part of a table name for the dialect.
func quoteTable(driver, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		if driver == "sqlserver" {
			parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
		} else {
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

// OpenDB opens and pings a database, retrying transient connection failures.
func OpenDB(ctx context.Context, driver, dsn string, logger *slog.Logger) (*sql.DB, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	err = RetryWithBackoff(ctx, logger, func() error {
		return db.PingContext(ctx)
	}, defaultConnectAttempts, defaultConnectDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return db, nil
}

// SQLReader streams the result of one query.
type SQLReader struct {
	db      *sql.DB
	ownsDB  bool
	query   string
	rows    *sql.Rows
	columns []string
}

// NewSQLReader runs query lazily on db when Columns is called.
func NewSQLReader(db *sql.DB, query string) *SQLReader {
	return &SQLReader{db: db, query: query}
}

// NewTableReader reads every row of table.
func NewTableReader(db *sql.DB, driver, table string) (*SQLReader, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}
	return NewSQLReader(db, "SELECT * FROM "+quoteTable(name, table)), nil
}

func (s *SQLReader) Columns(ctx context.Context) ([]string, error) {
	if s.rows == nil {
		rows, err := s.db.QueryContext(ctx, s.query)
		if err != nil {
			return nil, err
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return nil, err
		}
		s.rows, s.columns = rows, cols
	}
	return append([]string(nil), s.columns...), nil
}

func (s *SQLReader) Next(context.Context) ([]any, error) {
	if s.rows == nil {
		return nil, io.EOF
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	vals := make([]any, len(s.columns))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		// drivers may reuse byte slices between rows
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (s *SQLReader) Close() error {
	var err error
	if s.rows != nil {
		err = s.rows.Close()
	}
	if s.ownsDB {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SQLSources returns one loader.Source per configured table. Each Open call
// connects on its own, so tables load independently.
func SQLSources(cfg SQLSource) ([]loader.Source, error) {
	if _, err := driverName(cfg.Driver); err != nil {
		return nil, err
	}
	out := make([]loader.Source, 0, len(cfg.Tables))
	for _, table := range cfg.Tables {
		out = append(out, loader.Source{
			ID:     cfg.Name + "/" + table,
			Name:   table,
			Origin: loader.OriginParsed,
			Open: func(ctx context.Context) (loader.Reader, error) {
				db, err := OpenDB(ctx, cfg.Driver, cfg.DSN, cfg.Logger)
				if err != nil {
					return nil, err
				}
				r, err := NewTableReader(db, cfg.Driver, table)
				if err != nil {
					db.Close()
					return nil, err
				}
				r.ownsDB = true
				return r, nil
			},
		})
	}
	return out, nil
}
