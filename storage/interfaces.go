package storage

import (
	"context"

	"github.com/poiesic/rowseek/core"
)

// RowFunc receives one cached row. values must not be retained after it returns
// unless copied.
type RowFunc func(rowID int, values []core.Value) error

// SourceRepository persists parsed sources so they can be restored without
// re-reading the original files. Only rows and descriptors are stored; no search
// index is persisted.
// Implementations must be thread-safe and support concurrent access.
type SourceRepository interface {
	// SaveSource stores a source's descriptor and rows, replacing any previous copy.
	SaveSource(ctx context.Context, desc *core.SourceDescriptor, rows []*core.Row) error

	// DeleteSource removes a source and its rows.
	// Returns ErrNotFound if the source is not stored.
	DeleteSource(ctx context.Context, id string) error

	// GetSource returns a stored descriptor.
	// Returns ErrNotFound if the source is not stored.
	GetSource(ctx context.Context, id string) (*core.SourceDescriptor, error)

	// ListSources returns every stored descriptor ordered by ID.
	ListSources(ctx context.Context) ([]*core.SourceDescriptor, error)

	// ForEachRow streams a source's rows in RowID order.
	// Returns ErrNotFound if the source is not stored.
	ForEachRow(ctx context.Context, id string, fn RowFunc) error

	// Close closes the storage backend and releases resources.
	Close() error
}
