package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/poiesic/rowseek/core"
)

// CachedReader replays a stored source. It satisfies loader.Reader.
type CachedReader struct {
	repo SourceRepository
	id   string
	desc *core.SourceDescriptor
	rows [][]any
	pos  int
}

// NewCachedReader returns a reader over the cached rows of source id.
func NewCachedReader(repo SourceRepository, id string) *CachedReader {
	return &CachedReader{repo: repo, id: id}
}

// Descriptor returns the stored descriptor once Columns has run.
func (r *CachedReader) Descriptor() *core.SourceDescriptor { return r.desc }

// Columns loads the descriptor and every row. A row count that disagrees with the
// descriptor means an interrupted write and yields ErrCorruptSource.
func (r *CachedReader) Columns(ctx context.Context) ([]string, error) {
	desc, err := r.repo.GetSource(ctx, r.id)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, desc.RowCount)
	err = r.repo.ForEachRow(ctx, r.id, func(_ int, values []core.Value) error {
		if len(values) != len(desc.Columns) {
			return fmt.Errorf("%w: %s has a row of width %d, want %d", ErrCorruptSource, r.id, len(values), len(desc.Columns))
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) != desc.RowCount {
		return nil, fmt.Errorf("%w: %s has %d rows, descriptor says %d", ErrCorruptSource, r.id, len(rows), desc.RowCount)
	}
	r.desc, r.rows = desc, rows
	return append([]string(nil), desc.Columns...), nil
}

func (r *CachedReader) Next(context.Context) ([]any, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *CachedReader) Close() error {
	r.rows = nil
	return nil
}
