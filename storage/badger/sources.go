package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
	owned   bool
	// writes to the same source must not interleave
	mu sync.Mutex
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a SourceRepository on top of an open backend. The
// caller keeps ownership of the backend.
func NewSourceRepository(backend *Backend) *SourceRepository {
	return &SourceRepository{backend: backend}
}

// NewRepository opens an on-disk row cache at dir.
func NewRepository(dir string) (storage.SourceRepository, error) {
	backend, err := OpenBackend(dir, false, nil)
	if err != nil {
		return nil, err
	}
	return &SourceRepository{backend: backend, owned: true}, nil
}

// Close closes the backend when the repository opened it.
func (r *SourceRepository) Close() error {
	if !r.owned {
		return nil
	}
	return r.backend.Close()
}

// SaveSource replaces the stored copy of a source. The descriptor is removed first
// and written last, so an interrupted save never leaves a descriptor pointing at a
// partial row set.
func (r *SourceRepository) SaveSource(ctx context.Context, desc *core.SourceDescriptor, rows []*core.Row) error {
	if desc == nil || desc.ID == "" {
		return fmt.Errorf("%w: descriptor without ID", storage.ErrSerializationFailed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Delete(makeSourceDescKey(desc.ID))
	}, true)
	if err != nil {
		return err
	}
	if err := r.backend.DropPrefix(makeSourceRowPrefix(desc.ID)); err != nil {
		return err
	}

	i := 0
	err = r.backend.WriteRows(ctx, func() ([]byte, []byte, bool) {
		if i >= len(rows) {
			return nil, nil, false
		}
		row := rows[i]
		i++
		return makeSourceRowKey(desc.ID, row.RowID()), storage.MarshalValues(storage.RowValues(row)), true
	})
	if err != nil {
		return err
	}

	stored := desc.Clone()
	stored.RowCount = len(rows)
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Set(makeSourceDescKey(desc.ID), storage.MarshalDescriptor(stored))
	}, true)
	if err != nil {
		return err
	}
	r.backend.logger.Debug("cached source", "source", desc.ID, "rows", len(rows))
	return nil
}

// DeleteSource removes a source's descriptor and rows.
func (r *SourceRepository) DeleteSource(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSourceDescKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(key)
	}, true)
	if err != nil {
		return err
	}
	return r.backend.DropPrefix(makeSourceRowPrefix(id))
}

// GetSource returns a stored descriptor.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*core.SourceDescriptor, error) {
	var desc *core.SourceDescriptor
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceDescKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			desc, err = storage.UnmarshalDescriptor(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// ListSources returns every stored descriptor in ID order.
func (r *SourceRepository) ListSources(ctx context.Context) ([]*core.SourceDescriptor, error) {
	var out []*core.SourceDescriptor
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sourceDescPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				desc, err := storage.UnmarshalDescriptor(val)
				if err != nil {
					return err
				}
				out = append(out, desc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForEachRow streams the rows of a source in RowID order.
func (r *SourceRepository) ForEachRow(ctx context.Context, id string, fn storage.RowFunc) error {
	if _, err := r.GetSource(ctx, id); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSourceRowPrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		n := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if n%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++
			item := iter.Item()
			rowID := rowIDFromKey(item.Key())
			err := item.Value(func(val []byte) error {
				vals, err := storage.UnmarshalValues(val)
				if err != nil {
					return err
				}
				return fn(rowID, vals)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
}
