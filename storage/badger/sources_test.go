package badger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRows(t *testing.T, id string, names ...string) (*core.SourceDescriptor, []*core.Row) {
	t.Helper()
	h, err := core.NewHeader([]string{"Name", "Age"})
	require.NoError(t, err)
	rows := make([]*core.Row, len(names))
	for i, n := range names {
		rows[i], err = core.NewRow(id, i, h, []core.Value{core.StringValue(n), core.IntValue(int64(20 + i))})
		require.NoError(t, err)
	}
	desc := &core.SourceDescriptor{
		ID:       id,
		Name:     id + " export",
		Columns:  h.Names(),
		RowCount: len(rows),
		LoadedAt: time.Now().UTC(),
	}
	return desc, rows
}

func newRepo(t *testing.T) storage.SourceRepository {
	t.Helper()
	repo, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndGetSource(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	desc, rows := makeRows(t, "clients", "Anna Wong", "Jon Smith")

	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	got, err := repo.GetSource(ctx, "clients")
	require.NoError(t, err)
	assert.Equal(t, "clients export", got.Name)
	assert.Equal(t, []string{"Name", "Age"}, got.Columns)
	assert.Equal(t, 2, got.RowCount)

	var names []string
	var ids []int
	err = repo.ForEachRow(ctx, "clients", func(rowID int, values []core.Value) error {
		ids = append(ids, rowID)
		names = append(names, values[0].Str())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids)
	assert.Equal(t, []string{"Anna Wong", "Jon Smith"}, names)
}

func TestSaveSourceReplaces(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	desc, rows := makeRows(t, "clients", "a", "b", "c")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))
	desc, rows = makeRows(t, "clients", "z")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	count := 0
	err := repo.ForEachRow(ctx, "clients", func(_ int, values []core.Value) error {
		count++
		assert.Equal(t, "z", values[0].Str())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMissingSource(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetSource(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteSource(ctx, "nope"), storage.ErrNotFound)
	err = repo.ForEachRow(ctx, "nope", func(int, []core.Value) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSource(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	desc, rows := makeRows(t, "clients", "a")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	require.NoError(t, repo.DeleteSource(ctx, "clients"))
	_, err := repo.GetSource(ctx, "clients")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListSources(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	for _, id := range []string{"visits", "clients", "staff"} {
		desc, rows := makeRows(t, id, "x")
		require.NoError(t, repo.SaveSource(ctx, desc, rows))
	}

	list, err := repo.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "clients", list[0].ID)
	assert.Equal(t, "staff", list[1].ID)
	assert.Equal(t, "visits", list[2].ID)
}

func TestForEachRowStopsOnError(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	desc, rows := makeRows(t, "clients", "a", "b", "c")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	seen := 0
	err := repo.ForEachRow(ctx, "clients", func(int, []core.Value) error {
		seen++
		return io.ErrUnexpectedEOF
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, seen)
}

func TestCachedReader(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	desc, rows := makeRows(t, "clients", "Anna Wong", "Jon Smith")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	r := storage.NewCachedReader(repo, "clients")
	defer r.Close()

	cols, err := r.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Age"}, cols)
	assert.Equal(t, "clients export", r.Descriptor().Name)

	first, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StringValue("Anna Wong"), first[0])
	_, err = r.Next(ctx)
	require.NoError(t, err)
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCachedReader_RowCountMismatch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	desc, rows := makeRows(t, "clients", "a", "b")
	require.NoError(t, repo.SaveSource(ctx, desc, rows))

	// drop one row behind the descriptor's back
	impl := repo.(*SourceRepository)
	require.NoError(t, impl.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Delete(makeSourceRowKey("clients", 1))
	}, true))

	_, err := storage.NewCachedReader(repo, "clients").Columns(ctx)
	assert.ErrorIs(t, err, storage.ErrCorruptSource)
}
