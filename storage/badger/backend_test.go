package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rowseek/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true, nil)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	backend, err := OpenBackend(dir, false, nil)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false, nil)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true, nil)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
	assert.NoError(t, backend.Close())

	err = backend.WithTx(func(*badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestWriteRowsAndDropPrefix(t *testing.T) {
	backend, err := OpenBackend("", true, nil)
	require.NoError(t, err)
	defer backend.Close()

	keys := [][]byte{makeSourceRowKey("a", 0), makeSourceRowKey("a", 1), makeSourceRowKey("b", 0)}
	i := 0
	err = backend.WriteRows(context.Background(), func() ([]byte, []byte, bool) {
		if i >= len(keys) {
			return nil, nil, false
		}
		k := keys[i]
		i++
		return k, []byte("v"), true
	})
	require.NoError(t, err)

	require.NoError(t, backend.DropPrefix(makeSourceRowPrefix("a")))

	err = backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(keys[0])
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		_, err = tx.Get(keys[2])
		assert.NoError(t, err)
		return nil
	}, false)
	require.NoError(t, err)
}

func TestRowKeysSortByRowID(t *testing.T) {
	k1 := makeSourceRowKey("clients", 2)
	k2 := makeSourceRowKey("clients", 10)
	assert.Less(t, string(k1), string(k2))
	assert.Equal(t, 10, rowIDFromKey(k2))
	assert.Equal(t, makeSourceRowPrefix("clients"), k1[:len(k1)-8])
}
