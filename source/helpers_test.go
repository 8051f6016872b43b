package source

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/poiesic/rowseek/loader"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r loader.Reader) ([]string, [][]any) {
	t.Helper()
	ctx := context.Background()
	defer r.Close()
	cols, err := r.Columns(ctx)
	require.NoError(t, err)
	var rows [][]any
	for {
		row, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return cols, rows
}
