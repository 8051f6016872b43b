package source

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestCSVReader(t *testing.T) {
	in := "\uFEFF Name , Email,Date of Birth\nAnna Wong,anna@example.com,1990-01-15\nJon Smith,,\n"
	r, err := NewCSVReader(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)

	cols, rows := readAll(t, r)
	assert.Equal(t, []string{"Name", "Email", "Date of Birth"}, cols)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Anna Wong", "anna@example.com", "1990-01-15"}, rows[0])
	assert.Equal(t, []any{"Jon Smith", "", ""}, rows[1])
}

func TestCSVReader_ShortRowsArePadded(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader("a,b,c\n1,2\n"), CSVOptions{})
	require.NoError(t, err)

	_, rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"1", "2", nil}, rows[0])
}

func TestCSVReader_LazyQuotes(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader("name,note\nAcme,says \"hi\" loudly\n"), CSVOptions{})
	require.NoError(t, err)

	_, rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, `says "hi" loudly`, rows[0][1])
}

func TestCSVReader_TSV(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader("a\tb\nx y\tz\n"), CSVOptions{Comma: '\t'})
	require.NoError(t, err)

	cols, rows := readAll(t, r)
	assert.Equal(t, []string{"a", "b"}, cols)
	assert.Equal(t, []any{"x y", "z"}, rows[0])
}

func TestCSVReader_LegacyCharset(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("name\nJosé Müller\n")
	require.NoError(t, err)

	r, err := NewCSVReader(bytes.NewReader([]byte(encoded)), CSVOptions{Encoding: "cp1252"})
	require.NoError(t, err)

	_, rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "José Müller", rows[0][0])
}

func TestCSVReader_Empty(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)

	cols, rows := readAll(t, r)
	assert.Empty(t, cols)
	assert.Empty(t, rows)
}

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"UTF-8", true, false},
		{"latin1", false, false},
		{"windows-1252", false, false},
		{"ISO-8859-2", false, false},
		{"klingon", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := LookupEncoding(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, enc == nil)
		})
	}
}
