package results

import (
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/rowseek/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(t *testing.T, source string, id int, cols []string, raw ...any) *core.Row {
	t.Helper()
	h, err := core.NewHeader(cols)
	require.NoError(t, err)
	vals := make([]core.Value, len(raw))
	for i, r := range raw {
		vals[i], _ = core.ValueOf(r, core.DefaultMissingMarkers)
	}
	r, err := core.NewRow(source, id, h, vals)
	require.NoError(t, err)
	return r
}

func TestCollector_DedupKeepsHighest(t *testing.T) {
	r := row(t, "a", 0, []string{"name", "alias"}, "Anna Wong", "Ana")
	c := NewCollector()
	c.Add(core.Match{Row: r, Field: "alias", Score: 80}, 0)
	c.Add(core.Match{Row: r, Field: "name", Score: 94}, 0)
	c.Add(core.Match{Row: r, Field: "alias", Score: 94}, 0)

	matches, truncated := c.Build(0)
	require.Len(t, matches, 1)
	assert.False(t, truncated)
	assert.Equal(t, "name", matches[0].Field, "equal score keeps the first")
	assert.Equal(t, 94, matches[0].Score)
}

func TestCollector_Ordering(t *testing.T) {
	cols := []string{"name"}
	c := NewCollector()
	// source "b" loaded first (ordinal 0), "a" second (ordinal 1)
	c.Add(core.Match{Row: row(t, "a", 3, cols, "x"), Score: 90}, 1)
	c.Add(core.Match{Row: row(t, "b", 5, cols, "x"), Score: 90}, 0)
	c.Add(core.Match{Row: row(t, "b", 1, cols, "x"), Score: 90}, 0)
	c.Add(core.Match{Row: row(t, "a", 0, cols, "x"), Score: 100}, 1)

	matches, _ := c.Build(0)
	got := make([][2]any, len(matches))
	for i, m := range matches {
		got[i] = [2]any{m.Row.SourceID(), m.Row.RowID()}
	}
	assert.Equal(t, [][2]any{{"a", 0}, {"b", 1}, {"b", 5}, {"a", 3}}, got)
}

func TestCollector_Limit(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 5; i++ {
		c.Add(core.Match{Row: row(t, "a", i, []string{"n"}, "x"), Score: 100 - i}, 0)
	}
	matches, truncated := c.Build(2)
	assert.True(t, truncated)
	require.Len(t, matches, 2)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, 99, matches[1].Score)

	_, truncated = c.Build(5)
	assert.False(t, truncated)
}

func TestCollector_WarningsCapped(t *testing.T) {
	c := NewCollector()
	for i := 0; i < MaxWarnings+25; i++ {
		c.Warn(core.FieldCoercionWarning{SourceID: "a", RowID: i})
	}
	kept, total := c.Warnings()
	assert.Len(t, kept, MaxWarnings)
	assert.Equal(t, MaxWarnings+25, total)
}

func TestResultSet_Records(t *testing.T) {
	rs := New()
	assert.NotEqual(t, uuid.Nil, rs.QueryID)
	rs.SourceNames["a"] = "Clients Export"
	rs.Matches = []core.Match{
		{Row: row(t, "a", 2, []string{"name", "email", "score"}, "Anna Wong", nil, 7), Field: "name", Score: 94, MatchedText: "Anna Wong"},
		{Row: row(t, "b", 0, []string{"name", "phone"}, "Ana Wong", "555"), Score: 100, FilterOnly: true},
	}

	recs := rs.Records()
	require.Len(t, recs, 2)

	assert.Equal(t, "a", recs[0][KeySource])
	assert.Equal(t, "Clients Export", recs[0][KeySourceName])
	assert.Equal(t, 2, recs[0][KeyRowID])
	assert.Equal(t, 94, recs[0][KeyScore])
	assert.Equal(t, "name", recs[0][KeyMatchedField])
	assert.Equal(t, "Anna Wong", recs[0]["name"])
	assert.Nil(t, recs[0]["email"])
	assert.Equal(t, int64(7), recs[0]["score (row)"], "colliding row column is renamed")

	assert.Equal(t, "b", recs[1][KeySourceName], "unknown source name falls back to id")
	assert.Equal(t, "", recs[1][KeyMatchedField])

	assert.Equal(t, []string{
		KeySource, KeySourceName, KeyRowID, KeyScore, KeyMatchedField, KeyMatchedValue,
		"name", "email", "score (row)", "phone",
	}, rs.Columns())
}

func TestResultSet_Empty(t *testing.T) {
	rs := New()
	assert.True(t, rs.Empty())
	assert.Equal(t, 0, rs.Len())
	assert.Empty(t, rs.Records())
	assert.Len(t, rs.Columns(), 6)
}
