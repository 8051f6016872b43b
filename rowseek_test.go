package rowseek

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/loader"
	"github.com/poiesic/rowseek/metrics"
	"github.com/poiesic/rowseek/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientCols = []string{"Name", "Email", "Date of Birth"}

func clientRows() [][]any {
	return [][]any{
		{"Anna Wong", "anna@example.com", "1990-01-15"},
		{"Jon Smith", "jon@example.com", "1985-07-02"},
		{"Maria Garcia", nil, "NaT"},
	}
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_LoadAndSearch(t *testing.T) {
	e := newEngine(t, WithPoolSize(2))
	ctx := context.Background()

	desc, err := e.LoadSource(ctx, "clients.csv", "clients", loader.FromRows(clientCols, clientRows()))
	require.NoError(t, err)
	assert.Equal(t, 3, desc.RowCount)

	rs, err := e.Search(ctx, core.NewQuerySpec(core.WithQuery("Ana Wong"), core.WithFuzzy(80)))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "Anna Wong", rs.Matches[0].MatchedText)
	assert.Equal(t, 94, rs.Matches[0].Score)
	assert.Equal(t, "clients", rs.Records()[0]["source_name"])
}

func TestEngine_Introspection(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, err := e.LoadSource(ctx, "clients", "", loader.FromRows(clientCols, clientRows()))
	require.NoError(t, err)
	_, err = e.LoadSource(ctx, "visits", "", loader.FromRows([]string{"Name", "Visit Date"}, [][]any{{"Anna Wong", "2024-01-03"}}))
	require.NoError(t, err)

	list := e.ListSources()
	require.Len(t, list, 2)
	assert.Equal(t, "clients", list[0].ID)
	assert.Equal(t, "visits", list[1].ID)

	cols, ok := e.ColumnsFor("visits")
	require.True(t, ok)
	assert.Equal(t, []string{"Name", "Visit Date"}, cols)

	assert.Equal(t, "Name", e.SampleColumns(1)[0])
	all := e.AllColumns()
	assert.Len(t, all, 4)
	assert.Equal(t, []string{"clients", "visits"}, all["Name"])
	assert.Equal(t, []string{"clients"}, all["Email"])
	assert.Equal(t, []string{"visits"}, all["Visit Date"])

	ds, ok := e.Dataset("clients")
	require.True(t, ok)
	assert.Equal(t, 3, ds.Len())

	assert.True(t, e.Unload("visits"))
	_, ok = e.ColumnsFor("visits")
	assert.False(t, ok)
	assert.False(t, e.Unload("visits"))
	assert.Equal(t, []string{"clients"}, e.AllColumns()["Name"])
}

func TestEngine_SearchCaseInsensitiveTurkish(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, err := e.LoadSource(ctx, "clients", "", loader.FromRows([]string{"Name"}, [][]any{
		{"YILMAZ"},
		{"Öztürk"},
	}))
	require.NoError(t, err)

	rs, err := e.Search(ctx, core.NewQuerySpec(core.WithQuery("Yılmaz"), core.WithFuzzy(80)))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, 100, rs.Matches[0].Score)
	assert.Equal(t, "YILMAZ", rs.Matches[0].MatchedText)

	rs, err = e.Search(ctx, core.NewQuerySpec(core.WithQuery("yılmaz")))
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestEngine_LoadSourcesReportsFailures(t *testing.T) {
	e := newEngine(t, WithLoadConcurrency(2), WithLoadTimeout(time.Second))
	sources := []loader.Source{
		{ID: "good", Open: func(context.Context) (loader.Reader, error) {
			return loader.FromRows(clientCols, clientRows()), nil
		}},
		{ID: "broken", Open: func(context.Context) (loader.Reader, error) {
			return nil, errors.New("permission denied")
		}},
	}

	report, err := e.LoadSources(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, report.Loaded, 1)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "broken", report.Failed[0].SourceID)
	assert.Len(t, e.ListSources(), 1)
}

func TestEngine_CacheRoundTrip(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	first := newEngine(t, WithCache(repo))
	_, err = first.LoadSource(ctx, "clients", "Clients", loader.FromRows(clientCols, clientRows()))
	require.NoError(t, err)

	cached, err := first.CachedSources(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, 3, cached[0].RowCount)

	second := newEngine(t, WithCache(repo))
	report, err := second.Restore(ctx)
	require.NoError(t, err)
	require.Len(t, report.Loaded, 1)
	assert.Empty(t, report.Failed)

	ds, ok := second.Dataset("clients")
	require.True(t, ok)
	assert.Equal(t, loader.OriginCache, ds.Origin())
	assert.Equal(t, "Clients", ds.Name())

	rs, err := second.Search(ctx, core.NewQuerySpec(core.WithQuery("Jon Smith"), core.WithFuzzy(95)))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, 1, rs.Matches[0].Row.RowID())

	// absent cells stay absent after the round trip
	v, _ := ds.Row(2).Get("Date of Birth")
	assert.True(t, v.IsAbsent())

	require.NoError(t, second.Evict(ctx, "clients"))
	require.NoError(t, second.Evict(ctx, "clients"))
	cached, err = second.CachedSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestEngine_CacheDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e, err := New(WithCacheDir(dir))
	require.NoError(t, err)
	_, err = e.LoadSource(ctx, "clients", "", loader.FromRows(clientCols, clientRows()))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e = newEngine(t, WithCacheDir(dir))
	report, err := e.Restore(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Loaded, 1)
}

func TestEngine_NoCache(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.Restore(ctx)
	assert.ErrorIs(t, err, ErrNoCache)
	_, err = e.CachedSources(ctx)
	assert.ErrorIs(t, err, ErrNoCache)
	assert.ErrorIs(t, e.Evict(ctx, "x"), ErrNoCache)
}

func TestEngine_MissingMarkers(t *testing.T) {
	e := newEngine(t, WithMissingMarkers("n/a"))
	_, err := e.LoadSource(context.Background(), "s", "", loader.FromRows([]string{"a"}, [][]any{{"n/a"}, {"NaN"}}))
	require.NoError(t, err)

	ds, _ := e.Dataset("s")
	v, _ := ds.Row(0).Get("a")
	assert.True(t, v.IsAbsent())
	v, _ = ds.Row(1).Get("a")
	assert.Equal(t, "NaN", v.Str())
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(t, WithMetrics(metrics.NewRecorder(reg)))
	ctx := context.Background()
	_, err := e.LoadSource(ctx, "clients", "", loader.FromRows(clientCols, clientRows()))
	require.NoError(t, err)
	_, err = e.Search(ctx, core.NewQuerySpec(core.WithQuery("Anna Wong"), core.WithFuzzy(80)))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "rowseek_searches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngine_Closed(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Search(context.Background(), core.NewQuerySpec())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.LoadSource(context.Background(), "x", "", loader.FromRows([]string{"a"}, nil))
	assert.ErrorIs(t, err, ErrClosed)
}
