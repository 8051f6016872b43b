package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const clientsCSV = `Name,Email,Date of Birth,Status
Anna Wong,anna@example.com,1990-04-12,active
Bob Smith,bob@example.com,1985-11-02,inactive
Ana Wang,ana.w@example.com,,active
`

const ordersJSON = `[
  {"order": 1, "customer": "Anna Wong", "placed": "2024-01-15"},
  {"order": 2, "customer": "Carl Jones", "placed": "2024-02-01"}
]`

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clients.csv"), []byte(clientsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte(ordersJSON), 0o644))
	return dir
}

// run executes the CLI with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ROWSEEK_CONFIG", "")

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"rowseek"}, args...))
	return out.String(), err
}

func TestSearch_Fuzzy(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "--data-dir", dir, "search", "--threshold", "85", "Anna Wong")
	require.NoError(t, err)
	assert.Contains(t, out, "Anna Wong")
	assert.Contains(t, out, "clients")
	assert.Contains(t, out, "orders")
	assert.NotContains(t, out, "Bob Smith")
}

func TestSearch_ThresholdZeroFromFlag(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "search", "--threshold", "0", "--source", "clients", "Anna Wong")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob Smith")
}

func TestSearch_FilterOnly(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "search", "--filter", "Status=inactive")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob Smith")
	assert.NotContains(t, out, "Anna Wong")
}

func TestSearch_NoMatches(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "search", "--exact", "zzzz")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches (no rows met threshold)")
}

func TestSearch_InvalidQuery(t *testing.T) {
	dir := writeDataDir(t)

	_, err := run(t, "-d", dir, "search", "--threshold", "150", "anna")
	require.Error(t, err)
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	_, err = run(t, "-d", dir, "search", "--threshold=-5", "anna")
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	_, err = run(t, "-d", dir, "search", "--from", "not a date", "anna")
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	_, err = run(t, "-d", dir, "search", "--filter", "novalue", "anna")
	require.Error(t, err)
}

func TestSearch_ExportJSON(t *testing.T) {
	dir := writeDataDir(t)
	outPath := filepath.Join(t.TempDir(), "hits.json")

	out, err := run(t, "-d", dir, "search", "--exact", "--source", "clients", "--out", outPath, "wong")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 matches to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Anna Wong", records[0]["Name"])
	assert.Equal(t, "Name", records[0]["matched_field"])
}

func TestIngestThenSearchFromCache(t *testing.T) {
	dir := writeDataDir(t)
	cache := t.TempDir()

	out, err := run(t, "-d", dir, "--cache-dir", cache, "ingest", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached 2 sources (5 rows)")

	// Remove the files so only the cache can answer.
	require.NoError(t, os.Remove(filepath.Join(dir, "clients.csv")))
	require.NoError(t, os.Remove(filepath.Join(dir, "orders.json")))

	out, err = run(t, "-d", dir, "--cache-dir", cache, "search", "--cache", "--exact", "smith")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob Smith")

	out, err = run(t, "-d", dir, "--cache-dir", cache, "sources", "--cache")
	require.NoError(t, err)
	assert.Contains(t, out, "clients.csv")
	assert.Contains(t, out, "cache")
}

func TestSearch_CacheWithoutDir(t *testing.T) {
	dir := writeDataDir(t)
	t.Setenv("ROWSEEK_CACHE_DIR", "")

	_, err := run(t, "-d", dir, "search", "--cache", "anna")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache directory")
}

func TestSources(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "clients.csv")
	assert.Contains(t, out, "orders.json")
}

func TestColumns(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "columns", "--source", "clients.csv")
	require.NoError(t, err)
	assert.Equal(t, "clients.csv: Name, Email, Date of Birth, Status\n", out)

	_, err = run(t, "-d", dir, "columns", "--source", "missing.csv")
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "analyze", "--rows", "1", "--max-columns", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "shape: 3 rows x 4 columns")
	assert.Contains(t, out, "shape: 2 rows x 3 columns")
	assert.Contains(t, out, "Anna Wong")
	assert.NotContains(t, out, "Bob Smith")
}

func TestConfigCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := run(t, "-d", dir, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "data_dir: "+dir)
	assert.Contains(t, out, "threshold: 80")
}

func TestConfigFile(t *testing.T) {
	dir := writeDataDir(t)
	path := filepath.Join(t.TempDir(), "rowseek.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nthreshold: 95\n"), 0o644))

	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold: 95")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := setupLogger(tt.level, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
