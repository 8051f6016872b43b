package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/rowseek/loader"
)

// Format identifies a file format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatHTML   Format = "html"
)

// FormatOf returns the format implied by a path's extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".tsv", ".tab":
		return FormatTSV, true
	case ".json":
		return FormatJSON, true
	case ".ndjson", ".jsonl":
		return FormatNDJSON, true
	case ".html", ".htm":
		return FormatHTML, true
	}
	return "", false
}

// Options configure file readers.
type Options struct {
	// Encoding is the charset of CSV and TSV files.
	Encoding string
	HTML     HTMLOptions
}

// OpenFile opens path with the reader for its format.
func OpenFile(path string, opts Options) (loader.Reader, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r loader.Reader
	switch format {
	case FormatCSV:
		r, err = NewCSVReader(f, CSVOptions{Encoding: opts.Encoding})
	case FormatTSV:
		r, err = NewCSVReader(f, CSVOptions{Comma: '\t', Encoding: opts.Encoding})
	case FormatJSON, FormatNDJSON:
		r, err = NewJSONReader(f)
	case FormatHTML:
		r, err = NewHTMLReader(f, opts.HTML)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

// FileSource wraps one file as a loader.Source. The ID is the path relative to
// root with forward slashes; the display name is the base name without extension.
func FileSource(root, path string, opts Options) loader.Source {
	id := path
	if rel, err := filepath.Rel(root, path); err == nil {
		id = filepath.ToSlash(rel)
	}
	base := filepath.Base(path)
	return loader.Source{
		ID:     id,
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Origin: loader.OriginParsed,
		Open: func(context.Context) (loader.Reader, error) {
			return OpenFile(path, opts)
		},
	}
}

// Discover returns a source for every supported file under dir, in path order.
// patterns, when given, are filepath.Match globs applied to the base name.
func Discover(dir string, patterns []string, opts Options) ([]loader.Source, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := FormatOf(path); !ok {
			return nil
		}
		if len(patterns) > 0 && !matchesAny(d.Name(), patterns) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	out := make([]loader.Source, len(paths))
	for i, p := range paths {
		out[i] = FileSource(dir, p, opts)
	}
	return out, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
