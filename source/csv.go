package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// CSVOptions controls how delimited text is read.
type CSVOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Encoding names a legacy charset such as "windows-1252" or "latin1". Empty
	// or "utf-8" reads the input as UTF-8.
	Encoding string
}

// aliases covers spellings common in exports that the IANA index does not know.
var aliases = map[string]encoding.Encoding{
	"cp1250": charmap.Windows1250,
	"cp1252": charmap.Windows1252,
	"latin1": charmap.ISO8859_1,
	"latin2": charmap.ISO8859_2,
	"cp437":  charmap.CodePage437,
	"cp850":  charmap.CodePage850,
}

// LookupEncoding resolves a charset name. A nil encoding with a nil error means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	if enc, ok := aliases[n]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// CSVReader reads a delimited file with a header row. Values are yielded as
// strings; short records are padded with nil.
type CSVReader struct {
	closer  io.Closer
	r       *csv.Reader
	columns []string
}

// NewCSVReader wraps r. If r is an io.Closer it is closed by Close.
func NewCSVReader(r io.Reader, opts CSVOptions) (*CSVReader, error) {
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	var in io.Reader = r
	if enc != nil {
		in = transform.NewReader(r, enc.NewDecoder())
	}
	cr := csv.NewReader(in)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	out := &CSVReader{r: cr}
	if c, ok := r.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

func (c *CSVReader) Columns(context.Context) ([]string, error) {
	if c.columns != nil {
		return append([]string(nil), c.columns...), nil
	}
	hdr, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols[i] = strings.TrimSpace(h)
	}
	c.columns = cols
	return append([]string(nil), cols...), nil
}

func (c *CSVReader) Next(context.Context) ([]any, error) {
	for {
		rec, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && rec[0] == "" && len(c.columns) > 1 {
			// whitespace-only line
			continue
		}
		width := max(len(rec), len(c.columns))
		out := make([]any, width)
		for i, v := range rec {
			out[i] = v
		}
		return out, nil
	}
}

func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
