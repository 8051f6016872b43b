package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/rowseek/loader"
)

// HTMLOptions selects the table to read.
type HTMLOptions struct {
	// Selector matches candidate tables; empty means "table".
	Selector string
	// Index picks among the matches.
	Index int
}

// NewHTMLReader reads one table of an HTML document. The header comes from the
// first row containing <th> cells, or the first row when there is none. Cell text
// is whitespace-collapsed.
func NewHTMLReader(r io.Reader, opts HTMLOptions) (loader.Reader, error) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	sel := opts.Selector
	if sel == "" {
		sel = "table"
	}
	tables := doc.Find(sel)
	if opts.Index < 0 || opts.Index >= tables.Length() {
		return nil, fmt.Errorf("%w: %q index %d", ErrNoTable, sel, opts.Index)
	}
	table := tables.Eq(opts.Index)

	var header []string
	var rows [][]any
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// skip rows of nested tables
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		ths := tr.ChildrenFiltered("th")
		tds := tr.ChildrenFiltered("td")
		if header == nil && (ths.Length() > 0 || tds.Length() > 0) {
			cells := ths
			if cells.Length() == 0 {
				cells = tds
			}
			header = cellTexts(cells)
			return
		}
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}
		texts := cellTexts(cells)
		row := make([]any, max(len(texts), len(header)))
		for i, t := range texts {
			row[i] = t
		}
		rows = append(rows, row)
	})
	return loader.FromRows(header, rows), nil
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(c.Text()), " "))
	})
	return out
}
