package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/rowseek"
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/loader"
	"github.com/poiesic/rowseek/results"
)

const maxCellWidth = 40

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func cell(v core.Value) string {
	s, err := v.Render()
	if err != nil {
		return "?"
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

// rowSummary renders up to maxCols non-empty columns as col=value pairs.
func rowSummary(row *core.Row, maxCols int) string {
	var parts []string
	hidden := 0
	row.Each(func(col string, v core.Value) bool {
		if v.IsAbsent() {
			return true
		}
		if maxCols > 0 && len(parts) >= maxCols {
			hidden++
			return true
		}
		parts = append(parts, col+"="+cell(v))
		return true
	})
	if hidden > 0 {
		parts = append(parts, fmt.Sprintf("(+%d more)", hidden))
	}
	return strings.Join(parts, "  ")
}

func printResults(w io.Writer, rs *results.ResultSet, maxCols int) error {
	if rs.Empty() {
		reason := string(rs.Reason)
		if reason == "" {
			reason = "no matches"
		}
		fmt.Fprintf(w, "No matches (%s); scanned %d rows in %d sources\n",
			strings.ReplaceAll(reason, "_", " "), rs.Stats.RowsScanned, rs.Stats.SourcesSearched)
	} else {
		shown := fmt.Sprintf("%d", rs.Len())
		if rs.Truncated {
			shown = fmt.Sprintf("%d of %d", rs.Len(), rs.Stats.Matched)
		}
		fmt.Fprintf(w, "%s matches from %d rows in %s\n",
			shown, rs.Stats.RowsScanned, rs.Stats.Elapsed.Round(time.Microsecond))

		tw := newTable(w)
		fmt.Fprintln(tw, "SCORE\tSOURCE\tROW\tFIELD\tMATCH\tRECORD")
		for _, m := range rs.Matches {
			field, text := m.Field, m.MatchedText
			if m.FilterOnly {
				field, text = "-", "-"
			}
			name := rs.SourceNames[m.Row.SourceID()]
			if name == "" {
				name = m.Row.SourceID()
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
				m.Score, name, m.Row.RowID(), field, text, rowSummary(m.Row, maxCols))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if rs.WarningCount > 0 {
		fmt.Fprintf(w, "%d warnings", rs.WarningCount)
		if rs.WarningCount > len(rs.Warnings) {
			fmt.Fprintf(w, " (%d shown)", len(rs.Warnings))
		}
		fmt.Fprintln(w)
		for i, warn := range rs.Warnings {
			if i == 5 {
				fmt.Fprintf(w, "  ...\n")
				break
			}
			fmt.Fprintf(w, "  %s\n", warn.String())
		}
	}
	return nil
}

func printSources(w io.Writer, sources []*core.SourceDescriptor, e *rowseek.Engine) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tROWS\tCOLUMNS\tORIGIN")
	for _, d := range sources {
		origin := ""
		if ds, ok := e.Dataset(d.ID); ok {
			origin = string(ds.Origin())
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID, d.Name, d.RowCount, len(d.Columns), origin)
	}
	return tw.Flush()
}

func printAnalysis(w io.Writer, ds *loader.Dataset, rows, maxCols int) error {
	h := ds.Header()
	fmt.Fprintf(w, "== %s (%s)\n", ds.Name(), ds.ID())
	fmt.Fprintf(w, "shape: %d rows x %d columns\n", ds.Len(), h.Len())
	fmt.Fprintf(w, "columns: %s\n", strings.Join(h.Names(), ", "))

	width := h.Len()
	if maxCols > 0 && width > maxCols {
		width = maxCols
	}
	if rows <= 0 || ds.Len() == 0 || width == 0 {
		fmt.Fprintln(w)
		return nil
	}

	tw := newTable(w)
	names := h.Names()[:width]
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for i := 0; i < rows && i < ds.Len(); i++ {
		row := ds.Row(i)
		cells := make([]string, width)
		for j := range cells {
			cells[j] = cell(row.At(j))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}
