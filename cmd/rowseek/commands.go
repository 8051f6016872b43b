package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/export"
	"github.com/poiesic/rowseek/filter"
	"github.com/urfave/cli/v2"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search loaded sources",
		ArgsUsage: "[query]",
		Action:    searchAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Text to match; may also be given as arguments",
			},
			&cli.BoolFlag{
				Name:  "exact",
				Usage: "Case-insensitive substring matching instead of fuzzy scoring",
			},
			&cli.IntFlag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Minimum fuzzy score 0-100 (default from config)",
			},
			&cli.StringSliceFlag{
				Name:  "column",
				Usage: "Restrict matching to these columns (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "source",
				Usage: "Restrict to these source IDs or names (repeatable)",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Earliest date, inclusive",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Latest date, inclusive; a bare date covers the whole day",
			},
			&cli.StringSliceFlag{
				Name:  "date-column",
				Usage: "Columns checked by --from/--to (default from config, else every date-like column)",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Exact column=value filter (repeatable)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Return at most this many matches (0 for all)",
			},
			&cli.IntFlag{
				Name:  "max-columns",
				Usage: "Columns shown per match (default from config)",
				Value: -1,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Also write results to a .csv or .json file",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Restore sources from the row cache instead of parsing them",
			},
		},
	}
}

// buildSpec turns search flags into a QuerySpec.
func buildSpec(c *cli.Context) (*core.QuerySpec, error) {
	cfg := configFrom(c)
	query := c.String("query")
	if query == "" && c.Args().Len() > 0 {
		query = strings.Join(c.Args().Slice(), " ")
	}

	var opts []core.QueryOption
	if query != "" {
		opts = append(opts, core.WithQuery(query))
	}
	if !c.Bool("exact") {
		threshold := cfg.Threshold
		if c.IsSet("threshold") {
			threshold = c.Int("threshold")
		}
		opts = append(opts, core.WithFuzzy(threshold))
	}
	if cols := c.StringSlice("column"); len(cols) > 0 {
		opts = append(opts, core.WithColumns(cols...))
	}
	if srcs := c.StringSlice("source"); len(srcs) > 0 {
		opts = append(opts, core.WithSources(srcs...))
	}

	from, to := c.String("from"), c.String("to")
	if from != "" || to != "" {
		var start, end *time.Time
		if from != "" {
			t, err := filter.ParseDate(from)
			if err != nil {
				return nil, &core.InvalidQueryError{Field: "date_range", Reason: fmt.Sprintf("cannot parse --from %q", from)}
			}
			start = &t
		}
		if to != "" {
			t, err := filter.ParseDate(to)
			if err != nil {
				return nil, &core.InvalidQueryError{Field: "date_range", Reason: fmt.Sprintf("cannot parse --to %q", to)}
			}
			end = &t
		}
		dateCols := c.StringSlice("date-column")
		if len(dateCols) == 0 {
			dateCols = cfg.DateColumns
		}
		opts = append(opts, core.WithDateRange(start, end, dateCols...))
	}

	for _, raw := range c.StringSlice("filter") {
		f, err := core.ParseFieldFilter(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithFilter(f.Column, f.Value))
	}
	if n := c.Int("limit"); n > 0 {
		opts = append(opts, core.WithLimit(n))
	}
	return core.NewQuerySpec(opts...), nil
}

func searchAction(c *cli.Context) error {
	spec, err := buildSpec(c)
	if err == nil {
		err = core.ValidateQuerySpec(spec)
	}
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	e, err := openLoaded(c, c.Bool("cache"))
	if err != nil {
		return err
	}
	defer e.Close()

	rs, err := e.Search(c.Context, spec)
	if err != nil {
		if errors.Is(err, core.ErrInvalidQuery) {
			return cli.Exit(err.Error(), 2)
		}
		return err
	}

	maxCols := c.Int("max-columns")
	if maxCols < 0 {
		maxCols = configFrom(c).MaxColumns
	}
	if err := printResults(c.App.Writer, rs, maxCols); err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		if err := export.WriteFile(out, rs); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Wrote %d matches to %s\n", rs.Len(), out)
	}
	return nil
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:   "sources",
		Usage:  "List sources with their row and column counts",
		Action: sourcesAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "List the row cache instead of parsing sources",
			},
		},
	}
}

func sourcesAction(c *cli.Context) error {
	e, err := openLoaded(c, c.Bool("cache"))
	if err != nil {
		return err
	}
	defer e.Close()
	return printSources(c.App.Writer, e.ListSources(), e)
}

func columnsCommand() *cli.Command {
	return &cli.Command{
		Name:   "columns",
		Usage:  "Show the columns of loaded sources",
		Action: columnsAction,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "source",
				Usage: "Only these source IDs (repeatable)",
			},
			&cli.IntFlag{
				Name:  "sample",
				Usage: "Print the N most widespread column names instead",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Restore sources from the row cache",
			},
		},
	}
}

func columnsAction(c *cli.Context) error {
	e, err := openLoaded(c, c.Bool("cache"))
	if err != nil {
		return err
	}
	defer e.Close()

	w := c.App.Writer
	if n := c.Int("sample"); n > 0 {
		for _, col := range e.SampleColumns(n) {
			fmt.Fprintln(w, col)
		}
		return nil
	}

	ids := c.StringSlice("source")
	if len(ids) == 0 {
		for _, d := range e.ListSources() {
			ids = append(ids, d.ID)
		}
	}
	for _, id := range ids {
		cols, ok := e.ColumnsFor(id)
		if !ok {
			return fmt.Errorf("source %q is not loaded", id)
		}
		fmt.Fprintf(w, "%s: %s\n", id, strings.Join(cols, ", "))
	}
	return nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:   "analyze",
		Usage:  "Show each source's shape, columns and first rows",
		Action: analyzeAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "rows",
				Usage: "Number of rows to preview per source",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "max-columns",
				Usage: "Columns shown in previews (default from config)",
				Value: -1,
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Restore sources from the row cache",
			},
		},
	}
}

func analyzeAction(c *cli.Context) error {
	e, err := openLoaded(c, c.Bool("cache"))
	if err != nil {
		return err
	}
	defer e.Close()

	maxCols := c.Int("max-columns")
	if maxCols < 0 {
		maxCols = configFrom(c).MaxColumns
	}
	for _, d := range e.ListSources() {
		ds, ok := e.Dataset(d.ID)
		if !ok {
			continue
		}
		if err := printAnalysis(c.App.Writer, ds, c.Int("rows"), maxCols); err != nil {
			return err
		}
	}
	return nil
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:   "ingest",
		Usage:  "Parse every source once and store the rows in the row cache",
		Action: ingestAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not print progress",
			},
		},
	}
}

func ingestAction(c *cli.Context) error {
	cfg := configFrom(c)
	if cfg.CacheDir == "" {
		return fmt.Errorf("ingest needs a cache directory (--cache-dir or cache_dir)")
	}

	var tracker *ProgressTracker
	var progress func(done, total int)
	if !c.Bool("quiet") {
		tracker = NewProgressTracker(c.App.ErrWriter)
		progress = tracker.Observe
	}
	e, err := openEngine(c, cfg.CacheDir, progress)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := loadEngine(c.Context, cfg, e, false)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return err
	}

	rows := 0
	for _, d := range report.Loaded {
		rows += d.RowCount
	}
	fmt.Fprintf(c.App.Writer, "Cached %d sources (%d rows) in %s; %d failed\n",
		len(report.Loaded), rows, cfg.CacheDir, len(report.Failed))
	return nil
}
