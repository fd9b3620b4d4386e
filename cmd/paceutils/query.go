package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/whatscottcodes/paceutils/export"
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/plot"
)

// periodFlags are shared by the commands that evaluate indicators.
type periodFlags struct {
	window string
	start  string
	end    string
}

func (f *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.window, "window", "", "Named window ("+windowNames()+")")
	cmd.Flags().StringVar(&f.start, "start", "", "Period start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "Period end, YYYY-MM-DD")
	cmd.MarkFlagsMutuallyExclusive("window", "start")
	cmd.MarkFlagsMutuallyExclusive("window", "end")
}

func (f *periodFlags) resolve(cal generic.Calendar, def generic.Period) (generic.Period, error) {
	switch {
	case f.window != "":
		w, err := generic.ParseWindow(f.window)
		if err != nil {
			return generic.Period{}, err
		}
		return cal.Window(w)
	case f.start != "" || f.end != "":
		return generic.ParsePeriod(f.start, f.end)
	default:
		return def, nil
	}
}

func windowNames() string {
	names := make([]string, len(generic.Windows))
	for i, w := range generic.Windows {
		names[i] = string(w)
	}
	return strings.Join(names, ", ")
}

// catalog opens the database and builds the registry over it.
func (a *app) catalog() (*factory.Registry, error) {
	exec, err := a.executor()
	if err != nil {
		return nil, err
	}
	return factory.Catalog(exec), nil
}

// =============================================================================
// CATALOG COMMANDS
// =============================================================================

func listCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered indicators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.catalog()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tDESCRIPTION")
			for _, d := range reg.List() {
				if strings.HasPrefix(d.Name, prefix) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Kind, d.Description)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only names starting with prefix")
	return cmd
}

func periodsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "Show the named windows for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WINDOW\tSTART\tEND")
			for _, w := range generic.Windows {
				p, err := a.calendar.Window(w)
				if err != nil {
					return err
				}
				start, end := p.Strings()
				fmt.Fprintf(tw, "%s\t%s\t%s\n", w, start, end)
			}
			return tw.Flush()
		},
	}
}

func indicatorCmd(a *app) *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "indicator NAME",
		Short: "Evaluate one indicator over a period (default last month)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.catalog()
			if err != nil {
				return err
			}
			def, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			p, err := pf.resolve(a.calendar, a.calendar.LastMonth())
			if err != nil {
				return err
			}
			v, err := def.Evaluate(cmd.Context(), p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", def.Name, p)
			if v.Table != nil {
				return printTable(out, v.Table)
			}
			fmt.Fprintln(out, generic.NewValue(*v.Number).String())
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

func seriesCmd(a *app) *cobra.Command {
	var pf periodFlags
	var granularity string
	cmd := &cobra.Command{
		Use:   "series NAME",
		Short: "Evaluate one indicator per month or quarter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.catalog()
			if err != nil {
				return err
			}
			def, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			p, err := pf.resolve(a.calendar, a.calendar.SeriesWindow())
			if err != nil {
				return err
			}
			g, err := generic.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			if err := generic.CheckSeriesLength(p, g, a.cfg.MaxSeriesPeriods); err != nil {
				return err
			}
			s, err := def.BuildSeries(cmd.Context(), p, g)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), s.Table())
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&granularity, "granularity", "monthly", "monthly or quarterly")
	return cmd
}

func plotCmd(a *app) *cobra.Command {
	var pf periodFlags
	var req plot.Request
	var summary, filter string
	cmd := &cobra.Command{
		Use:   "plot TABLE DATE_COL",
		Short: "Summarize a reporting table by month",
		Long: "Summarize a reporting table by month.\n\nTables: " + strings.Join(plot.Tables(), ", ") +
			"\nSummaries: count, sum, avg, pmpm, percent",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Table, req.Date, req.Summary = args[0], args[1], plot.Summary(summary)
			if filter != "" {
				col, val, ok := strings.Cut(filter, "=")
				if !ok {
					return fmt.Errorf("%w: filter must be column=value", generic.ErrInvalidArgument)
				}
				req.Filter = &plot.Filter{Column: col, Value: val}
			}
			exec, err := a.executor()
			if err != nil {
				return err
			}
			p, err := pf.resolve(a.calendar, a.calendar.SeriesWindow())
			if err != nil {
				return err
			}
			if err := generic.CheckSeriesLength(p, generic.Monthly, a.cfg.MaxSeriesPeriods); err != nil {
				return err
			}
			s, err := plot.New(exec).Frame(cmd.Context(), req, p)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), s.Table())
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&summary, "summary", "count", "count, sum, avg, pmpm or percent")
	cmd.Flags().StringVar(&req.Value, "value", "", "Value column for sum and avg")
	cmd.Flags().StringVar(&filter, "filter", "", "Restrict rows, column=value")
	return cmd
}

// =============================================================================
// EXPORT
// =============================================================================

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export REPORT.json",
		Short: "Run a report definition and write it to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			reg, err := a.catalog()
			if err != nil {
				return err
			}
			reports := factory.NewReportFactory(reg, a.calendar).WithMaxSubPeriods(a.cfg.MaxSeriesPeriods)
			report, err := reports.ParseReport(string(body))
			if err != nil {
				return err
			}
			if out == "" {
				out = report.ID + ".xlsx"
			}
			result, err := report.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeExport(out, result); err != nil {
				return err
			}
			a.log.Sugar.Infow("report exported", "report", report.ID, "items", len(result.Items), "path", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, .xlsx or .parquet (default <id>.xlsx)")
	return cmd
}

func writeExport(path string, result *factory.Result) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".parquet" {
		return fmt.Errorf("unsupported export extension %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if ext == ".parquet" {
		return export.WriteSeriesParquet(f, export.ReportRows(result))
	}
	return export.WriteWorkbook(f, export.ReportSheets(result))
}

// printTable writes t as aligned columns.
func printTable(w io.Writer, t *generic.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = generic.NewValue(v).String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
