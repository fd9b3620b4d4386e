package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
)

// SeriesRow is one point of a series in long form. Scalar series use
// generic.ValueColumn as the column; group series use the team column.
type SeriesRow struct {
	Indicator string  `parquet:"indicator,dict"`
	Column    string  `parquet:"column,dict"`
	Month     string  `parquet:"month"`
	Value     float64 `parquet:"value"`
}

// SeriesRows flattens a series result labelled with indicator.
func SeriesRows(indicator string, s factory.SeriesResult) []SeriesRow {
	if s.GroupSeries != nil {
		return groupRows(indicator, *s.GroupSeries)
	}
	rows := make([]SeriesRow, 0, len(s.Series))
	for _, p := range s.Series {
		rows = append(rows, SeriesRow{
			Indicator: indicator,
			Column:    generic.ValueColumn,
			Month:     p.Label.String(),
			Value:     p.Value,
		})
	}
	return rows
}

func groupRows(indicator string, gs generic.GroupSeries) []SeriesRow {
	rows := make([]SeriesRow, 0, len(gs.Labels)*len(gs.Columns))
	for i, label := range gs.Labels {
		for j, col := range gs.Columns {
			rows = append(rows, SeriesRow{
				Indicator: indicator,
				Column:    col,
				Month:     label.String(),
				Value:     gs.Values[i][j],
			})
		}
	}
	return rows
}

// ReportRows collects the series items of a report result. Single-value
// items are skipped.
func ReportRows(r *factory.Result) []SeriesRow {
	var rows []SeriesRow
	for _, it := range r.Items {
		if it.Series != nil {
			rows = append(rows, SeriesRows(it.Indicator, *it.Series)...)
		}
	}
	return rows
}

// WriteSeriesParquet writes rows as a single zstd compressed row group.
func WriteSeriesParquet(w io.Writer, rows []SeriesRow) error {
	pw := parquet.NewGenericWriter[SeriesRow](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
