/*
Package export writes indicator results to files.

FORMATS:
  - xlsx: one sheet per table, bold filtered header row, approximate
    column widths (excelize)
  - parquet: long-format series rows, zstd compressed (parquet-go)

USAGE:
  f, err := export.NewWorkbook([]export.Sheet{
      export.SeriesSheet("Census", census),
      export.GroupSeriesSheet("Admissions by team", admissions),
  })
  err = f.SaveAs("board.xlsx")
*/
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet: a title and the table rendered under a header row.
type Sheet struct {
	Title string
	Table *generic.Table
}

func TableSheet(title string, t *generic.Table) Sheet {
	return Sheet{Title: title, Table: t}
}

func SeriesSheet(title string, s generic.Series) Sheet {
	return Sheet{Title: title, Table: s.Table()}
}

func GroupSeriesSheet(title string, s generic.GroupSeries) Sheet {
	return Sheet{Title: title, Table: s.Table()}
}

// ReportSheets renders one sheet per report item, titled by indicator.
func ReportSheets(r *factory.Result) []Sheet {
	sheets := make([]Sheet, 0, len(r.Items))
	for _, it := range r.Items {
		sheets = append(sheets, TableSheet(it.Indicator, it.Table()))
	}
	return sheets
}

const (
	maxSheetName = 31
	minColWidth  = 10
	maxColWidth  = 40
)

// NewWorkbook builds a workbook with sheets in order. Titles are cleaned of
// characters Excel rejects, truncated, and made unique.
func NewWorkbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := uniqueName(sheetName(s.Title, i), used)
		if i == 0 {
			err = f.SetSheetName("Sheet1", name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, s.Table, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteWorkbook builds the workbook and writes it to w.
func WriteWorkbook(w io.Writer, sheets []Sheet) error {
	f, err := NewWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t *generic.Table, header int) error {
	if t == nil || len(t.Columns) == 0 {
		return nil
	}

	widths := make([]float64, len(t.Columns))
	for c, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(sheet, cell, col); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
		widths[c] = float64(len(col)) + 2
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	_ = f.SetCellStyle(sheet, "A1", last, header)
	_ = f.AutoFilter(sheet, "A1:"+last, nil)

	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			v = cellValue(v)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
			if w := float64(len(fmt.Sprint(v))); c < len(widths) && w > widths[c] {
				widths[c] = w
			}
		}
	}

	for c, w := range widths {
		w = min(max(w, minColWidth), maxColWidth)
		col, _ := excelize.ColumnNumberToName(c + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return nil
}

// cellValue keeps numbers numeric and writes dates in their text form.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case generic.Date:
		return x.String()
	case []byte:
		return string(x)
	default:
		return v
	}
}

var invalidSheetRe = regexp.MustCompile(`[\\/:*?\[\]]+`)

func sheetName(title string, i int) string {
	name := strings.TrimSpace(invalidSheetRe.ReplaceAllString(title, "_"))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", i+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
