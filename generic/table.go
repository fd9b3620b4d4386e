package generic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ROWS AND TABLES
// =============================================================================

// Row is one result tuple in SELECT-list order.
type Row []any

// Table is a result set with named columns. Column names and order come
// from the query's SELECT list and aliases.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: []Row{}}
}

// TableOptions control how Executor.Table shapes a result.
type TableOptions struct {
	DateColumns []string
}

type TableOption func(*TableOptions)

// WithDateColumns parses the named columns into Date. NULL cells stay nil.
func WithDateColumns(names ...string) TableOption {
	return func(o *TableOptions) { o.DateColumns = append(o.DateColumns, names...) }
}

// ApplyTableOptions folds opts into a TableOptions value.
func ApplyTableOptions(opts ...TableOption) TableOptions {
	var o TableOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row; it must have one cell per column.
func (t *Table) Append(cells ...any) {
	t.Rows = append(t.Rows, Row(cells))
}

// ColumnIndex returns ErrColumnNotFound for an unknown name.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// Column returns every cell of the named column in row order.
func (t *Table) Column(name string) ([]any, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Float64s returns the named column as numbers; NULL reads as 0.
func (t *Table) Float64s(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = NormalizeNull(c).Float64()
	}
	return out, nil
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, name string) (Value, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= len(t.Rows) {
		return Value{}, fmt.Errorf("row %d out of range [0, %d)", i, len(t.Rows))
	}
	return NewValue(t.Rows[i][idx]), nil
}

// Records returns one map per row, keyed by column name.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = r[j]
		}
		out[i] = rec
	}
	return out
}

// ParseDates converts the named columns to Date in place. Driver time values
// and YYYY-MM-DD text are accepted; empty text reads as NULL.
func (t *Table) ParseDates(names ...string) error {
	for _, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return err
		}
		for _, r := range t.Rows {
			d, err := toDate(r[idx])
			if err != nil {
				return fmt.Errorf("column %q: %w", name, err)
			}
			if d.IsZero() {
				r[idx] = nil
				continue
			}
			r[idx] = d
		}
	}
	return nil
}

func toDate(v any) (Date, error) {
	switch x := v.(type) {
	case nil:
		return Date{}, nil
	case Date:
		return x, nil
	case time.Time:
		return DateOf(x), nil
	case string:
		return parseCellDate(x)
	case []byte:
		return parseCellDate(string(x))
	default:
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, v)
	}
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := t.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{t.Columns, rows})
}

func parseCellDate(s string) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return Date{}, nil
	}
	return ParseDate(s)
}
