package generic

import (
	"fmt"
	"sort"
	"strings"
)

// AllowList holds the table and column identifiers that may be composed into
// SQL text. Identifiers cannot be bind parameters, so anything not listed
// here is rejected before a query is built.
type AllowList struct {
	tables map[string]map[string]bool
}

// NewAllowList builds an allow-list from table -> columns. Names are
// compared case-sensitively.
func NewAllowList(tables map[string][]string) AllowList {
	a := AllowList{tables: make(map[string]map[string]bool, len(tables))}
	for t, cols := range tables {
		set := make(map[string]bool, len(cols))
		for _, c := range cols {
			set[c] = true
		}
		a.tables[t] = set
	}
	return a
}

// Table returns ErrUnknownIdentifier unless table is listed.
func (a AllowList) Table(table string) error {
	if _, ok := a.tables[table]; !ok {
		return fmt.Errorf("%w: table %q", ErrUnknownIdentifier, table)
	}
	return nil
}

// Columns returns ErrUnknownIdentifier unless table and every column are listed.
func (a AllowList) Columns(table string, cols ...string) error {
	if err := a.Table(table); err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: no columns for %q", ErrUnknownIdentifier, table)
	}
	for _, c := range cols {
		if !a.tables[table][c] {
			return fmt.Errorf("%w: column %q.%q", ErrUnknownIdentifier, table, c)
		}
	}
	return nil
}

// Tables lists the allowed tables, sorted.
func (a AllowList) Tables() []string {
	out := make([]string, 0, len(a.tables))
	for t := range a.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// QuoteIdent double-quotes a validated identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
