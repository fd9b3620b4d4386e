/*
Package agg reads the pre-aggregated monthly indicator database.

IDENTIFIERS:
  Tables and columns are chosen by the caller, so every name is checked
  against the configured allow-list and quoted before it is composed into
  SQL. Anything not listed fails with generic.ErrUnknownIdentifier.

TEAM COLUMNS:
  Team breakdowns are stored as <team>_<indicator> columns:

    month       census  central_census  east_census
    2024-01-01  200     100             50

  TeamPlotTable(ctx, "enrollment", "census", p) returns month plus one
  column per configured team, titled with the team name.
*/
package agg

import (
	"context"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
)

// DefaultTeams are the team column prefixes of the aggregate database.
var DefaultTeams = []string{"None", "Central", "East", "North", "South"}

// MonthColumn is the first column of every plot table.
const MonthColumn = "month"

type Config struct {
	Tables   generic.AllowList
	Teams    []string         // DefaultTeams when empty
	Calendar generic.Calendar // window used for a zero period
}

type Agg struct {
	exec  generic.Executor
	cfg   Config
	teams []string
}

func New(exec generic.Executor, cfg Config) *Agg {
	teams := cfg.Teams
	if len(teams) == 0 {
		teams = DefaultTeams
	}
	return &Agg{exec: exec, cfg: cfg, teams: teams}
}

func (a *Agg) Teams() []string { return a.teams }

// PlotTable returns month and cols from table for the months in p, oldest
// first. A zero p means the last year.
func (a *Agg) PlotTable(ctx context.Context, table string, cols []string, p generic.Period) (*generic.Table, error) {
	if err := a.cfg.Tables.Columns(table, cols...); err != nil {
		return nil, err
	}
	selects := make([]string, len(cols))
	for i, c := range cols {
		selects[i] = generic.QuoteIdent(c)
	}
	return a.plot(ctx, table, selects, p)
}

// TeamPlotTable returns month and one column per team for col.
func (a *Agg) TeamPlotTable(ctx context.Context, table, col string, p generic.Period) (*generic.Table, error) {
	selects := make([]string, len(a.teams))
	for i, team := range a.teams {
		name := strings.ToLower(team) + "_" + col
		if err := a.cfg.Tables.Columns(table, name); err != nil {
			return nil, err
		}
		selects[i] = generic.QuoteIdent(name) + " AS " + generic.QuoteIdent(team)
	}
	return a.plot(ctx, table, selects, p)
}

func (a *Agg) plot(ctx context.Context, table string, selects []string, p generic.Period) (*generic.Table, error) {
	if p.IsZero() {
		p = a.cfg.Calendar.LastYear()
	}
	sql := `SELECT ` + MonthColumn + `, ` + strings.Join(selects, ", ") + `
		FROM ` + generic.QuoteIdent(table) + `
		WHERE ` + MonthColumn + ` BETWEEN :start AND :end
		ORDER BY ` + MonthColumn
	return a.exec.Table(ctx, generic.PeriodQuery(sql, p), generic.WithDateColumns(MonthColumn))
}
