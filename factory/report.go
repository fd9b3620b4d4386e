package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ReportJSON is the JSON representation of a report definition.
type ReportJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []ItemJSON `json:"items"`
}

// ItemJSON selects one indicator and its period. Window takes precedence
// over Start/End when both are given.
type ItemJSON struct {
	Indicator   string `json:"indicator"`
	Window      string `json:"window,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Granularity string `json:"granularity,omitempty"` // monthly, quarterly; empty for a single value
}

// =============================================================================
// REPORTS
// =============================================================================

// Report is a validated, runnable report definition.
type Report struct {
	ID    string
	Name  string
	Items []Item
}

type Item struct {
	Definition  Definition
	Period      generic.Period
	Window      generic.Window // empty for explicit dates
	Granularity generic.Granularity
}

// IsSeries is true when the item is evaluated per sub-period.
func (it Item) IsSeries() bool { return it.Granularity != "" }

// Result holds one evaluated report.
type Result struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Items []ItemResult `json:"items"`
}

type ItemResult struct {
	Indicator string        `json:"indicator"`
	Kind      Kind          `json:"kind"`
	Start     generic.Date  `json:"start"`
	End       generic.Date  `json:"end"`
	Value     *Value        `json:"result,omitempty"`
	Series    *SeriesResult `json:"series,omitempty"`
}

// Table renders the item as Month plus values for a series, the team table
// for a group value, or a single Value row for a scalar.
func (ir ItemResult) Table() *generic.Table {
	switch {
	case ir.Series != nil:
		return ir.Series.Table()
	case ir.Value != nil && ir.Value.Table != nil:
		return ir.Value.Table
	default:
		t := generic.NewTable(generic.ValueColumn)
		if ir.Value != nil && ir.Value.Number != nil {
			t.Append(*ir.Value.Number)
		}
		return t
	}
}

// Run evaluates every item in order. The first error aborts the report.
func (r *Report) Run(ctx context.Context) (*Result, error) {
	out := &Result{ID: r.ID, Name: r.Name, Items: make([]ItemResult, 0, len(r.Items))}
	for _, it := range r.Items {
		ir := ItemResult{
			Indicator: it.Definition.Name,
			Kind:      it.Definition.Kind,
			Start:     it.Period.Start,
			End:       it.Period.End,
		}
		if it.IsSeries() {
			s, err := it.Definition.BuildSeries(ctx, it.Period, it.Granularity)
			if err != nil {
				return nil, fmt.Errorf("report %s: %w", r.ID, err)
			}
			ir.Series = &s
		} else {
			v, err := it.Definition.Evaluate(ctx, it.Period)
			if err != nil {
				return nil, fmt.Errorf("report %s: %w", r.ID, err)
			}
			ir.Value = &v
		}
		out.Items = append(out.Items, ir)
	}
	return out, nil
}

// =============================================================================
// REPORT FACTORY
// =============================================================================

// ReportFactory converts JSON report definitions into Reports. Windows are
// resolved against the factory's calendar when the report is parsed.
type ReportFactory struct {
	registry      *Registry
	calendar      generic.Calendar
	maxSubPeriods int
}

func NewReportFactory(registry *Registry, calendar generic.Calendar) *ReportFactory {
	return &ReportFactory{registry: registry, calendar: calendar, maxSubPeriods: generic.DefaultMaxSubPeriods}
}

// WithMaxSubPeriods caps how many sub-periods a series item may span.
// Zero or less removes the cap.
func (f *ReportFactory) WithMaxSubPeriods(n int) *ReportFactory {
	f.maxSubPeriods = n
	return f
}

// ParseReport parses a JSON string into a Report.
func (f *ReportFactory) ParseReport(jsonStr string) (*Report, error) {
	var rj ReportJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("%w: report JSON: %v", generic.ErrInvalidReport, err)
	}
	return f.FromJSON(rj)
}

// FromJSON validates rj and resolves its indicators and periods.
func (f *ReportFactory) FromJSON(rj ReportJSON) (*Report, error) {
	if rj.ID == "" {
		return nil, fmt.Errorf("%w: report id is required", generic.ErrInvalidReport)
	}
	if len(rj.Items) == 0 {
		return nil, fmt.Errorf("%w: report %s has no items", generic.ErrInvalidReport, rj.ID)
	}

	report := &Report{ID: rj.ID, Name: rj.Name, Items: make([]Item, 0, len(rj.Items))}
	for i, ij := range rj.Items {
		item, err := f.parseItem(ij)
		if err != nil {
			return nil, fmt.Errorf("report %s item %d: %w", rj.ID, i, err)
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

func (f *ReportFactory) parseItem(ij ItemJSON) (Item, error) {
	def, err := f.registry.Get(ij.Indicator)
	if err != nil {
		return Item{}, err
	}
	item := Item{Definition: def}

	switch {
	case ij.Window != "":
		w, err := generic.ParseWindow(ij.Window)
		if err != nil {
			return Item{}, err
		}
		if item.Period, err = f.calendar.Window(w); err != nil {
			return Item{}, err
		}
		item.Window = w
	case ij.Start != "" || ij.End != "":
		if item.Period, err = generic.ParsePeriod(ij.Start, ij.End); err != nil {
			return Item{}, err
		}
	default:
		item.Period = f.calendar.SeriesWindow()
	}

	if ij.Granularity != "" {
		if item.Granularity, err = generic.ParseGranularity(ij.Granularity); err != nil {
			return Item{}, err
		}
		if err := generic.CheckSeriesLength(item.Period, item.Granularity, f.maxSubPeriods); err != nil {
			return Item{}, err
		}
	}
	return item, nil
}

// ToJSON converts a Report back to its definition. Items parsed from a
// window keep the window; the rest carry explicit dates.
func (f *ReportFactory) ToJSON(r *Report) ReportJSON {
	rj := ReportJSON{ID: r.ID, Name: r.Name}
	for _, it := range r.Items {
		ij := ItemJSON{Indicator: it.Definition.Name, Granularity: string(it.Granularity)}
		if it.Window != "" {
			ij.Window = string(it.Window)
		} else {
			ij.Start, ij.End = it.Period.Strings()
		}
		rj.Items = append(rj.Items, ij)
	}
	return rj
}
