/*
Package factory names the catalog indicators and builds reports from JSON.

REGISTRY:
  Every indicator the API and CLI can evaluate is registered under a dotted
  name, <package>.<indicator>[.<table>]:

    enrollment.census
    utilization.admissions.acute
    incidents.per_100mm.falls
    team.admissions.acute
    center.enrolled.dual

  Scalar indicators produce one number per period. Group indicators produce
  a team or center table per period and are charted with one column per
  group.

REPORTS:
  A report definition lists indicators with a named window or explicit
  dates, and an optional series granularity:

  {
    "id": "board-q1",
    "name": "Board report",
    "items": [
      {"indicator": "enrollment.census", "window": "last_quarter"},
      {"indicator": "utilization.admissions.acute",
       "start": "2024-01-01", "end": "2024-03-31", "granularity": "monthly"}
    ]
  }

USAGE:
  reg := factory.Catalog(exec)
  f := factory.NewReportFactory(reg, generic.NewCalendar())
  report, err := f.ParseReport(jsonString)
  result, err := report.Run(ctx)

SEE ALSO:
  - generic/series.go: Series construction
  - api: HTTP surface over the registry
*/
package factory

import (
	"context"
	"fmt"
	"sort"

	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/metrics"
)

// =============================================================================
// DEFINITIONS
// =============================================================================

type Kind string

const (
	KindScalar Kind = "scalar"
	KindGroup  Kind = "group"
)

// GroupsFunc lists the groups a group indicator is charted over for p.
type GroupsFunc func(ctx context.Context, p generic.Period) ([]string, error)

// Definition is one registered indicator. Scalar is set for KindScalar;
// Group and Groups for KindGroup.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`

	Scalar generic.IndicatorFunc      `json:"-"`
	Group  generic.GroupIndicatorFunc `json:"-"`
	Groups GroupsFunc                 `json:"-"`
}

func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("indicator definition has no name")
	}
	switch d.Kind {
	case KindScalar:
		if d.Scalar == nil {
			return fmt.Errorf("indicator %q: scalar kind requires Scalar", d.Name)
		}
	case KindGroup:
		if d.Group == nil || d.Groups == nil {
			return fmt.Errorf("indicator %q: group kind requires Group and Groups", d.Name)
		}
	default:
		return fmt.Errorf("indicator %q: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// Value is the result of evaluating a definition over one period. Exactly
// one of Number and Table is set.
type Value struct {
	Number *float64       `json:"value,omitempty"`
	Table  *generic.Table `json:"table,omitempty"`
}

// Evaluate runs the indicator over p.
func (d Definition) Evaluate(ctx context.Context, p generic.Period) (Value, error) {
	var out Value
	var err error
	switch d.Kind {
	case KindScalar:
		var v float64
		if v, err = d.Scalar(ctx, p); err == nil {
			out.Number = &v
		}
	default:
		out.Table, err = d.Group(ctx, p)
	}
	if err != nil {
		metrics.IndicatorFailed(d.Name)
		return Value{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	return out, nil
}

// SeriesResult holds a scalar or group series.
type SeriesResult struct {
	Series      generic.Series       `json:"series,omitempty"`
	GroupSeries *generic.GroupSeries `json:"group_series,omitempty"`
}

// Table renders whichever series is set as Month plus value columns.
func (s SeriesResult) Table() *generic.Table {
	if s.GroupSeries != nil {
		return s.GroupSeries.Table()
	}
	return s.Series.Table()
}

// BuildSeries evaluates the indicator per sub-period of p.
func (d Definition) BuildSeries(ctx context.Context, p generic.Period, g generic.Granularity) (SeriesResult, error) {
	var out SeriesResult
	var err error
	switch d.Kind {
	case KindScalar:
		out.Series, err = generic.BuildSeries(ctx, d.Scalar, p, g)
	default:
		var groups []string
		if groups, err = d.Groups(ctx, p); err == nil {
			var gs generic.GroupSeries
			if gs, err = generic.BuildGroupSeries(ctx, d.Group, groups, p, g, generic.GroupOptions{}); err == nil {
				out.GroupSeries = &gs
			}
		}
	}
	if err != nil {
		metrics.IndicatorFailed(d.Name)
		return SeriesResult{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	return out, nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps indicator names to definitions. Build it fully before
// sharing; lookups are read-only.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds d. Names must be unique.
func (r *Registry) Register(d Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("indicator %q already registered", d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

func (r *Registry) mustRegister(d Definition) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns ErrUnknownIndicator for an unregistered name.
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", generic.ErrUnknownIndicator, name)
	}
	return d, nil
}

// List returns every definition sorted by name.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Len() int { return len(r.defs) }
