package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The reporting window every indicator is computed over
// =============================================================================

// Period is an inclusive [Start, End] reporting window.
//
// Examples:
//   - Last month:    2024-02-01 - 2024-02-29
//   - Q4 2023:       2023-10-01 - 2023-12-31
//   - Month to date: 2024-03-01 - today
type Period struct {
	Start Date
	End   Date
}

// NewPeriod returns ErrInvalidPeriod when end is before start.
func NewPeriod(start, end Date) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: missing bound", ErrInvalidPeriod)
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// ParsePeriod builds a Period from two YYYY-MM-DD strings.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Strings returns the canonical text form of both bounds.
func (p Period) Strings() (string, string) { return p.Start.String(), p.End.String() }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Params binds the period as :start and :end.
func (p Period) Params() Params {
	return Params{"start": p.Start.String(), "end": p.End.String()}
}

// ShiftBack moves both bounds back by months. A bound sitting on the last
// day of its month stays on the last day of the target month; any other day
// is clamped to the target month's length.
func (p Period) ShiftBack(months int) Period {
	return Period{Start: shiftBound(p.Start, -months), End: shiftBound(p.End, -months)}
}

// PreviousMonth is the same window one month earlier.
func (p Period) PreviousMonth() Period { return p.ShiftBack(1) }

// PreviousQuarter is the same window three months earlier.
func (p Period) PreviousQuarter() Period { return p.ShiftBack(3) }

func shiftBound(d Date, months int) Date {
	moved := d.AddMonths(months)
	if d.IsEndOfMonth() {
		return moved.EndOfMonth()
	}
	return moved
}

// =============================================================================
// QUARTER
// =============================================================================

// Quarter identifies a calendar quarter; Q is 1..4.
type Quarter struct {
	Q    int
	Year int
}

// QuarterOf returns the quarter containing d.
func QuarterOf(d Date) Quarter { return Quarter{Q: d.Quarter(), Year: d.Year()} }

// Previous wraps Q1 to Q4 of the prior year.
func (q Quarter) Previous() Quarter {
	if q.Q == 1 {
		return Quarter{Q: 4, Year: q.Year - 1}
	}
	return Quarter{Q: q.Q - 1, Year: q.Year}
}

// Period returns the first to last calendar day of the quarter.
func (q Quarter) Period() (Period, error) { return QuarterBounds(q.Q, q.Year) }

func (q Quarter) String() string { return fmt.Sprintf("Q%d %d", q.Q, q.Year) }

// QuarterBounds maps quarter 1..4 to months [1-3], [4-6], [7-9], [10-12].
func QuarterBounds(quarter, year int) (Period, error) {
	if quarter < 1 || quarter > 4 {
		return Period{}, fmt.Errorf("%w: %d", ErrInvalidQuarter, quarter)
	}
	first := time.Month(3*quarter - 2)
	last := time.Month(3 * quarter)
	return Period{Start: StartOfMonth(year, first), End: EndOfMonth(year, last)}, nil
}

func quarterStart(d Date) Date {
	return StartOfMonth(d.Year(), time.Month(3*d.Quarter()-2))
}
