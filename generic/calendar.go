package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CALENDAR - Standard reporting windows relative to "today"
// =============================================================================

// Calendar computes reporting windows relative to its clock. The zero value
// uses the system clock.
type Calendar struct {
	now func() time.Time
}

// NewCalendar returns a calendar on the system clock.
func NewCalendar() Calendar { return Calendar{now: time.Now} }

// FixedCalendar returns a calendar where every day is today.
func FixedCalendar(today Date) Calendar {
	return Calendar{now: func() time.Time { return today.Time() }}
}

// Today returns the current calendar day.
func (c Calendar) Today() Date {
	if c.now == nil {
		return DateOf(time.Now())
	}
	return DateOf(c.now())
}

// MonthToDate is the first of the current month through today.
func (c Calendar) MonthToDate() Period {
	today := c.Today()
	return Period{Start: today.StartOfMonth(), End: today}
}

// LastMonth is the previous calendar month.
func (c Calendar) LastMonth() Period { return c.LastMonths(1) }

// LastMonths spans the n full calendar months before the current month.
// n below 1 is treated as 1.
func (c Calendar) LastMonths(n int) Period {
	if n < 1 {
		n = 1
	}
	first := c.Today().StartOfMonth()
	return Period{Start: first.AddMonths(-n), End: first.AddDays(-1)}
}

func (c Calendar) LastThreeMonths() Period { return c.LastMonths(3) }
func (c Calendar) LastSixMonths() Period   { return c.LastMonths(6) }
func (c Calendar) LastYear() Period        { return c.LastMonths(12) }

// LastQuarterNumber returns the quarter before the current one.
func (c Calendar) LastQuarterNumber() Quarter { return QuarterOf(c.Today()).Previous() }

// LastQuarter returns the bounds of the quarter before the current one.
func (c Calendar) LastQuarter() Period {
	p, _ := c.LastQuarterNumber().Period()
	return p
}

// QuarterToDate is the first day of the current quarter through today.
func (c Calendar) QuarterToDate() Period {
	today := c.Today()
	return Period{Start: quarterStart(today), End: today}
}

// SeriesWindow is the default window for time series: thirteen full months
// ending with the previous month.
func (c Calendar) SeriesWindow() Period {
	last := c.LastMonth()
	return Period{Start: last.Start.AddYears(-1), End: last.End}
}

// OrSeriesWindow returns p, or SeriesWindow when p is zero.
func (c Calendar) OrSeriesWindow(p Period) Period {
	if p.IsZero() {
		return c.SeriesWindow()
	}
	return p
}

// =============================================================================
// NAMED WINDOWS - Used by report definitions and the HTTP API
// =============================================================================

type Window string

const (
	WindowMonthToDate   Window = "month_to_date"
	WindowLastMonth     Window = "last_month"
	WindowLastThree     Window = "last_3_months"
	WindowLastSix       Window = "last_6_months"
	WindowLastYear      Window = "last_year"
	WindowLastQuarter   Window = "last_quarter"
	WindowQuarterToDate Window = "quarter_to_date"
)

// Windows lists every named window in display order.
var Windows = []Window{
	WindowMonthToDate,
	WindowLastMonth,
	WindowLastThree,
	WindowLastSix,
	WindowLastYear,
	WindowLastQuarter,
	WindowQuarterToDate,
}

// ParseWindow accepts the names above, case-insensitively.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Windows {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// Window resolves a named window against the calendar's today.
func (c Calendar) Window(w Window) (Period, error) {
	switch w {
	case WindowMonthToDate:
		return c.MonthToDate(), nil
	case WindowLastMonth:
		return c.LastMonth(), nil
	case WindowLastThree:
		return c.LastThreeMonths(), nil
	case WindowLastSix:
		return c.LastSixMonths(), nil
	case WindowLastYear:
		return c.LastYear(), nil
	case WindowLastQuarter:
		return c.LastQuarter(), nil
	case WindowQuarterToDate:
		return c.QuarterToDate(), nil
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrUnknownWindow, w)
	}
}
