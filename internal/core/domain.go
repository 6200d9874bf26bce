package core

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical calendar date format used in reports.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without a time of day. The embedded time is
	// always midnight UTC so that equality and map keys work.
	Date struct {
		time.Time
	}

	// MonthInterval is one calendar month [Start, End) in a merchant location.
	MonthInterval struct {
		Year  int
		Month time.Month
		Start time.Time
		End   time.Time
	}

	// DailyRecord is one report row.
	DailyRecord struct {
		Date  Date
		Debit Money
		Tip   Money
		Total Money
	}

	// Totals is the DailyRecord-shaped sum of several rows.
	Totals struct {
		Debit Money
		Tip   Money
		Total Money
	}

	// MonthlyReport covers every day of one month.
	MonthlyReport struct {
		Interval MonthInterval
		Rows     []DailyRecord
		Total    Totals
	}

	// CombinedReport groups monthly reports in request order.
	CombinedReport struct {
		Months     []MonthlyReport
		GrandTotal Totals
		// Partial is set when some requested months failed and are missing.
		Partial bool
	}
)

var (
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrMalformedRecord    = errors.New("malformed record")
)

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// NewMonthInterval builds the interval for year/month in loc.
func NewMonthInterval(year int, month time.Month, loc *time.Location) (MonthInterval, error) {
	if month < time.January || month > time.December {
		return MonthInterval{}, fmt.Errorf("%w: %d must be between 1 and 12", ErrInvalidMonth, int(month))
	}
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return MonthInterval{
		Year:  year,
		Month: month,
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}, nil
}

// Label is the human month name and year, e.g. "June 2025".
func (mi MonthInterval) Label() string {
	return fmt.Sprintf("%s %d", mi.Month, mi.Year)
}

// Key is the sortable "2025-06" form used for file and sheet names.
func (mi MonthInterval) Key() string {
	return fmt.Sprintf("%d-%02d", mi.Year, int(mi.Month))
}

// Days returns the number of days in the month.
func (mi MonthInterval) Days() int {
	return NewDate(mi.Year, mi.Month+1, 0).Day()
}

// Contains reports whether the calendar date falls inside the month.
func (mi MonthInterval) Contains(d Date) bool {
	return d.Year() == mi.Year && d.Month() == mi.Month
}

// Add sums another row or total into t.
func (t Totals) Add(debit, tip, total Money) Totals {
	return Totals{
		Debit: t.Debit.Add(debit),
		Tip:   t.Tip.Add(tip),
		Total: t.Total.Add(total),
	}
}

// Plus returns the elementwise sum of t and o.
func (t Totals) Plus(o Totals) Totals {
	return t.Add(o.Debit, o.Tip, o.Total)
}

// Label returns the month label of the report.
func (r MonthlyReport) Label() string {
	return r.Interval.Label()
}

// Labels returns the month labels in request order.
func (c CombinedReport) Labels() []string {
	out := make([]string, len(c.Months))
	for i, m := range c.Months {
		out[i] = m.Label()
	}
	return out
}

// Rows concatenates every month's rows in request order.
func (c CombinedReport) Rows() []DailyRecord {
	n := 0
	for _, m := range c.Months {
		n += len(m.Rows)
	}
	out := make([]DailyRecord, 0, n)
	for _, m := range c.Months {
		out = append(out, m.Rows...)
	}
	return out
}
