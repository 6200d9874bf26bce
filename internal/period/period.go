// Package period resolves a report request into calendar-month intervals.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"closeout/internal/core"
)

// MinYear is the earliest year a report can be requested for.
const MinYear = 2000

// Resolver turns (year, months) requests into MonthIntervals.
type Resolver struct {
	// Location is the merchant time zone used for interval boundaries.
	Location *time.Location
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewResolver returns a Resolver for loc using the wall clock.
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{Location: loc, Now: time.Now}
}

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now time.Time) (int, time.Month) {
	if now.Month() == time.January {
		return now.Year() - 1, time.December
	}
	return now.Year(), now.Month() - 1
}

// Resolve validates the request and returns one interval per requested month
// in request order. Duplicates and out-of-order lists are kept as given.
// A nil year or empty months falls back to the previous month's values.
func (r *Resolver) Resolve(year *int, months []int) ([]core.MonthInterval, error) {
	now := r.now()
	defYear, defMonth := PreviousMonth(now)

	y := defYear
	if year != nil {
		y = *year
	}
	if y < MinYear || y > now.Year()+1 {
		return nil, fmt.Errorf("%w: %d must be between %d and %d", core.ErrInvalidYear, y, MinYear, now.Year()+1)
	}

	if len(months) == 0 {
		months = []int{int(defMonth)}
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("%w: %d must be between 1 and 12", core.ErrInvalidMonth, m)
		}
	}

	out := make([]core.MonthInterval, 0, len(months))
	for _, m := range months {
		mi, err := core.NewMonthInterval(y, time.Month(m), r.Location)
		if err != nil {
			return nil, err
		}
		out = append(out, mi)
	}
	return out, nil
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// ParseMonths parses "6" or "5,6,7". Empty input yields nil.
func ParseMonths(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		m, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number; use a single month (e.g. 6) or a comma-separated list (e.g. 1,2,3)", core.ErrInvalidMonth, p)
		}
		out = append(out, m)
	}
	return out, nil
}
