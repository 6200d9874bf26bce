package report

import (
	"errors"
	"fmt"
	"strings"

	"closeout/internal/core"
)

// MonthError ties a failure to the month it aborted.
type MonthError struct {
	Interval core.MonthInterval
	Err      error
}

func (e *MonthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Interval.Label(), e.Err)
}

func (e *MonthError) Unwrap() error {
	return e.Err
}

// MonthOutcome is the result of one month pipeline.
type MonthOutcome struct {
	Interval core.MonthInterval
	Report   core.MonthlyReport
	Warnings int
	Dropped  int
	Err      error
}

// Assembly is the shape handed to the serializers.
type Assembly struct {
	Monthly  []core.MonthlyReport
	Combined *core.CombinedReport
	Failures []*MonthError
}

// Assemble collects successes and failures in request order. A combined
// report is built whenever more than one month was requested and at least
// one succeeded; it is marked Partial when some months are missing.
func Assemble(outcomes []MonthOutcome) Assembly {
	var a Assembly
	for _, o := range outcomes {
		if o.Err != nil {
			var me *MonthError
			if !errors.As(o.Err, &me) {
				me = &MonthError{Interval: o.Interval, Err: o.Err}
			}
			a.Failures = append(a.Failures, me)
			continue
		}
		a.Monthly = append(a.Monthly, o.Report)
	}

	if len(outcomes) > 1 && len(a.Monthly) > 0 {
		c := Combine(a.Monthly)
		c.Partial = len(a.Failures) > 0
		a.Combined = &c
	}
	return a
}

// Combine concatenates monthly reports and sums their totals.
func Combine(months []core.MonthlyReport) core.CombinedReport {
	c := core.CombinedReport{Months: append([]core.MonthlyReport(nil), months...)}
	for _, m := range months {
		c.GrandTotal = c.GrandTotal.Plus(m.Total)
	}
	return c
}

// PartialError reports a run where some months failed.
type PartialError struct {
	Succeeded []string
	Failed    []*MonthError
}

func (e *PartialError) Error() string {
	failed := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		failed[i] = f.Error()
	}
	if len(e.Succeeded) == 0 {
		return "no report generated: " + strings.Join(failed, "; ")
	}
	return fmt.Sprintf("partial report: succeeded [%s], failed [%s]",
		strings.Join(e.Succeeded, ", "), strings.Join(failed, "; "))
}

// Unwrap exposes every month error to errors.Is / errors.As.
func (e *PartialError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}
