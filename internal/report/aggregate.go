package report

import (
	"closeout/internal/core"
	"closeout/internal/normalize"
)

// Aggregate buckets fragments into one row per calendar day of the month.
// Fragments dated outside the month are dropped and counted. The month total
// is the sum of the already-rounded rows.
func Aggregate(mi core.MonthInterval, frags []normalize.Fragment) (core.MonthlyReport, int) {
	rows := make([]core.DailyRecord, mi.Days())
	for i := range rows {
		rows[i] = core.DailyRecord{Date: core.NewDate(mi.Year, mi.Month, i+1)}
	}

	dropped := 0
	for _, f := range frags {
		if !mi.Contains(f.Date) {
			dropped++
			continue
		}
		r := &rows[f.Date.Day()-1]
		r.Debit = r.Debit.Add(f.Debit)
		r.Tip = r.Tip.Add(f.Tip)
		r.Total = r.Total.Add(f.Total)
	}

	var total core.Totals
	for _, r := range rows {
		total = total.Add(r.Debit, r.Tip, r.Total)
	}
	return core.MonthlyReport{Interval: mi, Rows: rows, Total: total}, dropped
}
