package report

import (
	"fmt"
	"strings"

	"closeout/internal/core"
)

const (
	TotalLabel      = "TOTAL"
	GrandTotalLabel = "GRAND TOTAL"

	// DefaultBusinessName is the first line of every report unless configured.
	DefaultBusinessName = "Belle Nails and Spa"
)

// Header is the fixed column header line.
var Header = []string{"date", "debit", "tip", "total"}

// Table is the rendering-neutral form of a report shared by every output
// format.
type Table struct {
	Title      string
	Subtitle   string
	Rows       []core.DailyRecord
	TotalLabel string
	Total      core.Totals
}

// MonthlyTable lays out a single-month report.
func MonthlyTable(business string, r core.MonthlyReport) Table {
	return Table{
		Title:      business,
		Subtitle:   "Sales for the month of " + r.Label(),
		Rows:       r.Rows,
		TotalLabel: TotalLabel,
		Total:      r.Total,
	}
}

// CombinedTable lays out a multi-month report.
func CombinedTable(business string, c core.CombinedReport) Table {
	return Table{
		Title:      business,
		Subtitle:   "Sales for the months of " + strings.Join(c.Labels(), ", "),
		Rows:       c.Rows(),
		TotalLabel: GrandTotalLabel,
		Total:      c.GrandTotal,
	}
}

// Records returns the header, one record per row and the totals record.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+2)
	out = append(out, append([]string(nil), Header...))
	for _, r := range t.Rows {
		out = append(out, []string{r.Date.String(), r.Debit.String(), r.Tip.String(), r.Total.String()})
	}
	out = append(out, []string{t.TotalLabel, t.Total.Debit.String(), t.Total.Tip.String(), t.Total.Total.String()})
	return out
}

// Values returns the full table, title lines included, as one string per cell.
func (t Table) Values() [][]string {
	out := [][]string{{t.Title}, {t.Subtitle}}
	return append(out, t.Records()...)
}

func (t Table) String() string {
	return fmt.Sprintf("%s (%d rows, %s %s)", t.Subtitle, len(t.Rows), t.TotalLabel, t.Total.Total)
}
