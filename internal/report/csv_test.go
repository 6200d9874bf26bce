package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closeout/internal/core"
)

func TestCSV_Monthly(t *testing.T) {
	r := monthWith(t, time.June, 2, "147.78")
	out := string(CSV(MonthlyTable("Belle Nails and Spa", r)))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 3+30+1)
	assert.Equal(t, "Belle Nails and Spa", lines[0])
	assert.Equal(t, "Sales for the month of June 2025", lines[1])
	assert.Equal(t, "date,debit,tip,total", lines[2])
	assert.Equal(t, "2025-06-01,0.00,0.00,0.00", lines[3])
	assert.Equal(t, "2025-06-02,147.78,0.00,147.78", lines[4])
	assert.Equal(t, "TOTAL,147.78,0.00,147.78", lines[len(lines)-1])
}

func TestCSV_Combined(t *testing.T) {
	c := Combine([]core.MonthlyReport{
		monthWith(t, time.May, 1, "1.00"),
		monthWith(t, time.June, 1, "2.00"),
	})
	out := string(CSV(CombinedTable("Shop, Inc.", c)))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 3+31+30+1)
	assert.Equal(t, "Shop, Inc.", lines[0], "title lines are written verbatim")
	assert.Equal(t, "Sales for the months of May 2025, June 2025", lines[1])
	assert.Equal(t, "2025-05-01,1.00,0.00,1.00", lines[3])
	assert.Equal(t, "2025-05-31,0.00,0.00,0.00", lines[33])
	assert.Equal(t, "2025-06-01,2.00,0.00,2.00", lines[34])
	assert.Equal(t, "GRAND TOTAL,3.00,0.00,3.00", lines[len(lines)-1])
}

func TestCSV_RoundTrip(t *testing.T) {
	tables := map[string]Table{}
	tables["monthly"] = MonthlyTable("Belle Nails and Spa", monthWith(t, time.February, 28, "12.34"))
	tables["combined"] = CombinedTable("Belle Nails and Spa", Combine([]core.MonthlyReport{
		monthWith(t, time.March, 3, "0.01"),
		monthWith(t, time.April, 30, "9999.99"),
	}))
	for name, tbl := range tables {
		t.Run(name, func(t *testing.T) {
			first := CSV(tbl)
			parsed, err := ParseCSV(bytes.NewReader(first))
			require.NoError(t, err)

			assert.Equal(t, tbl.Title, parsed.Title)
			assert.Equal(t, tbl.Subtitle, parsed.Subtitle)
			assert.Equal(t, tbl.TotalLabel, parsed.TotalLabel)
			require.Len(t, parsed.Rows, len(tbl.Rows))
			for i := range tbl.Rows {
				assert.Equal(t, tbl.Rows[i].Date, parsed.Rows[i].Date)
				assert.True(t, tbl.Rows[i].Total.Equal(parsed.Rows[i].Total))
			}
			assert.True(t, tbl.Total.Total.Equal(parsed.Total.Total))

			assert.Equal(t, string(first), string(CSV(parsed)))
		})
	}
}

func TestCSV_Idempotent(t *testing.T) {
	tbl := MonthlyTable("Belle Nails and Spa", monthWith(t, time.June, 2, "147.78"))
	assert.Equal(t, CSV(tbl), CSV(tbl))
}

func TestParseCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no header":     "Shop\nSales\n",
		"bad header":    "Shop\nSales\nday,debit,tip,total\nTOTAL,0.00,0.00,0.00\n",
		"bad date":      "Shop\nSales\ndate,debit,tip,total\n2025-13-01,0.00,0.00,0.00\nTOTAL,0.00,0.00,0.00\n",
		"bad amount":    "Shop\nSales\ndate,debit,tip,total\n2025-06-01,x,0.00,0.00\nTOTAL,0.00,0.00,0.00\n",
		"missing total": "Shop\nSales\ndate,debit,tip,total\n2025-06-01,0.00,0.00,0.00\n",
		"short record":  "Shop\nSales\ndate,debit,tip,total\n2025-06-01,0.00\nTOTAL,0.00,0.00,0.00\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrBadReport)
		})
	}
}
