package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"closeout/internal/clover"
	"closeout/internal/core"
	"closeout/internal/log"
	"closeout/internal/report"
)

type staticSource map[string][]clover.RawBatch

func (s staticSource) FetchBatches(_ context.Context, mi core.MonthInterval) ([]clover.RawBatch, error) {
	return s[mi.Key()], nil
}

func result(t *testing.T, months ...int) *report.Result {
	t.Helper()
	src := staticSource{
		"2025-06": {{
			"id":          "B1",
			"createdTime": int64(1748858400000),
			"batchDetails": map[string]any{"batchTotals": map[string]any{
				"sales": map[string]any{"total": int64(14778)},
				"tips":  map[string]any{"total": int64(1928), "count": int64(1)},
			}},
		}},
	}
	svc := report.NewService(src, report.Options{
		Location: time.UTC,
		Logger:   log.Discard(),
		Now:      func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) },
	})
	year := 2025
	res, err := svc.Run(context.Background(), report.Request{Year: &year, Months: months})
	require.NoError(t, err)
	return res
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", FormatPDF, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFileNames(t *testing.T) {
	may, _ := core.NewMonthInterval(2025, time.May, time.UTC)
	june, _ := core.NewMonthInterval(2025, time.June, time.UTC)

	assert.Equal(t, "closeout_monthly_data_2025_06.csv", MonthlyFileName(june, FormatCSV))
	assert.Equal(t, "closeout_combined_months_2025_05_2025_06.xlsx", CombinedFileName([]core.MonthInterval{may, june}, FormatXLSX))

	res := result(t, 5, 6)
	assert.Equal(t, "2025-05", res.Singles[0].SheetName())
	assert.Equal(t, "Combined 2025-05..2025-06", res.Combined.SheetName())
	assert.Equal(t, "closeout_combined_months_2025_05_2025_06.pdf", FileName(*res.Combined, FormatPDF))
}

func TestWriteFile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriter_CSV(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Format: FormatCSV, Logger: log.Discard()}

	outs, err := w.Write(context.Background(), result(t, 5, 6))
	require.NoError(t, err)
	require.Len(t, outs, 3)

	assert.Equal(t, filepath.Join(dir, "closeout_monthly_data_2025_05.csv"), outs[0].Path)
	assert.Equal(t, filepath.Join(dir, "closeout_monthly_data_2025_06.csv"), outs[1].Path)
	assert.Equal(t, filepath.Join(dir, "closeout_combined_months_2025_05_2025_06.csv"), outs[2].Path)
	assert.Equal(t, "147.78", outs[2].Totals.Total.String())

	data, err := os.ReadFile(outs[1].Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2025-06-02,128.50,19.28,147.78\n")
	assert.True(t, strings.HasSuffix(string(data), "TOTAL,128.50,19.28,147.78\n"))
}

func TestWriter_OverrideNamesPrimaryReport(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Format: FormatCSV, Override: "june.csv", Logger: log.Discard()}

	outs, err := w.Write(context.Background(), result(t, 6))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, filepath.Join(dir, "june.csv"), outs[0].Path)

	w.Override = filepath.Join(dir, "sub", "all.csv")
	outs, err = w.Write(context.Background(), result(t, 5, 6))
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, filepath.Join(dir, "closeout_monthly_data_2025_05.csv"), outs[0].Path)
	assert.Equal(t, w.Override, outs[2].Path)
}

func TestBuildXLSX(t *testing.T) {
	res := result(t, 5, 6)
	data, err := BuildXLSX(res.All())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"2025-05", "2025-06", "Combined 2025-05..2025-06"}, f.GetSheetList())

	title, err := f.GetCellValue("2025-06", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Belle Nails and Spa", title)

	header, err := f.GetRows("2025-06")
	require.NoError(t, err)
	assert.Equal(t, report.Header, header[2])

	day, err := f.GetCellValue("2025-06", "A5")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", day)
	total, err := f.GetCellValue("2025-06", "D5", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "147.78", total)

	label, err := f.GetCellValue("2025-06", "A34")
	require.NoError(t, err)
	assert.Equal(t, report.TotalLabel, label)

	grand, err := f.GetCellValue("Combined 2025-05..2025-06", "A65")
	require.NoError(t, err)
	assert.Equal(t, report.GrandTotalLabel, grand)
}

func TestBuildXLSX_Empty(t *testing.T) {
	_, err := BuildXLSX(nil)
	assert.Error(t, err)
}

func TestWriter_XLSXSingleWorkbook(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Format: FormatXLSX, Logger: log.Discard()}

	outs, err := w.Write(context.Background(), result(t, 5, 6))
	require.NoError(t, err)
	require.Len(t, outs, 3)
	for _, o := range outs {
		assert.Equal(t, filepath.Join(dir, "closeout_combined_months_2025_05_2025_06.xlsx"), o.Path)
	}
	_, err = os.Stat(outs[0].Path)
	assert.NoError(t, err)
}

func TestBuildPDF(t *testing.T) {
	res := result(t, 6)
	data, err := BuildPDF(res.Singles[0].Table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	dir := t.TempDir()
	outs, err := (&Writer{Dir: dir, Format: FormatPDF, Logger: log.Discard()}).Write(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, filepath.Join(dir, "closeout_monthly_data_2025_06.pdf"), outs[0].Path)
}

func TestWriteSheetReturnsWorkbookErrors(t *testing.T) {
	table := report.Table{Title: "Belle Nails and Spa", Subtitle: "Sales for the month of June 2025", TotalLabel: report.TotalLabel}

	f := excelize.NewFile()
	defer f.Close()

	err := writeSheet(f, "missing", table, 0, 0)
	require.Error(t, err, "writing to a sheet that does not exist must fail")

	err = writeSheet(f, "Sheet1", table, 0, 999)
	require.Error(t, err, "an unknown style id must fail")
}
