package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"closeout/internal/report"
)

// numFmtTwoDecimals is the built-in "0.00" number format.
const numFmtTwoDecimals = 2

// BuildXLSX renders every report into one workbook, one sheet each.
func BuildXLSX(reports []report.Rendered) ([]byte, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("xlsx: no reports")
	}
	f := excelize.NewFile()
	defer f.Close()

	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return nil, fmt.Errorf("xlsx: amount style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, r := range reports {
		sheet := r.SheetName()
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("xlsx: new sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, r.Table, amount, bold); err != nil {
			return nil, fmt.Errorf("xlsx: sheet %s: %w", sheet, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t report.Table, amount, bold int) error {
	if err := f.SetCellValue(sheet, "A1", t.Title); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "A2", t.Subtitle); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A3", &report.Header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A3", "D3", bold); err != nil {
		return err
	}

	row := 4
	for _, r := range t.Rows {
		values := []any{r.Date.String(), r.Debit.Float64(), r.Tip.Float64(), r.Total.Float64()}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}
	totals := []any{t.TotalLabel, t.Total.Debit.Float64(), t.Total.Tip.Float64(), t.Total.Total.Float64()}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &totals); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "B4", fmt.Sprintf("D%d", row), amount); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 14)
}
