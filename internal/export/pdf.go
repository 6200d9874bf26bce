package export

import (
	"bytes"

	"github.com/jung-kurt/gofpdf"

	"closeout/internal/report"
)

// BuildPDF renders one report as a single table document.
func BuildPDF(t report.Table) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, t.Title)
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, t.Subtitle)
	pdf.Ln(10)

	widths := []float64{40, 40, 40, 40}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range report.Header {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, r := range t.Rows {
		pdf.CellFormat(widths[0], 6, r.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.Debit.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, r.Tip.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, r.Total.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(widths[0], 6, t.TotalLabel, "1", 0, "C", false, 0, "")
	pdf.CellFormat(widths[1], 6, t.Total.Debit.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2], 6, t.Total.Tip.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, t.Total.Total.String(), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
