// Package export writes rendered reports to disk as CSV, XLSX or PDF.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"closeout/internal/core"
	"closeout/internal/report"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts csv, xlsx or pdf in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv, xlsx or pdf)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// MonthlyFileName is closeout_monthly_data_YYYY_MM.<ext>.
func MonthlyFileName(mi core.MonthInterval, f Format) string {
	return fmt.Sprintf("closeout_monthly_data_%d_%02d%s", mi.Year, int(mi.Month), f.Ext())
}

// CombinedFileName is closeout_combined_months_YYYY_MM_..._YYYY_MM.<ext>.
func CombinedFileName(ivs []core.MonthInterval, f Format) string {
	parts := make([]string, len(ivs))
	for i, mi := range ivs {
		parts[i] = fmt.Sprintf("%d_%02d", mi.Year, int(mi.Month))
	}
	return "closeout_combined_months_" + strings.Join(parts, "_") + f.Ext()
}

// FileName picks the default name for a rendered report.
func FileName(r report.Rendered, f Format) string {
	if r.Kind == report.KindCombined {
		return CombinedFileName(r.Intervals, f)
	}
	return MonthlyFileName(r.Intervals[0], f)
}

func resolvePath(dir, name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(dir, name)
}
