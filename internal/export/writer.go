package export

import (
	"context"
	"fmt"
	"time"

	"closeout/internal/core"
	"closeout/internal/log"
	"closeout/internal/report"
)

// Output describes one written file.
type Output struct {
	Label  string
	Kind   string
	Path   string
	Format Format
	Totals core.Totals
}

// Writer puts rendered reports on disk.
type Writer struct {
	Dir    string
	Format Format
	// Override replaces the file name of the single report, or of the
	// combined report when several months were requested.
	Override string
	Logger   *log.Logger
}

// Write renders and stores every report of res. CSV and PDF produce one
// file per report; XLSX produces a single workbook holding every report.
func (w *Writer) Write(ctx context.Context, res *report.Result) ([]Output, error) {
	logger := log.OrDefault(w.Logger, log.ComponentExport)
	format := w.Format
	if format == "" {
		format = FormatCSV
	}
	all := res.All()
	if len(all) == 0 {
		return nil, nil
	}

	if format == FormatXLSX {
		data, err := BuildXLSX(all)
		if err != nil {
			return nil, err
		}
		path := resolvePath(w.Dir, w.name(all[len(all)-1], format, true))
		if err := w.store(ctx, logger, path, data); err != nil {
			return nil, err
		}
		out := make([]Output, len(all))
		for i, r := range all {
			out[i] = Output{Label: r.Label, Kind: r.Kind, Path: path, Format: format, Totals: r.Table.Total}
		}
		return out, nil
	}

	out := make([]Output, 0, len(all))
	for i, r := range all {
		data, err := render(r, format)
		if err != nil {
			return out, fmt.Errorf("render %s: %w", r.Label, err)
		}
		path := resolvePath(w.Dir, w.name(r, format, i == len(all)-1))
		if err := w.store(ctx, logger, path, data); err != nil {
			return out, err
		}
		out = append(out, Output{Label: r.Label, Kind: r.Kind, Path: path, Format: format, Totals: r.Table.Total})
	}
	return out, nil
}

// name applies Override to the primary report, which is the combined one
// when several months were requested and the only one otherwise.
func (w *Writer) name(r report.Rendered, f Format, primary bool) string {
	if primary && w.Override != "" {
		return w.Override
	}
	return FileName(r, f)
}

func (w *Writer) store(ctx context.Context, logger *log.Logger, path string, data []byte) error {
	start := time.Now()
	if err := WriteFile(path, data); err != nil {
		logger.ErrorContext(ctx, "Failed to write report", log.FieldPath, path, log.FieldError, err)
		return err
	}
	logger.InfoContext(ctx, "Report written",
		log.FieldPath, path,
		"bytes", len(data),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func render(r report.Rendered, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return []byte(r.Text), nil
	case FormatPDF:
		return BuildPDF(r.Table)
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}
