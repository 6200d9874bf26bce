package sheets

import (
	"context"
	"fmt"

	"closeout/internal/log"
	"closeout/internal/report"
)

// Ports for outbound adapters.
type (
	// ReportPublisher replaces the content of one tab with values.
	ReportPublisher interface {
		Publish(ctx context.Context, sheet string, values [][]string) (rangeRef string, err error)
	}
)

// PublishReports writes every report to its own tab and returns the updated
// ranges in the same order.
func PublishReports(ctx context.Context, pub ReportPublisher, reports []report.Rendered, logger *log.Logger) ([]string, error) {
	logger = log.OrDefault(logger, log.ComponentSheets)
	refs := make([]string, 0, len(reports))
	for _, r := range reports {
		sheet := r.SheetName()
		ref, err := pub.Publish(ctx, sheet, r.Table.Values())
		if err != nil {
			return refs, fmt.Errorf("publish %s: %w", sheet, err)
		}
		logger.InfoContext(ctx, "Report published", log.FieldSheet, sheet, "range", ref)
		refs = append(refs, ref)
	}
	return refs, nil
}
