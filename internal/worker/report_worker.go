// Package worker runs a report request end to end: generation, files,
// spreadsheet publishing, the run ledger and metrics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"closeout/internal/amqp"
	"closeout/internal/core"
	"closeout/internal/export"
	"closeout/internal/log"
	"closeout/internal/metrics"
	"closeout/internal/period"
	"closeout/internal/report"
	"closeout/internal/sheets"
	"closeout/internal/storage"
)

// Run sources recorded in the ledger.
const (
	SourceCLI    = "cli"
	SourceWorker = "worker"
)

// GenerateFunc produces the reports for a request.
type GenerateFunc func(ctx context.Context, req report.Request) (*report.Result, error)

// Ledger records runs. storage.SQLiteRepository implements it.
type Ledger interface {
	BeginRun(ctx context.Context, source string, months []string) (int64, error)
	RecordOutputs(ctx context.Context, runID int64, outputs []storage.Output) error
	FinishRun(ctx context.Context, runID int64, status string, warnings int, runErr error) error
}

// Notifier announces finished requests. amqp.Client implements it.
type Notifier interface {
	PublishReportCompleted(ctx context.Context, msg *amqp.ReportCompletedMessage) error
}

// Config wires a ReportWorker. Only Generate and Writer are required.
type Config struct {
	Generate        GenerateFunc
	Resolver        *period.Resolver
	Writer          *export.Writer
	Publisher       sheets.ReportPublisher
	Ledger          Ledger
	Notifier        Notifier
	Metrics         *metrics.Recorder
	MetricsTextfile string
	AllowPartial    bool
	Logger          *log.Logger
}

// ReportWorker executes report requests.
type ReportWorker struct {
	cfg    Config
	logger *log.Logger
}

func NewReportWorker(cfg Config) *ReportWorker {
	if cfg.Resolver == nil {
		cfg.Resolver = period.NewResolver(time.UTC)
	}
	return &ReportWorker{cfg: cfg, logger: log.OrDefault(cfg.Logger, log.ComponentWorker)}
}

// Execution is the outcome of one request.
type Execution struct {
	RunID   int64
	Status  string
	Result  *report.Result
	Outputs []export.Output
	Ranges  []string
}

// Execute runs one request. The returned error is non-nil when the run did
// not produce an accepted set of reports; Execution is still returned when
// reports were generated so callers can describe what happened.
func (w *ReportWorker) Execute(ctx context.Context, source string, req report.Request, format export.Format) (*Execution, error) {
	intervals, err := w.cfg.Resolver.Resolve(req.Year, req.Months)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(intervals))
	for i, mi := range intervals {
		keys[i] = mi.Key()
	}

	exec := &Execution{Status: storage.StatusRunning}
	if w.cfg.Ledger != nil {
		if exec.RunID, err = w.cfg.Ledger.BeginRun(ctx, source, keys); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}
	logger := w.logger.With(log.FieldRunID, exec.RunID)
	defer w.writeMetrics(ctx, logger)

	res, err := w.cfg.Generate(ctx, req)
	if err != nil {
		exec.Status = storage.StatusFailed
		w.finish(ctx, logger, exec, 0, err)
		return exec, err
	}
	exec.Result = res

	if err := res.Check(w.cfg.AllowPartial); err != nil {
		exec.Status = storage.StatusFailed
		if len(res.Singles) > 0 {
			exec.Status = storage.StatusPartial
		}
		w.finish(ctx, logger, exec, res.Warnings, err)
		return exec, err
	}

	writer := *w.cfg.Writer
	writer.Format = format
	if writer.Logger == nil {
		writer.Logger = w.cfg.Logger
	}
	if exec.Outputs, err = writer.Write(ctx, res); err != nil {
		exec.Status = storage.StatusFailed
		w.finish(ctx, logger, exec, res.Warnings, err)
		return exec, fmt.Errorf("write reports: %w", err)
	}

	if w.cfg.Publisher != nil {
		if exec.Ranges, err = sheets.PublishReports(ctx, w.cfg.Publisher, res.All(), w.cfg.Logger); err != nil {
			exec.Status = storage.StatusFailed
			w.finish(ctx, logger, exec, res.Warnings, err)
			return exec, fmt.Errorf("publish reports: %w", err)
		}
	}

	exec.Status = storage.StatusSucceeded
	var runErr error
	if res.Partial() {
		exec.Status = storage.StatusPartial
		runErr = &report.PartialError{Succeeded: res.Succeeded(), Failed: res.Failures}
	}
	w.finish(ctx, logger, exec, res.Warnings, runErr)
	logger.InfoContext(ctx, "Run finished", "status", exec.Status, "summary", report.Describe(res))
	return exec, nil
}

func (w *ReportWorker) finish(ctx context.Context, logger *log.Logger, exec *Execution, warnings int, runErr error) {
	if runErr != nil {
		logger.ErrorContext(ctx, "Run failed", "status", exec.Status, log.FieldError, runErr)
	}
	if w.cfg.Ledger == nil {
		return
	}
	if len(exec.Outputs) > 0 {
		outs := make([]storage.Output, len(exec.Outputs))
		for i, o := range exec.Outputs {
			outs[i] = storage.Output{Label: o.Label, Kind: o.Kind, Path: o.Path, Format: string(o.Format), Totals: o.Totals}
		}
		if err := w.cfg.Ledger.RecordOutputs(ctx, exec.RunID, outs); err != nil {
			logger.ErrorContext(ctx, "Failed to record outputs", log.FieldError, err)
		}
	}
	if err := w.cfg.Ledger.FinishRun(ctx, exec.RunID, exec.Status, warnings, runErr); err != nil {
		logger.ErrorContext(ctx, "Failed to record run", log.FieldError, err)
	}
}

func (w *ReportWorker) writeMetrics(ctx context.Context, logger *log.Logger) {
	if w.cfg.MetricsTextfile == "" || w.cfg.Metrics == nil {
		return
	}
	if err := w.cfg.Metrics.WriteTextfile(w.cfg.MetricsTextfile); err != nil {
		logger.WarnContext(ctx, "Failed to write metrics textfile", log.FieldPath, w.cfg.MetricsTextfile, log.FieldError, err)
	}
}

// HandleReportRequest processes one AMQP report request. Invalid requests
// and credential problems are permanent; a run where every month failed to
// fetch is requeued.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	format, err := export.ParseFormat(msg.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}

	exec, err := w.Execute(ctx, SourceWorker, report.Request{Year: msg.Year, Months: msg.Months}, format)
	w.notify(ctx, msg, exec, err)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrAuthFailed), errors.Is(err, core.ErrMissingCredentials):
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	case exec != nil && exec.Result != nil && len(exec.Result.Singles) > 0:
		// Partial output that was not accepted; retrying would repeat it.
		w.logger.WarnContext(ctx, "Partial run rejected", "request_id", msg.RequestID, log.FieldError, err)
		return nil
	default:
		return err
	}
}

func (w *ReportWorker) notify(ctx context.Context, msg *amqp.ReportRequestMessage, exec *Execution, runErr error) {
	if w.cfg.Notifier == nil {
		return
	}
	done := &amqp.ReportCompletedMessage{
		RequestID: msg.RequestID,
		Status:    storage.StatusFailed,
		Timestamp: time.Now(),
	}
	if exec != nil {
		done.RunID = exec.RunID
		done.Status = exec.Status
		if exec.Result != nil {
			done.Succeeded = exec.Result.Succeeded()
			done.Warnings = exec.Result.Warnings
			for _, f := range exec.Result.Failures {
				done.Failed = append(done.Failed, f.Error())
			}
		}
		for _, o := range exec.Outputs {
			done.Outputs = append(done.Outputs, amqp.CompletedOutput{Label: o.Label, Path: o.Path, Total: o.Totals.Total.String()})
		}
	}
	if runErr != nil {
		done.Error = runErr.Error()
	}
	if err := w.cfg.Notifier.PublishReportCompleted(ctx, done); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish completion", "request_id", msg.RequestID, log.FieldError, err)
	}
}
