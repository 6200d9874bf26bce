// Package cli provides common initialization shared by cmd/closeout and
// cmd/closeout-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"closeout/internal/config"
	"closeout/internal/export"
	"closeout/internal/log"
	"closeout/internal/metrics"
	"closeout/internal/period"
	"closeout/internal/report"
	"closeout/internal/sheets/google"
	"closeout/internal/storage"
	"closeout/internal/worker"
)

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the run ledger when a path is configured. It returns nil
// when the ledger is disabled.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	if dbPath == "" {
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize run ledger at %s: %w", dbPath, err)
	}
	return repo, nil
}

// App holds everything a run needs.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Recorder
	Ledger  *storage.SQLiteRepository
	Worker  *worker.ReportWorker
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.Ledger != nil {
		return a.Ledger.Close()
	}
	return nil
}

// Wire builds the report pipeline from cfg. overrideName replaces the name
// of the primary output file; notifier may be nil.
func Wire(ctx context.Context, cfg *config.Config, logger *log.Logger, overrideName string, notifier worker.Notifier) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rec := metrics.New()
	app := &App{Config: cfg, Logger: logger, Metrics: rec}

	ledger, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	app.Ledger = ledger

	opts := report.Options{
		BusinessName: cfg.BusinessName,
		Location:     loc,
		Concurrency:  cfg.Fetch.MonthConcurrency,
		Client:       cfg.ClientConfig(),
		Logger:       logger,
		Metrics:      rec,
	}
	creds := cfg.Credentials()
	generate := func(ctx context.Context, req report.Request) (*report.Result, error) {
		return report.Generate(ctx, req, creds, opts)
	}

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		app.Close()
		return nil, err
	}

	wcfg := worker.Config{
		Generate:        generate,
		Resolver:        period.NewResolver(loc),
		Writer:          &export.Writer{Dir: cfg.Output.Dir, Format: format, Override: overrideName, Logger: logger},
		Metrics:         rec,
		MetricsTextfile: cfg.MetricsTextfile,
		AllowPartial:    cfg.AllowPartial,
		Logger:          logger,
	}
	if ledger != nil {
		wcfg.Ledger = ledger
	}
	if notifier != nil {
		wcfg.Notifier = notifier
	}
	if cfg.Google.SpreadsheetID != "" {
		pub, err := google.New(ctx, google.Options{
			SpreadsheetID:      cfg.Google.SpreadsheetID,
			ServiceAccountJSON: cfg.Google.ServiceAccountJSON,
			ServiceAccountFile: cfg.Google.ServiceAccountFile,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("initialize Google Sheets publisher: %w", err)
		}
		wcfg.Publisher = pub
		logger.Info("Google Sheets publishing enabled", "spreadsheet_id", cfg.Google.SpreadsheetID)
	}

	app.Worker = worker.NewReportWorker(wcfg)
	return app, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup()
		}

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		default:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
