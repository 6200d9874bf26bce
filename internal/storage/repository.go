package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"closeout/internal/core"
	"closeout/internal/log"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when finishing an unknown run.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded report run with its outputs.
type Run struct {
	ID         int64
	Source     string
	Months     []string
	Status     string
	Warnings   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outputs    []Output
}

// Output is one file produced by a run.
type Output struct {
	Label  string
	Kind   string
	Path   string
	Format string
	Totals core.Totals
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  log.OrDefault(logger, log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the ledger database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// BeginRun records the start of a run and returns its id.
func (r *SQLiteRepository) BeginRun(ctx context.Context, source string, months []string) (int64, error) {
	id, err := r.queries.CreateRun(ctx, CreateRunParams{
		Source:    source,
		Months:    strings.Join(months, ","),
		StartedAt: r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	r.logger.DebugContext(ctx, "Run started", log.FieldRunID, id, "months", months)
	return id, nil
}

// RecordOutputs stores the files produced by a run in one transaction.
func (r *SQLiteRepository) RecordOutputs(ctx context.Context, runID int64, outputs []Output) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, o := range outputs {
		if err := q.CreateOutput(ctx, CreateOutputParams{
			RunID:      runID,
			Label:      o.Label,
			Kind:       o.Kind,
			Path:       o.Path,
			Format:     o.Format,
			DebitCents: o.Totals.Debit.Cents(),
			TipCents:   o.Totals.Tip.Cents(),
			TotalCents: o.Totals.Total.Cents(),
		}); err != nil {
			return fmt.Errorf("record output %s: %w", o.Label, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outputs: %w", err)
	}
	return nil
}

// FinishRun stores the final status of a run.
func (r *SQLiteRepository) FinishRun(ctx context.Context, runID int64, status string, warnings int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	n, err := r.queries.FinishRun(ctx, FinishRunParams{
		Status:     status,
		Warnings:   int64(warnings),
		Error:      msg,
		FinishedAt: r.now().UTC().Format(time.RFC3339),
		ID:         runID,
	})
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %d: %w", runID, ErrRunNotFound)
	}
	r.logger.InfoContext(ctx, "Run recorded", log.FieldRunID, runID, "status", status, log.FieldWarnings, warnings)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run := Run{
			ID:       row.ID,
			Source:   row.Source,
			Status:   row.Status,
			Warnings: int(row.Warnings),
			Error:    row.Error,
		}
		if row.Months != "" {
			run.Months = strings.Split(row.Months, ",")
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, row.StartedAt)
		if row.FinishedAt.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339, row.FinishedAt.String)
		}

		outs, err := r.queries.ListOutputsByRun(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list outputs of run %d: %w", row.ID, err)
		}
		for _, o := range outs {
			run.Outputs = append(run.Outputs, Output{
				Label:  o.Label,
				Kind:   o.Kind,
				Path:   o.Path,
				Format: o.Format,
				Totals: core.Totals{
					Debit: core.MoneyFromCents(o.DebitCents),
					Tip:   core.MoneyFromCents(o.TipCents),
					Total: core.MoneyFromCents(o.TotalCents),
				},
			})
		}
		runs = append(runs, run)
	}
	return runs, nil
}
