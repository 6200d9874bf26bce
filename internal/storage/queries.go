package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ReportRun struct {
	ID         int64
	Source     string
	Months     string
	Status     string
	Warnings   int64
	Error      string
	StartedAt  string
	FinishedAt sql.NullString
}

type ReportOutput struct {
	ID         int64
	RunID      int64
	Label      string
	Kind       string
	Path       string
	Format     string
	DebitCents int64
	TipCents   int64
	TotalCents int64
}

const createRun = `-- name: CreateRun :one
INSERT INTO report_runs (source, months, status, started_at)
VALUES (?, ?, 'running', ?)
RETURNING id
`

type CreateRunParams struct {
	Source    string
	Months    string
	StartedAt string
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun, arg.Source, arg.Months, arg.StartedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const finishRun = `-- name: FinishRun :execrows
UPDATE report_runs
SET status = ?, warnings = ?, error = ?, finished_at = ?
WHERE id = ?
`

type FinishRunParams struct {
	Status     string
	Warnings   int64
	Error      string
	FinishedAt string
	ID         int64
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, finishRun, arg.Status, arg.Warnings, arg.Error, arg.FinishedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createOutput = `-- name: CreateOutput :exec
INSERT INTO report_outputs (run_id, label, kind, path, format, debit_cents, tip_cents, total_cents)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateOutputParams struct {
	RunID      int64
	Label      string
	Kind       string
	Path       string
	Format     string
	DebitCents int64
	TipCents   int64
	TotalCents int64
}

func (q *Queries) CreateOutput(ctx context.Context, arg CreateOutputParams) error {
	_, err := q.db.ExecContext(ctx, createOutput,
		arg.RunID, arg.Label, arg.Kind, arg.Path, arg.Format,
		arg.DebitCents, arg.TipCents, arg.TotalCents)
	return err
}

const listRuns = `-- name: ListRuns :many
SELECT id, source, months, status, warnings, error, started_at, finished_at
FROM report_runs
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]ReportRun, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReportRun
	for rows.Next() {
		var i ReportRun
		if err := rows.Scan(&i.ID, &i.Source, &i.Months, &i.Status, &i.Warnings, &i.Error, &i.StartedAt, &i.FinishedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOutputsByRun = `-- name: ListOutputsByRun :many
SELECT id, run_id, label, kind, path, format, debit_cents, tip_cents, total_cents
FROM report_outputs
WHERE run_id = ?
ORDER BY id
`

func (q *Queries) ListOutputsByRun(ctx context.Context, runID int64) ([]ReportOutput, error) {
	rows, err := q.db.QueryContext(ctx, listOutputsByRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReportOutput
	for rows.Next() {
		var i ReportOutput
		if err := rows.Scan(&i.ID, &i.RunID, &i.Label, &i.Kind, &i.Path, &i.Format, &i.DebitCents, &i.TipCents, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
