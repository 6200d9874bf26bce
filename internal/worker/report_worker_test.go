package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closeout/internal/amqp"
	"closeout/internal/clover"
	"closeout/internal/core"
	"closeout/internal/export"
	"closeout/internal/log"
	"closeout/internal/metrics"
	"closeout/internal/period"
	"closeout/internal/report"
	"closeout/internal/sheets/memory"
	"closeout/internal/storage"
)

type monthSource struct {
	errs map[string]error
}

func (s monthSource) FetchBatches(_ context.Context, mi core.MonthInterval) ([]clover.RawBatch, error) {
	if err := s.errs[mi.Key()]; err != nil {
		return nil, err
	}
	return []clover.RawBatch{{
		"id":          "B-" + mi.Key(),
		"createdTime": mi.Start.Add(36 * time.Hour).UnixMilli(),
		"total":       "10.00",
		"tip":         "1.50",
	}}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*amqp.ReportCompletedMessage
}

func (n *recordingNotifier) PublishReportCompleted(_ context.Context, msg *amqp.ReportCompletedMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func now() time.Time { return time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC) }

type harness struct {
	worker   *ReportWorker
	dir      string
	ledger   *storage.SQLiteRepository
	sheets   *memory.Store
	notifier *recordingNotifier
	metrics  string
}

func newHarness(t *testing.T, errs map[string]error, allowPartial bool) *harness {
	t.Helper()
	dir := t.TempDir()
	ledger, err := storage.NewSQLiteRepository(filepath.Join(dir, "ledger.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	rec := metrics.New()
	svc := report.NewService(monthSource{errs: errs}, report.Options{Logger: log.Discard(), Metrics: rec, Now: now})
	resolver := period.NewResolver(time.UTC)
	resolver.Now = now

	h := &harness{
		dir:      filepath.Join(dir, "out"),
		ledger:   ledger,
		sheets:   memory.New(),
		notifier: &recordingNotifier{},
		metrics:  filepath.Join(dir, "closeout.prom"),
	}
	h.worker = NewReportWorker(Config{
		Generate:        svc.Run,
		Resolver:        resolver,
		Writer:          &export.Writer{Dir: h.dir, Logger: log.Discard()},
		Publisher:       h.sheets,
		Ledger:          ledger,
		Notifier:        h.notifier,
		Metrics:         rec,
		MetricsTextfile: h.metrics,
		AllowPartial:    allowPartial,
		Logger:          log.Discard(),
	})
	return h
}

func year(y int) *int { return &y }

func TestExecute_Success(t *testing.T) {
	h := newHarness(t, nil, false)

	exec, err := h.worker.Execute(context.Background(), SourceCLI, report.Request{Year: year(2025), Months: []int{5, 6}}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusSucceeded, exec.Status)
	require.Len(t, exec.Outputs, 3)
	for _, o := range exec.Outputs {
		_, err := os.Stat(o.Path)
		assert.NoError(t, err, o.Path)
	}
	assert.Equal(t, "20.00", exec.Outputs[2].Totals.Total.String())

	assert.Equal(t, []string{"2025-05", "2025-06", "Combined 2025-05..2025-06"}, h.sheets.Sheets())
	assert.Len(t, exec.Ranges, 3)

	runs, err := h.ledger.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, exec.RunID, runs[0].ID)
	assert.Equal(t, storage.StatusSucceeded, runs[0].Status)
	assert.Equal(t, []string{"2025-05", "2025-06"}, runs[0].Months)
	assert.Len(t, runs[0].Outputs, 3)

	data, err := os.ReadFile(h.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reports_generated_total")
}

func TestExecute_PartialRejected(t *testing.T) {
	h := newHarness(t, map[string]error{"2025-06": fmt.Errorf("%w: http 503", core.ErrFetchFailed)}, false)

	exec, err := h.worker.Execute(context.Background(), SourceCLI, report.Request{Year: year(2025), Months: []int{5, 6}}, export.FormatCSV)
	var pe *report.PartialError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, storage.StatusPartial, exec.Status)
	assert.Empty(t, exec.Outputs)

	_, statErr := os.Stat(h.dir)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing written")

	runs, err := h.ledger.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPartial, runs[0].Status)
	assert.Contains(t, runs[0].Error, "June 2025")
}

func TestExecute_PartialAllowed(t *testing.T) {
	h := newHarness(t, map[string]error{"2025-06": core.ErrFetchFailed}, true)

	exec, err := h.worker.Execute(context.Background(), SourceCLI, report.Request{Year: year(2025), Months: []int{5, 6}}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPartial, exec.Status)
	require.Len(t, exec.Outputs, 2)
	assert.Equal(t, filepath.Join(h.dir, "closeout_combined_months_2025_05.csv"), exec.Outputs[1].Path)
}

func TestExecute_InvalidRequest(t *testing.T) {
	h := newHarness(t, nil, false)
	_, err := h.worker.Execute(context.Background(), SourceCLI, report.Request{Year: year(2025), Months: []int{13}}, export.FormatCSV)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	runs, err := h.ledger.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHandleReportRequest(t *testing.T) {
	tests := []struct {
		name          string
		errs          map[string]error
		msg           *amqp.ReportRequestMessage
		wantErr       bool
		wantPermanent bool
		wantStatus    string
	}{
		{
			name:       "success",
			msg:        &amqp.ReportRequestMessage{RequestID: "ok", Year: year(2025), Months: []int{6}, Format: "pdf"},
			wantStatus: storage.StatusSucceeded,
		},
		{
			name:          "unknown format",
			msg:           &amqp.ReportRequestMessage{RequestID: "fmt", Format: "docx"},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "auth failure",
			errs:          map[string]error{"2025-06": core.ErrAuthFailed},
			msg:           &amqp.ReportRequestMessage{RequestID: "auth", Year: year(2025), Months: []int{6}},
			wantErr:       true,
			wantPermanent: true,
			wantStatus:    storage.StatusFailed,
		},
		{
			name:       "every month failed",
			errs:       map[string]error{"2025-06": core.ErrFetchFailed},
			msg:        &amqp.ReportRequestMessage{RequestID: "down", Year: year(2025), Months: []int{6}},
			wantErr:    true,
			wantStatus: storage.StatusFailed,
		},
		{
			name:       "partial is acknowledged",
			errs:       map[string]error{"2025-06": core.ErrFetchFailed},
			msg:        &amqp.ReportRequestMessage{RequestID: "part", Year: year(2025), Months: []int{5, 6}},
			wantStatus: storage.StatusPartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.errs, false)
			err := h.worker.HandleReportRequest(context.Background(), tt.msg)
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, errors.Is(err, amqp.ErrPermanent))
			}

			if tt.wantStatus == "" {
				assert.Empty(t, h.notifier.msgs)
				return
			}
			require.Len(t, h.notifier.msgs, 1)
			done := h.notifier.msgs[0]
			assert.Equal(t, tt.msg.RequestID, done.RequestID)
			assert.Equal(t, tt.wantStatus, done.Status)
		})
	}
}
