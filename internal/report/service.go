package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"closeout/internal/clover"
	"closeout/internal/core"
	"closeout/internal/log"
	"closeout/internal/metrics"
	"closeout/internal/normalize"
	"closeout/internal/period"
)

// DefaultConcurrency bounds how many months are fetched at once.
const DefaultConcurrency = 4

// Kinds of rendered report.
const (
	KindMonthly  = metrics.KindMonthly
	KindCombined = metrics.KindCombined
)

// BatchSource returns the raw batches created inside a month.
type BatchSource interface {
	FetchBatches(ctx context.Context, mi core.MonthInterval) ([]clover.RawBatch, error)
}

// Request selects the months to report on. A nil Year means the year of the
// previous month, so a January run reports on last year; no Months means the
// previous month.
type Request struct {
	Year   *int
	Months []int
}

// Options configures a Service.
type Options struct {
	BusinessName string
	Location     *time.Location
	Concurrency  int

	// Client is used by Generate to build the Clover client. Its
	// Credentials are replaced by the ones passed to Generate.
	Client clover.Config

	Logger  *log.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

// Rendered is one finished report.
type Rendered struct {
	Label     string
	Kind      string
	Intervals []core.MonthInterval
	Text      string
	Table     Table
}

// SheetName is the tab name used for the report in a workbook or
// spreadsheet: "2025-06" or "Combined 2025-05..2025-07".
func (r Rendered) SheetName() string {
	if r.Kind == KindCombined {
		first, last := r.Intervals[0], r.Intervals[len(r.Intervals)-1]
		return fmt.Sprintf("Combined %s..%s", first.Key(), last.Key())
	}
	return r.Intervals[0].Key()
}

// Result is the outcome of a run.
type Result struct {
	Singles  []Rendered
	Combined *Rendered
	Failures []*MonthError
	Warnings int
	Dropped  int
}

// Partial reports whether any requested month failed.
func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

// Succeeded lists the labels of the months that produced a report.
func (r *Result) Succeeded() []string {
	out := make([]string, len(r.Singles))
	for i, s := range r.Singles {
		out[i] = s.Label
	}
	return out
}

// Check applies the partial-output policy. A run with no successful month is
// always an error.
func (r *Result) Check(allowPartial bool) error {
	if !r.Partial() {
		return nil
	}
	if len(r.Singles) > 0 && allowPartial {
		return nil
	}
	return &PartialError{Succeeded: r.Succeeded(), Failed: r.Failures}
}

// All returns every rendered report, singles first.
func (r *Result) All() []Rendered {
	out := append([]Rendered(nil), r.Singles...)
	if r.Combined != nil {
		out = append(out, *r.Combined)
	}
	return out
}

// Service turns a Request into rendered reports.
type Service struct {
	source      BatchSource
	resolver    *period.Resolver
	normalizer  *normalize.Normalizer
	business    string
	concurrency int
	logger      *log.Logger
	metrics     *metrics.Recorder
}

// NewService wires a Service around source.
func NewService(source BatchSource, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	resolver := period.NewResolver(loc)
	if opts.Now != nil {
		resolver.Now = opts.Now
	}
	business := strings.TrimSpace(opts.BusinessName)
	if business == "" {
		business = DefaultBusinessName
	}
	conc := opts.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	return &Service{
		source:      source,
		resolver:    resolver,
		normalizer:  normalize.New(loc),
		business:    business,
		concurrency: conc,
		logger:      log.OrDefault(opts.Logger, log.ComponentReport),
		metrics:     opts.Metrics,
	}
}

// Generate validates the request and the credentials, then runs the whole
// pipeline against the Clover API.
func Generate(ctx context.Context, req Request, creds clover.Credentials, opts Options) (*Result, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	resolver := period.NewResolver(loc)
	if opts.Now != nil {
		resolver.Now = opts.Now
	}
	if _, err := resolver.Resolve(req.Year, req.Months); err != nil {
		return nil, err
	}

	cfg := opts.Client
	cfg.Credentials = creds
	if cfg.Logger == nil {
		cfg.Logger = opts.Logger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = opts.Metrics
	}
	client, err := clover.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(client, opts).Run(ctx, req)
}

// Run resolves the months, processes them concurrently and assembles the
// reports. Only invalid input and authentication failures return an error;
// other per-month failures are listed in Result.Failures.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	intervals, err := s.resolver.Resolve(req.Year, req.Months)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Generating reports", "months", len(intervals))
	start := time.Now()

	outcomes := make([]MonthOutcome, len(intervals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, mi := range intervals {
		g.Go(func() error {
			outcomes[i] = s.month(gctx, mi)
			if errors.Is(outcomes[i].Err, core.ErrAuthFailed) {
				return outcomes[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Run aborted", log.FieldError, err)
		return nil, err
	}

	a := Assemble(outcomes)
	res := &Result{Failures: a.Failures}
	for _, o := range outcomes {
		res.Warnings += o.Warnings
		res.Dropped += o.Dropped
	}
	for _, m := range a.Monthly {
		t := MonthlyTable(s.business, m)
		res.Singles = append(res.Singles, Rendered{
			Label:     m.Label(),
			Kind:      KindMonthly,
			Intervals: []core.MonthInterval{m.Interval},
			Text:      string(CSV(t)),
			Table:     t,
		})
		s.metrics.IncReport(KindMonthly)
	}
	if a.Combined != nil {
		t := CombinedTable(s.business, *a.Combined)
		ivs := make([]core.MonthInterval, len(a.Combined.Months))
		for i, m := range a.Combined.Months {
			ivs[i] = m.Interval
		}
		res.Combined = &Rendered{
			Label:     strings.Join(a.Combined.Labels(), ", "),
			Kind:      KindCombined,
			Intervals: ivs,
			Text:      string(CSV(t)),
			Table:     t,
		}
		s.metrics.IncReport(KindCombined)
	}
	for _, f := range res.Failures {
		s.metrics.IncFailedMonth()
		s.logger.WarnContext(ctx, "Month failed",
			log.FieldLabel, f.Interval.Label(),
			log.FieldError, f.Err)
	}
	s.metrics.MarkRun(time.Now())

	s.logger.InfoContext(ctx, "Reports generated",
		"succeeded", len(res.Singles),
		"failed", len(res.Failures),
		log.FieldWarnings, res.Warnings,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

func (s *Service) month(ctx context.Context, mi core.MonthInterval) MonthOutcome {
	out := MonthOutcome{Interval: mi}
	logger := s.logger.With(log.FieldYear, mi.Year, log.FieldMonth, int(mi.Month))

	raws, err := s.source.FetchBatches(ctx, mi)
	if err != nil {
		out.Err = &MonthError{Interval: mi, Err: err}
		return out
	}

	frags := make([]normalize.Fragment, 0, len(raws))
	for _, raw := range raws {
		f, err := s.normalizer.Normalize(raw)
		if err != nil {
			out.Warnings++
			logger.WarnContext(ctx, "Skipping batch", log.FieldError, err)
			continue
		}
		frags = append(frags, f)
	}
	s.metrics.AddMalformed(out.Warnings)

	out.Report, out.Dropped = Aggregate(mi, frags)
	if out.Dropped > 0 {
		s.metrics.AddDropped(out.Dropped)
		logger.WarnContext(ctx, "Dropped batches outside the month", "dropped", out.Dropped)
	}
	logger.DebugContext(ctx, "Month aggregated",
		log.FieldRecords, len(frags),
		log.FieldWarnings, out.Warnings)
	return out
}

// Describe renders a one-line summary of a result, used by the CLI and the
// worker.
func Describe(r *Result) string {
	if r == nil {
		return "no result"
	}
	s := fmt.Sprintf("%d report(s)", len(r.All()))
	if r.Partial() {
		s += fmt.Sprintf(", %d month(s) failed", len(r.Failures))
	}
	if r.Warnings > 0 {
		s += fmt.Sprintf(", %d batch(es) skipped", r.Warnings)
	}
	return s
}
