package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"closeout/internal/amqp"
	"closeout/internal/cli"
	"closeout/internal/clover"
	"closeout/internal/config"
	"closeout/internal/export"
	"closeout/internal/log"
	"closeout/internal/normalize"
	"closeout/internal/period"
	"closeout/internal/report"
	"closeout/internal/storage"
	"closeout/internal/worker"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

type flags struct {
	year         int
	months       string
	token        string
	merchant     string
	output       string
	envOnly      bool
	configFile   string
	format       string
	batchID      string
	history      bool
	historyLimit int
	allowPartial bool
	enqueue      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var f flags
	fs := flag.NewFlagSet("closeout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&f.year, "year", 0, "report year (default: the year of the previous month)")
	fs.StringVar(&f.months, "month", "", `month or comma-separated months, e.g. "6" or "1,2,3" (default: previous month)`)
	fs.StringVar(&f.token, "token", "", "Clover API access token")
	fs.StringVar(&f.merchant, "merchant", "", "Clover merchant ID")
	fs.StringVar(&f.output, "output", "", "output file name for the single or combined report")
	fs.BoolVar(&f.envOnly, "env", false, "read configuration from the environment only, ignoring the YAML file")
	fs.StringVar(&f.configFile, "config", "", "YAML configuration file (overrides "+config.EnvConfigFile+")")
	fs.StringVar(&f.format, "format", "", "output format: csv, xlsx or pdf")
	fs.StringVar(&f.batchID, "batch", "", "print the summary of a single batch and exit")
	fs.BoolVar(&f.history, "history", false, "print recent runs from the run ledger and exit")
	fs.IntVar(&f.historyLimit, "history-limit", 20, "number of runs printed by -history")
	fs.BoolVar(&f.allowPartial, "allow-partial", false, "write reports even when some months failed")
	fs.BoolVar(&f.enqueue, "enqueue", false, "publish the request to the worker queue instead of running it")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFatal
	}

	cfg, err := config.Load(config.Options{File: f.configFile, SkipFile: f.envOnly})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	logger := cli.SetupLogger(cfg.LogLevel, stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case f.history:
		return printHistory(ctx, cfg, logger, f.historyLimit, stdout, stderr)
	case f.batchID != "":
		return printBatch(ctx, cfg, logger, f.batchID, stdout, stderr)
	}

	req, err := buildRequest(fs, f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if f.enqueue {
		return enqueue(ctx, cfg, logger, req, stdout, stderr)
	}
	return generate(ctx, cfg, logger, f.output, req, stdout, stderr)
}

// applyFlags lets command-line values override the loaded configuration.
func applyFlags(cfg *config.Config, f flags) {
	if f.token != "" {
		cfg.Clover.AccessToken = f.token
	}
	if f.merchant != "" {
		cfg.Clover.MerchantID = f.merchant
	}
	if f.format != "" {
		cfg.Output.Format = strings.ToLower(f.format)
	}
	if f.allowPartial {
		cfg.AllowPartial = true
	}
}

func buildRequest(fs *flag.FlagSet, f flags) (report.Request, error) {
	months, err := period.ParseMonths(f.months)
	if err != nil {
		return report.Request{}, err
	}
	req := report.Request{Months: months}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "year" {
			y := f.year
			req.Year = &y
		}
	})
	return req, nil
}

func generate(ctx context.Context, cfg *config.Config, logger *log.Logger, output string, req report.Request, stdout, stderr io.Writer) int {
	app, err := cli.Wire(ctx, cfg, logger, output, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer app.Close()

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	exec, err := app.Worker.Execute(ctx, worker.SourceCLI, req, format)
	if exec != nil && exec.Result != nil {
		for _, r := range exec.Result.All() {
			fmt.Fprintln(stdout, r.Text)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var partial *report.PartialError
		if errors.As(err, &partial) && len(partial.Succeeded) > 0 {
			fmt.Fprintln(stderr, "No files written; rerun with -allow-partial to keep the successful months.")
			return exitPartial
		}
		return exitFatal
	}

	for _, f := range exec.Result.Failures {
		fmt.Fprintf(stderr, "Warning: %v\n", f)
	}
	if exec.Result.Warnings > 0 {
		fmt.Fprintf(stderr, "Warning: skipped %d malformed records\n", exec.Result.Warnings)
	}
	fmt.Fprintln(stdout, "Files written:")
	for _, o := range exec.Outputs {
		fmt.Fprintf(stdout, "  %s\n", o.Path)
	}
	for _, r := range exec.Ranges {
		fmt.Fprintf(stdout, "  %s\n", r)
	}
	return exitOK
}

func printBatch(ctx context.Context, cfg *config.Config, logger *log.Logger, id string, stdout, stderr io.Writer) int {
	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	ccfg := cfg.ClientConfig()
	ccfg.Credentials = cfg.Credentials()
	ccfg.Logger = logger
	client, err := clover.NewClient(ccfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	raw, err := client.GetBatch(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	frag, err := normalize.New(loc).Normalize(raw)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	fmt.Fprintln(stdout, frag.Summary())
	return exitOK
}

func printHistory(ctx context.Context, cfg *config.Config, logger *log.Logger, limit int, stdout, stderr io.Writer) int {
	if cfg.SQLiteDBPath == "" {
		fmt.Fprintln(stderr, "Error: SQLITE_DB_PATH is not set; the run ledger is disabled")
		return exitFatal
	}
	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return exitOK
	}
	for _, r := range runs {
		fmt.Fprintln(stdout, formatRun(r))
		for _, o := range r.Outputs {
			fmt.Fprintf(stdout, "    %-28s %s  total %s\n", o.Label, o.Path, o.Totals.Total)
		}
	}
	return exitOK
}

func formatRun(r storage.Run) string {
	line := fmt.Sprintf("#%d %s %-6s %-9s %s", r.ID, r.StartedAt.Format(time.RFC3339), r.Source, r.Status, strings.Join(r.Months, ","))
	if r.Warnings > 0 {
		line += fmt.Sprintf(" warnings=%d", r.Warnings)
	}
	if r.Error != "" {
		line += " error=" + r.Error
	}
	return line
}

func enqueue(ctx context.Context, cfg *config.Config, logger *log.Logger, req report.Request, stdout, stderr io.Writer) int {
	if cfg.AMQP.URL == "" {
		fmt.Fprintln(stderr, "Error: AMQP_URL is not set")
		return exitFatal
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:          cfg.AMQP.URL,
		Exchange:     cfg.AMQP.Exchange,
		Queue:        cfg.AMQP.Queue,
		CompletedKey: cfg.AMQP.CompletedKey,
		Logger:       logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer client.Close()

	id := fmt.Sprintf("cli-%d", time.Now().UnixNano())
	msg := amqp.NewReportRequestMessage(id, req.Year, req.Months, cfg.Output.Format)
	if err := client.PublishReportRequest(ctx, msg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	fmt.Fprintf(stdout, "Enqueued report request %s\n", id)
	return exitOK
}
