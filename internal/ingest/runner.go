package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/jedib0t/go-pretty/v6/text"

	"trackcanon/internal/batch"
	"trackcanon/internal/interfaces"
	"trackcanon/internal/logging"
	"trackcanon/internal/metrics"
	"trackcanon/internal/shared"
)

// WarningNoRows marks a results document written for an empty or unreadable source.
const WarningNoRows = "no-rows"

// Options controls a run.
type Options struct {
	Source string
	// Limit processes only the first Limit rows when positive.
	Limit int
	// BatchSize above 1 processes rows concurrently in chunks of that size.
	BatchSize     int
	ProgressEvery int
	ResultsPath   string
	// ShowProgress draws a progress bar instead of periodic progress lines.
	ShowProgress bool
	// Verbose prints one line per finished row. Ignored with ShowProgress.
	Verbose bool
}

// Report summarizes a finished run.
type Report struct {
	Source     string
	Total      int
	Processed  int
	Staged     int
	Elapsed    time.Duration
	Validation Validation
	Results    shared.StagingResults
	Metrics    metrics.Metrics
}

// Runner reads a source and feeds its rows to a Pipeline.
type Runner struct {
	pipeline *Pipeline
	console  interfaces.LoggerService
	logger   *slog.Logger
	out      io.Writer
	now      func() time.Time
}

// NewRunner creates a Runner printing human output to out.
func NewRunner(p *Pipeline, console interfaces.LoggerService, out io.Writer, logger *slog.Logger) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		pipeline: p,
		console:  console,
		logger:   logging.OrDiscard(logger).With("component", "runner"),
		out:      out,
		now:      time.Now,
	}
}

// Run processes the source. A missing, unreadable or empty source is not an
// error: a results document carrying the no-rows warning is written instead.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{Source: opts.Source}

	rows, err := ReadCSV(opts.Source)
	if err != nil || len(rows) == 0 {
		r.console.Warning("No rows to process in %s", opts.Source)
		r.logger.Warn("no rows", "source", opts.Source, "error", err)
		report.Results = shared.StagingResults{
			GeneratedAt: r.now().UTC(),
			Warning:     WarningNoRows,
			Results:     []shared.RowResult{},
		}
		return report, r.writeResults(opts.ResultsPath, report.Results)
	}

	report.Total = len(rows)
	report.Validation = ValidateRows(rows)
	for _, e := range report.Validation.Errors {
		r.console.Warning("Row %d: %s", e.Row, e.Reason)
	}

	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	r.console.Info("Total songs in source: %d", report.Total)
	r.console.Info("Processing: %d songs", len(rows))

	results := make([]shared.RowResult, len(rows))
	done := make([]bool, len(rows))
	progress := r.newProgress(len(rows), opts)
	defer progress.finish()

	process := func(ctx context.Context, i int) error {
		results[i] = r.pipeline.Process(ctx, rows[i])
		progress.step(i, done, results[i])
		return nil
	}

	start := r.now()
	var runErr error
	if opts.BatchSize > 1 {
		indexes := make([]int, len(rows))
		for i := range indexes {
			indexes[i] = i
		}
		var staged int
		staged, runErr = batch.RunInBatches(ctx, indexes, opts.BatchSize, process,
			func(ctx context.Context) (int, error) {
				all, err := r.pipeline.Store.ReadAll(ctx)
				return len(all), err
			})
		report.Staged = staged
	} else {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			_ = process(ctx, i)
		}
	}
	report.Elapsed = r.now().Sub(start)

	// Rows not reached before cancellation are left out of the document.
	kept := results[:0]
	for i, res := range results {
		if done[i] {
			kept = append(kept, res)
		}
	}
	report.Processed = len(kept)
	report.Results = shared.StagingResults{GeneratedAt: r.now().UTC(), Results: kept}
	report.Metrics = r.pipeline.Metrics.Snapshot()

	if err := r.writeResults(opts.ResultsPath, report.Results); err != nil {
		return report, err
	}
	r.logger.Info("run complete",
		"source", opts.Source, "processed", report.Processed, "elapsed", report.Elapsed,
		"accepted", report.Metrics.Accepted, "queued", report.Metrics.Queued,
		"skipped", report.Metrics.Skipped, "errors", report.Metrics.Errors)
	return report, runErr
}

// PrintSummary writes the end of run summary.
func (r *Runner) PrintSummary(report *Report, resultsPath string) {
	shared.ColorHeader.Fprintln(r.out, "\n=== Processing Complete ===")
	fmt.Fprintf(r.out, "Processed %d songs in %.1fs\n", report.Processed, report.Elapsed.Seconds())
	if resultsPath != "" {
		fmt.Fprintf(r.out, "Results saved to: %s\n", resultsPath)
	}

	shared.ColorHeader.Fprintln(r.out, "\n=== Final Metrics ===")
	fmt.Fprintln(r.out, metrics.RenderCounters(report.Metrics))
	if len(report.Metrics.ByReason) > 0 {
		shared.ColorHeader.Fprintln(r.out, "\n=== Skip Reasons ===")
		fmt.Fprintln(r.out, metrics.RenderReasons(report.Metrics))
	}
	if s := r.pipeline.Summary; s != nil && s.HasEntries() {
		s.PrintSummary(r.out)
	}
}

func (r *Runner) writeResults(path string, doc shared.StagingResults) error {
	if path == "" {
		return nil
	}
	if err := shared.WriteJSONFile(path, doc); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// progress reports every N rows, or drives a progress bar.
type progress struct {
	r       *Runner
	total   int
	every   int
	start   time.Time
	bar     *pb.ProgressBar
	verbose bool

	mu    sync.Mutex
	count int
}

func (r *Runner) newProgress(total int, opts Options) *progress {
	every := opts.ProgressEvery
	if every <= 0 {
		every = 100
	}
	p := &progress{r: r, total: total, every: every, start: r.now(), verbose: opts.Verbose}
	if opts.ShowProgress {
		p.bar = pb.New(total)
		p.bar.SetWriter(r.out)
		p.bar.SetTemplateString(`{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ percent . }} | ETA {{ rtime . "%s" }}`)
		p.bar.Set("prefix", "Resolving")
		p.bar.Start()
	}
	return p
}

func (p *progress) step(i int, done []bool, res shared.RowResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	done[i] = true
	p.count++
	if p.bar != nil {
		p.bar.Increment()
	} else if p.verbose {
		p.printRow(res)
	}
	if p.count%p.every != 0 {
		return
	}

	elapsed := p.r.now().Sub(p.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.count) / elapsed
	}
	eta := 0.0
	if rate > 0 {
		eta = float64(p.total-p.count) / rate
	}
	m := p.r.pipeline.Metrics.Snapshot()
	p.r.logger.Info("progress", "done", p.count, "total", p.total, "rate", rate, "eta_seconds", eta)
	if p.bar != nil {
		return
	}
	p.r.console.Info("Progress: %d/%d songs (%.2f/sec, ETA: %.1fm)", p.count, p.total, rate, eta/60)
	p.r.console.Info("  Accepted: %d, Queued: %d, Skipped: %d, Errors: %d", m.Accepted, m.Queued, m.Skipped, m.Errors)
}

func (p *progress) printRow(res shared.RowResult) {
	label := text.Pad(shared.TruncateString(res.Label(), 48), 48, ' ')
	rec := res.Canonical
	if rec == nil {
		fmt.Fprintf(p.r.out, "  [%d/%d] %s -\n", p.count, p.total, label)
		return
	}
	tier := rec.Tier()
	fmt.Fprintf(p.r.out, "  [%d/%d] %s %s %.2f\n",
		p.count, p.total, label, shared.TierColor(tier).Sprintf("%-6s", tier), rec.Canonicality.Score)
}

func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
