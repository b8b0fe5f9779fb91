// Package batch drives one fetch-and-write run over a ticker list.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pricehistory/internal/date"
	"pricehistory/internal/output"
	"pricehistory/internal/provider"
	"pricehistory/internal/series"
	"pricehistory/internal/tickerlist"
)

// Status is a ticker's terminal state within one run.
type Status string

const (
	StatusEmpty   Status = "empty"   // fetched fine, zero rows in range
	StatusWritten Status = "written" // fetched and written
	StatusFailed  Status = "failed"  // fetch or write error
	StatusSkipped Status = "skipped" // never attempted, run canceled first
)

// Result is the outcome for one ticker.
type Result struct {
	Symbol  string
	Status  Status
	Err     error
	Paths   []string
	Dropped int
}

// Summary aggregates per-ticker outcomes for one run.
type Summary struct {
	Attempted     int
	Written       int
	Empty         int
	Failed        int
	Skipped       int
	DroppedRows   int
	FailedSymbols []string
	Results       []Result
}

// TotalFailure reports whether every attempted ticker failed. Only a
// total failure turns into a non-zero exit; partial failures do not.
func (s Summary) TotalFailure() bool {
	return s.Attempted > 0 && s.Failed == s.Attempted
}

// Runner executes a batch over an injected provider and writer.
type Runner struct {
	Provider provider.Provider
	Writer   *output.Writer
	Range    date.Range
	Interval provider.Interval
	Adjust   bool

	// Concurrency bounds parallel fetches; values <= 1 mean sequential.
	Concurrency int
	// FetchTimeout bounds one provider call. Zero means no extra bound
	// beyond the run context.
	FetchTimeout time.Duration

	Logger *slog.Logger
}

// Run processes every ticker to a terminal state, then finalizes the
// merged dataset. The summary covers all tickers even when some fail;
// the returned error is reserved for run-level problems (cancellation,
// merged-file write failure).
func (r *Runner) Run(ctx context.Context, entries []tickerlist.Entry) (Summary, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := r.Range.Validate(); err != nil {
		return Summary{}, fmt.Errorf("date range: %w", err)
	}

	var (
		mu      sync.Mutex
		merged  = series.NewMergedDataset(r.Range, r.Interval)
		results = make([]Result, len(entries))
	)

	process := func(ctx context.Context, i int, entry tickerlist.Entry) {
		var res Result
		if ctx.Err() != nil {
			// Never reached the provider, so not a failure.
			res = Result{Symbol: entry.Symbol, Status: StatusSkipped, Err: ctx.Err()}
		} else {
			res = r.processTicker(ctx, entry, merged, &mu, log, i, len(entries))
		}
		mu.Lock()
		results[i] = res
		mu.Unlock()
	}

	if r.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Concurrency)
		for i, entry := range entries {
			i, entry := i, entry
			g.Go(func() error {
				process(gctx, i, entry)
				return nil
			})
		}
		// workers record failures in results instead of failing the group
		_ = g.Wait()
	} else {
		for i, entry := range entries {
			process(ctx, i, entry)
		}
	}

	summary := summarize(results)

	if err := ctx.Err(); err != nil {
		// Interrupted: per-ticker files already renamed into place are
		// complete, but the merged document must not be finalized.
		return summary, err
	}

	if r.Writer != nil && r.Writer.Merged {
		path, err := r.Writer.WriteMerged(merged)
		if err != nil {
			return summary, err
		}
		log.Info("wrote merged dataset", "path", path, "tickers", len(merged.Series))
	}
	return summary, nil
}

func (r *Runner) processTicker(ctx context.Context, entry tickerlist.Entry, merged *series.MergedDataset, mu *sync.Mutex, log *slog.Logger, i, n int) Result {
	log.Info("fetching", "symbol", entry.Symbol, "progress", fmt.Sprintf("%d/%d", i+1, n))

	fetchCtx := ctx
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}

	bars, err := r.Provider.History(fetchCtx, entry.Symbol, r.Range, r.Interval, r.Adjust)
	if err != nil {
		log.Warn("fetch failed", "symbol", entry.Symbol, "error", err)
		return Result{Symbol: entry.Symbol, Status: StatusFailed, Err: err}
	}

	bars, clipped := clipToRange(bars, r.Range)
	ts, dropped := series.Normalize(entry.Symbol, bars)
	dropped += clipped
	if dropped > 0 {
		log.Warn("dropped rows", "symbol", entry.Symbol, "count", dropped)
	}

	var paths []string
	if r.Writer != nil {
		name := output.FileName(entry.Symbol, entry.Rank)
		doc := output.NewTickerDocument(ts, r.Range, r.Interval)
		paths, err = r.Writer.WriteTicker(name, doc)
		if err != nil {
			log.Warn("write failed", "symbol", entry.Symbol, "error", err)
			return Result{Symbol: entry.Symbol, Status: StatusFailed, Err: err, Paths: paths, Dropped: dropped}
		}
	}

	mu.Lock()
	merged.Add(ts)
	mu.Unlock()

	status := StatusWritten
	if ts.Empty() {
		status = StatusEmpty
		log.Info("no data in range", "symbol", entry.Symbol)
	}
	return Result{Symbol: entry.Symbol, Status: status, Paths: paths, Dropped: dropped}
}

// clipToRange drops bars dated outside rng. Yahoo sometimes tacks a
// bar just past the requested window onto the response.
func clipToRange(bars []provider.Bar, rng date.Range) ([]provider.Bar, int) {
	kept := make([]provider.Bar, 0, len(bars))
	for _, b := range bars {
		if rng.Contains(date.FromTime(b.Timestamp)) {
			kept = append(kept, b)
		}
	}
	return kept, len(bars) - len(kept)
}

func summarize(results []Result) Summary {
	s := Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusWritten:
			s.Written++
		case StatusEmpty:
			s.Empty++
		case StatusFailed:
			s.Failed++
			s.FailedSymbols = append(s.FailedSymbols, r.Symbol)
		case StatusSkipped:
			s.Skipped++
		}
		s.DroppedRows += r.Dropped
	}
	s.Attempted = len(results) - s.Skipped
	return s
}
