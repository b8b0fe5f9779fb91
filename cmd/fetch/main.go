// Command fetch downloads historical price series for a list of
// tickers from Yahoo Finance and writes per-ticker CSV/JSON files plus
// an optional merged JSON dataset.
//
// Exit codes: 0 on success (including partial ticker failures), 1 when
// every ticker failed or the run was interrupted, 2 on configuration
// errors (missing or empty ticker list, invalid dates, bad output dir).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"pricehistory/internal/batch"
	"pricehistory/internal/config"
	"pricehistory/internal/httpx"
	"pricehistory/internal/logger"
	"pricehistory/internal/output"
	"pricehistory/internal/provider"
	"pricehistory/internal/provider/ratelimit"
	"pricehistory/internal/provider/retry"
	"pricehistory/internal/provider/yahoo"
	"pricehistory/internal/tickerlist"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tickersFile = flag.String("tickers-file", getenv("TICKERS_FILE", ""), "input ticker list (txt/csv/tsv/json/jsonl)")
		col         = flag.String("col", getenv("TICKERS_COLUMN", ""), "for CSV/TSV lists: column name or 0-based index")
		outdir      = flag.String("outdir", getenv("OUTPUT_DIR", ""), "base output directory")
		start       = flag.String("start", getenv("START_DATE", ""), "start date YYYY-MM-DD")
		end         = flag.String("end", getenv("END_DATE", ""), "end date YYYY-MM-DD (default today)")
		interval    = flag.String("interval", getenv("INTERVAL", ""), "download interval (1d, 1wk, 1mo, ...)")
		autoAdjust  = flag.Bool("auto-adjust", getenvBool("AUTO_ADJUST", false), "adjust prices for dividends/splits")
		csvOn       = flag.Bool("csv", getenvBool("WRITE_CSV", false), "write per-ticker CSV files")
		jsonOn      = flag.Bool("json", getenvBool("WRITE_JSON", false), "write per-ticker JSON files")
		mergedOn    = flag.Bool("merged-json", getenvBool("WRITE_MERGED_JSON", false), "write merged JSON with all tickers")
		retries     = flag.Int("retries", 0, "retry attempts per ticker (default from config, 3)")
		sleep       = flag.Float64("sleep", -1, "base sleep seconds between requests (default from config, 0.5)")
		concurrency = flag.Int("concurrency", 0, "parallel fetches; 1 = sequential (default from config)")
		timeout     = flag.Int("timeout", 0, "request timeout seconds (default from config, 30)")
		configPath  = flag.String("config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
		dryRun      = flag.Bool("dry-run", false, "only parse and print tickers, then exit")
		maxPrint    = flag.Int("max-print", 50, "limit printed tickers with -dry-run")
		verbose     = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	log := logger.New(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config", "error", err)
		return exitConfig
	}
	// Flags win over config file and environment.
	if *tickersFile != "" {
		cfg.TickersFile = *tickersFile
	}
	if *col != "" {
		cfg.Column = *col
	}
	if *outdir != "" {
		cfg.OutDir = *outdir
	}
	if *start != "" {
		cfg.Start = *start
	}
	if *end != "" {
		cfg.End = *end
	}
	if *interval != "" {
		cfg.Interval = *interval
	}
	if *autoAdjust {
		cfg.AutoAdjust = true
	}
	if *csvOn {
		cfg.CSV = true
	}
	if *jsonOn {
		cfg.JSON = true
	}
	if *mergedOn {
		cfg.MergedJSON = true
	}
	if *retries > 0 {
		cfg.Retries = *retries
	}
	if *sleep >= 0 {
		cfg.SleepSec = *sleep
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *timeout > 0 {
		cfg.RequestTimeoutSec = *timeout
	}

	if cfg.TickersFile == "" {
		fmt.Fprintln(os.Stderr, "missing -tickers-file")
		flag.Usage()
		return exitConfig
	}

	entries, err := tickerlist.Load(cfg.TickersFile, cfg.Column)
	if err != nil {
		log.Error("ticker list", "error", err)
		return exitConfig
	}

	if *dryRun {
		fmt.Printf("Parsed %d tickers from %s:\n", len(entries), cfg.TickersFile)
		for i, e := range entries {
			if i >= *maxPrint {
				fmt.Printf("... and %d more\n", len(entries)-*maxPrint)
				break
			}
			fmt.Printf("  %d. %s\n", i+1, e.Symbol)
		}
		return exitOK
	}

	rng, iv, err := cfg.Resolve()
	if err != nil {
		log.Error("configuration", "error", err)
		return exitConfig
	}

	writer, err := output.NewWriter(cfg.OutDir, cfg.CSV, cfg.JSON, cfg.MergedJSON)
	if err != nil {
		log.Error("output dir", "error", err)
		return exitConfig
	}
	if !writer.Enabled() {
		log.Warn("no output formats enabled; fetching without writing (use -csv, -json or -merged-json)")
	}

	p := buildProvider(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := &batch.Runner{
		Provider:    p,
		Writer:      writer,
		Range:       rng,
		Interval:    iv,
		Adjust:      cfg.AutoAdjust,
		Concurrency: cfg.Concurrency,
		// Bound each ticker: all retry attempts plus backoff.
		FetchTimeout: time.Duration(cfg.RequestTimeoutSec*(cfg.Retries+1))*time.Second +
			time.Duration(cfg.SleepSec*float64(uint(1)<<uint(cfg.Retries))*float64(time.Second)),
		Logger: log,
	}

	log.Info("starting run",
		"tickers", len(entries), "range", rng.String(), "interval", iv.String(),
		"csv", cfg.CSV, "json", cfg.JSON, "merged", cfg.MergedJSON)

	summary, runErr := runner.Run(ctx, entries)
	printSummary(summary)

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		log.Warn("run interrupted")
		return exitFailed
	case runErr != nil:
		log.Error("run", "error", runErr)
		return exitFailed
	case summary.TotalFailure():
		return exitFailed
	}
	return exitOK
}

// buildProvider assembles the provider stack: yahoo client, retry with
// backoff, then a rate limiter (token bucket when a per-minute cap is
// configured, else a polite minimum interval).
func buildProvider(cfg config.Config) provider.Provider {
	httpClient := httpx.New(time.Duration(cfg.RequestTimeoutSec) * time.Second)

	var p provider.Provider = yahoo.New(yahoo.WithHTTPClient(httpClient))
	if cfg.Retries > 1 {
		p = &retry.Provider{
			P:         p,
			Attempts:  cfg.Retries,
			BaseDelay: time.Duration(cfg.SleepSec * float64(time.Second)),
		}
	}
	if cfg.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MaxRequestsPerMinute) / 60.0
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.SleepSec > 0 {
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(cfg.SleepSec * float64(time.Second))}
	}
	return p
}

func printSummary(s batch.Summary) {
	fmt.Printf("Done. attempted=%d written=%d empty=%d failed=%d skipped=%d dropped_rows=%d\n",
		s.Attempted, s.Written, s.Empty, s.Failed, s.Skipped, s.DroppedRows)
	if len(s.FailedSymbols) > 0 {
		fmt.Printf("Failed tickers: %s\n", strings.Join(s.FailedSymbols, ", "))
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
	}
	return def
}
