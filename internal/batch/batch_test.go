package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricehistory/internal/date"
	"pricehistory/internal/output"
	"pricehistory/internal/provider"
	"pricehistory/internal/series"
	"pricehistory/internal/tickerlist"
)

// stubProvider serves canned bars or errors per symbol.
type stubProvider struct {
	mu    sync.Mutex
	bars  map[string][]provider.Bar
	errs  map[string]error
	calls []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) History(_ context.Context, symbol string, _ date.Range, _ provider.Interval, _ bool) ([]provider.Bar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	s.mu.Unlock()
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	return s.bars[symbol], nil
}

func dayBar(day string, close float64) provider.Bar {
	return provider.Bar{
		Timestamp: date.MustParse(day).Time(),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    10,
	}
}

func entries(symbols ...string) []tickerlist.Entry {
	out := make([]tickerlist.Entry, len(symbols))
	for i, s := range symbols {
		out[i] = tickerlist.Entry{Symbol: s}
	}
	return out
}

func newRunner(t *testing.T, p provider.Provider) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := output.NewWriter(dir, true, true, true)
	require.NoError(t, err)
	rng, err := date.NewRange(date.MustParse("2024-01-01"), date.MustParse("2024-01-31"))
	require.NoError(t, err)
	return &Runner{
		Provider: p,
		Writer:   w,
		Range:    rng,
		Interval: provider.Daily,
	}, dir
}

func readMerged(t *testing.T, dir string) map[string][]series.PriceRecord {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "JSON", "merged", "merged_2024-01-01_to_2024-01-31_1d.json"))
	require.NoError(t, err)
	var doc struct {
		Series map[string][]series.PriceRecord `json:"series"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	return doc.Series
}

func TestRun_PartialFailure(t *testing.T) {
	t.Parallel()

	p := &stubProvider{
		bars: map[string][]provider.Bar{
			"A-USD": {dayBar("2024-01-02", 1)},
			"C-USD": {dayBar("2024-01-02", 3)},
		},
		errs: map[string]error{"B-USD": errors.New("provider down")},
	}
	r, dir := newRunner(t, p)

	summary, err := r.Run(context.Background(), entries("A-USD", "B-USD", "C-USD"))
	require.NoError(t, err)

	require.Equal(t, 3, summary.Attempted)
	require.Equal(t, 2, summary.Written)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, []string{"B-USD"}, summary.FailedSymbols)
	require.False(t, summary.TotalFailure(), "partial failure must not be a total failure")

	// A and C written, B absent everywhere but the summary.
	require.FileExists(t, filepath.Join(dir, "CSV", "A-USD.csv"))
	require.FileExists(t, filepath.Join(dir, "CSV", "C-USD.csv"))
	require.NoFileExists(t, filepath.Join(dir, "CSV", "B-USD.csv"))

	merged := readMerged(t, dir)
	require.Len(t, merged, 2)
	require.Contains(t, merged, "A-USD")
	require.Contains(t, merged, "C-USD")
	require.NotContains(t, merged, "B-USD")
}

func TestRun_EmptyTickerCountedEmpty(t *testing.T) {
	t.Parallel()

	p := &stubProvider{bars: map[string][]provider.Bar{}}
	r, dir := newRunner(t, p)

	summary, err := r.Run(context.Background(), entries("NODATA-USD"))
	require.NoError(t, err)

	require.Equal(t, 1, summary.Empty)
	require.Zero(t, summary.Failed)
	require.Zero(t, summary.Written)

	// Empty still writes files and appears in the merged mapping.
	require.FileExists(t, filepath.Join(dir, "CSV", "NODATA-USD.csv"))
	require.FileExists(t, filepath.Join(dir, "JSON", "NODATA-USD.json"))
	merged := readMerged(t, dir)
	require.Contains(t, merged, "NODATA-USD")
	require.Empty(t, merged["NODATA-USD"])
}

func TestRun_TotalFailure(t *testing.T) {
	t.Parallel()

	p := &stubProvider{errs: map[string]error{
		"A-USD": errors.New("down"),
		"B-USD": errors.New("down"),
	}}
	r, _ := newRunner(t, p)

	summary, err := r.Run(context.Background(), entries("A-USD", "B-USD"))
	require.NoError(t, err)
	require.True(t, summary.TotalFailure())
}

func TestRun_InvalidRangeFailsBeforeFetch(t *testing.T) {
	t.Parallel()

	p := &stubProvider{}
	r, _ := newRunner(t, p)
	r.Range = date.Range{Start: date.MustParse("2024-06-01"), End: date.MustParse("2024-01-01")}

	_, err := r.Run(context.Background(), entries("A-USD"))
	require.Error(t, err)
	require.Empty(t, p.calls, "no fetch may happen with an invalid range")
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()

	bars := map[string][]provider.Bar{}
	syms := []string{"A-USD", "B-USD", "C-USD", "D-USD", "E-USD", "F-USD"}
	for _, s := range syms {
		bars[s] = []provider.Bar{dayBar("2024-01-02", 1)}
	}
	p := &stubProvider{bars: bars}
	r, dir := newRunner(t, p)
	r.Concurrency = 4

	summary, err := r.Run(context.Background(), entries(syms...))
	require.NoError(t, err)
	require.Equal(t, len(syms), summary.Written)
	require.Len(t, readMerged(t, dir), len(syms))
}

func TestRun_RankedFileNames(t *testing.T) {
	t.Parallel()

	p := &stubProvider{bars: map[string][]provider.Bar{"BTC-USD": {dayBar("2024-01-02", 1)}}}
	r, dir := newRunner(t, p)

	_, err := r.Run(context.Background(), []tickerlist.Entry{{Symbol: "BTC-USD", Rank: 1}})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "CSV", "1.BTC-USD.csv"))
}

func TestRun_CanceledSkipsMergedFile(t *testing.T) {
	t.Parallel()

	p := &stubProvider{bars: map[string][]provider.Bar{"A-USD": {dayBar("2024-01-02", 1)}}}
	r, dir := newRunner(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx, entries("A-USD", "B-USD"))
	require.ErrorIs(t, err, context.Canceled)
	require.NoFileExists(t, filepath.Join(dir, "JSON", "merged", "merged_2024-01-01_to_2024-01-31_1d.json"))

	// Tickers the run never reached are skipped, not failed.
	require.Equal(t, 2, summary.Skipped)
	require.Zero(t, summary.Attempted)
	require.Zero(t, summary.Failed)
	require.Empty(t, summary.FailedSymbols)
	require.Empty(t, p.calls)
	for _, res := range summary.Results {
		require.Equal(t, StatusSkipped, res.Status)
	}
}

func TestRun_DroppedRowsCounted(t *testing.T) {
	t.Parallel()

	p := &stubProvider{bars: map[string][]provider.Bar{
		"A-USD": {
			dayBar("2024-01-02", 1),
			{Timestamp: time.Time{}, Close: 9}, // unparseable timestamp
			dayBar("2024-01-02", 7),            // duplicate date
		},
	}}
	r, _ := newRunner(t, p)

	summary, err := r.Run(context.Background(), entries("A-USD"))
	require.NoError(t, err)
	require.Equal(t, 2, summary.DroppedRows)
	require.Equal(t, 1, summary.Written)
}

func TestRun_ClipsBarsOutsideRange(t *testing.T) {
	t.Parallel()

	p := &stubProvider{bars: map[string][]provider.Bar{
		"A-USD": {
			dayBar("2023-12-29", 1), // before start
			dayBar("2024-01-02", 2),
			dayBar("2024-02-01", 3), // past end
		},
	}}
	r, dir := newRunner(t, p)

	summary, err := r.Run(context.Background(), entries("A-USD"))
	require.NoError(t, err)
	require.Equal(t, 2, summary.DroppedRows)

	merged := readMerged(t, dir)
	require.Len(t, merged["A-USD"], 1)
	require.Equal(t, date.MustParse("2024-01-02"), merged["A-USD"][0].Date)
}
