package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pricehistory/internal/provider"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, "2000-01-01", cfg.Start)
	require.Equal(t, "1d", cfg.Interval)
	require.Equal(t, 3, cfg.Retries)
	require.Equal(t, 1, cfg.Concurrency)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"tickers_file": "tickers.txt",
		"start": "2024-01-01",
		"interval": "1wk",
		"csv": true,
		"concurrency": 4
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tickers.txt", cfg.TickersFile)
	require.Equal(t, "1wk", cfg.Interval)
	require.True(t, cfg.CSV)
	require.Equal(t, 4, cfg.Concurrency)
	// Untouched fields keep defaults.
	require.Equal(t, 3, cfg.Retries)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"tickers_file: tickers.txt\nstart: 2024-01-01\nmerged_json: true\nsleep_sec: 1.5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tickers.txt", cfg.TickersFile)
	require.Equal(t, "2024-01-01", cfg.Start)
	require.True(t, cfg.MergedJSON)
	require.InEpsilon(t, 1.5, cfg.SleepSec, 0.0001)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("START_DATE", "2023-06-01")
	t.Setenv("WRITE_CSV", "true")
	t.Setenv("CONCURRENCY", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "2023-06-01", cfg.Start)
	require.True(t, cfg.CSV)
	require.Equal(t, 8, cfg.Concurrency)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Start = "2024-01-01"
	cfg.End = "2024-06-01"

	rng, iv, err := cfg.Resolve()
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", rng.Start.String())
	require.Equal(t, "2024-06-01", rng.End.String())
	require.Equal(t, provider.Daily, iv)
}

func TestResolve_EndDefaultsToToday(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Start = "2000-01-01"
	cfg.End = ""

	rng, _, err := cfg.Resolve()
	require.NoError(t, err)
	require.False(t, rng.End.IsZero())
	require.False(t, rng.Start.After(rng.End))
}

func TestResolve_StartAfterEndRejected(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Start = "2024-06-01"
	cfg.End = "2024-01-01"

	_, _, err := cfg.Resolve()
	require.Error(t, err)
}

func TestResolve_BadInterval(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Interval = "2d"

	_, _, err := cfg.Resolve()
	require.Error(t, err)
}

func TestResolve_BadDate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Start = "01/06/2024"

	_, _, err := cfg.Resolve()
	require.Error(t, err)
}
