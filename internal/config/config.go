package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pricehistory/internal/date"
	"pricehistory/internal/provider"
)

// Config holds one run's settings. Sources layer as defaults < config
// file < environment < CLI flags.
type Config struct {
	TickersFile string `json:"tickers_file" yaml:"tickers_file"`
	// Column selects the ticker column for CSV/TSV lists: a header
	// name or a 0-based index. Empty means auto-detect.
	Column string `json:"column" yaml:"column"`
	OutDir string `json:"outdir" yaml:"outdir"`

	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"` // empty = today
	Interval string `json:"interval" yaml:"interval"`

	AutoAdjust bool `json:"auto_adjust" yaml:"auto_adjust"`
	CSV        bool `json:"csv" yaml:"csv"`
	JSON       bool `json:"json" yaml:"json"`
	MergedJSON bool `json:"merged_json" yaml:"merged_json"`

	Retries              int     `json:"retries" yaml:"retries"`
	SleepSec             float64 `json:"sleep_sec" yaml:"sleep_sec"`
	Concurrency          int     `json:"concurrency" yaml:"concurrency"`
	RequestTimeoutSec    int     `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	MaxRequestsPerMinute int     `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int     `json:"burst" yaml:"burst"`
}

func Default() Config {
	return Config{
		OutDir:            "Yahoo_Crypto_Data",
		Start:             "2000-01-01",
		Interval:          "1d",
		Retries:           3,
		SleepSec:          0.5,
		Concurrency:       1,
		RequestTimeoutSec: 30,
	}
}

// Load reads config from path. If path is empty it looks for
// config.json and config.yaml in the working directory; a missing file
// returns defaults. The extension picks the format (.yaml/.yml or
// JSON). Environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				if err := yaml.Unmarshal(b, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config: %w", err)
				}
			default:
				if err := json.Unmarshal(b, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config: %w", err)
				}
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKERS_FILE"); v != "" {
		cfg.TickersFile = v
	}
	if v := os.Getenv("TICKERS_COLUMN"); v != "" {
		cfg.Column = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutDir = v
	}
	if v := os.Getenv("START_DATE"); v != "" {
		cfg.Start = v
	}
	if v := os.Getenv("END_DATE"); v != "" {
		cfg.End = v
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		cfg.Interval = v
	}
	if v := os.Getenv("AUTO_ADJUST"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.AutoAdjust = b
		}
	}
	if v := os.Getenv("WRITE_CSV"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.CSV = b
		}
	}
	if v := os.Getenv("WRITE_JSON"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.JSON = b
		}
	}
	if v := os.Getenv("WRITE_MERGED_JSON"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.MergedJSON = b
		}
	}
	if v := os.Getenv("RETRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Retries = x
		}
	}
	if v := os.Getenv("SLEEP_SEC"); v != "" {
		var x float64
		fmt.Sscanf(v, "%g", &x)
		if x >= 0 {
			cfg.SleepSec = x
		}
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Concurrency = x
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Burst = x
		}
	}
}

func parseBool(v string) (value, ok bool) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

// Resolve validates the run settings and produces the typed date range
// and interval. An empty end date resolves to today. Any failure here
// is a configuration error and must abort before the first fetch.
func (c Config) Resolve() (date.Range, provider.Interval, error) {
	start, err := date.Parse(c.Start)
	if err != nil {
		return date.Range{}, "", fmt.Errorf("start: %w", err)
	}
	end := date.Today()
	if c.End != "" {
		if end, err = date.Parse(c.End); err != nil {
			return date.Range{}, "", fmt.Errorf("end: %w", err)
		}
	}
	rng, err := date.NewRange(start, end)
	if err != nil {
		return date.Range{}, "", err
	}
	interval, err := provider.ParseInterval(c.Interval)
	if err != nil {
		return date.Range{}, "", err
	}
	return rng, interval, nil
}
