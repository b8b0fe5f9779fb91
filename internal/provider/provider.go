package provider

import (
	"context"
	"errors"
	"time"

	"pricehistory/internal/date"
)

// Bar is one raw time-series row as returned by a provider, before
// normalization. Field shapes follow what the upstream APIs deliver;
// canonicalization happens in the series package.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Adjusted  bool      `json:"adjusted"`
}

// Interval is the sampling granularity of a historical series. The
// values are provider wire tags, so any tag the provider understands
// (including intraday ones like "1h") is passed through as-is.
type Interval string

const (
	Daily   Interval = "1d"
	Weekly  Interval = "1wk"
	Monthly Interval = "1mo"
)

// knownIntervals lists every tag the Yahoo chart API accepts.
var knownIntervals = map[Interval]struct{}{
	"1m": {}, "2m": {}, "5m": {}, "15m": {}, "30m": {}, "60m": {}, "90m": {},
	"1h": {}, "1d": {}, "5d": {}, "1wk": {}, "1mo": {}, "3mo": {},
}

// ParseInterval validates an interval tag.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := knownIntervals[iv]; !ok {
		return "", errors.New("unknown interval " + s)
	}
	return iv, nil
}

func (i Interval) String() string { return string(i) }

// ErrInvalidSymbol is returned when the provider rejects the symbol
// itself (malformed or unknown ticker). Callers treat it like any
// other per-ticker failure but must not retry it.
var ErrInvalidSymbol = errors.New("invalid symbol")

// Provider retrieves historical bars for one symbol.
//
// A successful call with zero bars means the symbol has no data in the
// requested range. That is a normal outcome, not an error.
type Provider interface {
	Name() string
	History(ctx context.Context, symbol string, rng date.Range, interval Interval, adjust bool) ([]Bar, error)
}
