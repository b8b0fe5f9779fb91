// Package series holds the canonical record shape for historical
// prices and the normalizer that produces it from raw provider bars.
package series

import (
	"sort"

	"github.com/shopspring/decimal"

	"pricehistory/internal/date"
	"pricehistory/internal/provider"
)

// PriceRecord is the canonical row of a historical series. Prices are
// decimals so CSV and JSON output round-trip without float drift.
type PriceRecord struct {
	Date     date.Date       `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   int64           `json:"volume"`
	Adjusted bool            `json:"adjusted"`
}

// TickerSeries is one symbol's ordered series. Records is sorted by
// strictly increasing date; an empty Records is a valid series meaning
// the symbol had no data in range.
type TickerSeries struct {
	Symbol  string
	Records []PriceRecord
}

// Empty reports whether the series carries no records.
func (s TickerSeries) Empty() bool { return len(s.Records) == 0 }

// Normalize converts raw bars into a canonical TickerSeries.
//
// Bar timestamps are truncated to their UTC calendar day. Rows with a
// zero timestamp are dropped and counted. The result is sorted by
// ascending date with exact-duplicate dates removed (first occurrence
// wins), so consecutive records always have strictly increasing dates.
func Normalize(symbol string, bars []provider.Bar) (TickerSeries, int) {
	records := make([]PriceRecord, 0, len(bars))
	dropped := 0
	for _, b := range bars {
		if b.Timestamp.IsZero() {
			dropped++
			continue
		}
		records = append(records, PriceRecord{
			Date:     date.FromTime(b.Timestamp),
			Open:     decimal.NewFromFloat(b.Open),
			High:     decimal.NewFromFloat(b.High),
			Low:      decimal.NewFromFloat(b.Low),
			Close:    decimal.NewFromFloat(b.Close),
			Volume:   b.Volume,
			Adjusted: b.Adjusted,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	// Drop duplicate dates, keeping the first occurrence.
	deduped := records[:0]
	var last date.Date
	for _, r := range records {
		if !last.IsZero() && r.Date == last {
			dropped++
			continue
		}
		deduped = append(deduped, r)
		last = r.Date
	}

	return TickerSeries{Symbol: symbol, Records: deduped}, dropped
}

// MergedDataset maps each symbol to its series for one run, together
// with the range and interval that produced it. It is accumulated
// ticker by ticker and written once at the end of a run.
type MergedDataset struct {
	Range    date.Range
	Interval provider.Interval
	Series   map[string][]PriceRecord
}

// NewMergedDataset returns an empty dataset for the given run settings.
func NewMergedDataset(rng date.Range, interval provider.Interval) *MergedDataset {
	return &MergedDataset{
		Range:    rng,
		Interval: interval,
		Series:   make(map[string][]PriceRecord),
	}
}

// Add records one ticker's series. Empty series are stored too so the
// merged document distinguishes "fetched, no data" from "absent".
func (m *MergedDataset) Add(s TickerSeries) {
	records := s.Records
	if records == nil {
		records = []PriceRecord{}
	}
	m.Series[s.Symbol] = records
}

// Symbols returns the dataset keys in sorted order.
func (m *MergedDataset) Symbols() []string {
	out := make([]string, 0, len(m.Series))
	for sym := range m.Series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
