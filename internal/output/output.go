// Package output serializes normalized series to disk.
//
// Layout under the base directory:
//
//	CSV/<name>.csv          per-ticker CSV, header date,open,high,low,close,volume,adjusted
//	JSON/<name>.json        per-ticker document (see TickerDocument)
//	JSON/merged/merged_<start>_to_<end>_<interval>.json
//
// <name> is "<rank>.<SYMBOL>" when the ticker list carried a rank
// annotation, plain "<SYMBOL>" otherwise.
//
// Per-ticker JSON is an object envelope, not a bare array: the symbol,
// interval and resolved date range ride along so each file is
// self-describing. Prices serialize as decimal strings to keep exact
// values across round trips.
//
// Every write goes to a temp file in the target directory first and is
// renamed into place, so an interrupted run never leaves a partial file.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pricehistory/internal/date"
	"pricehistory/internal/provider"
	"pricehistory/internal/series"
)

// csvHeader is the canonical CSV column set.
var csvHeader = []string{"date", "open", "high", "low", "close", "volume", "adjusted"}

// TickerDocument is the per-ticker JSON envelope.
type TickerDocument struct {
	Symbol   string               `json:"symbol"`
	Interval provider.Interval    `json:"interval"`
	Start    date.Date            `json:"start"`
	End      date.Date            `json:"end"`
	Records  []series.PriceRecord `json:"records"`
}

// NewTickerDocument builds the envelope for one series. A nil record
// slice becomes an empty array so "fetched, no data" stays visible.
func NewTickerDocument(s series.TickerSeries, rng date.Range, interval provider.Interval) TickerDocument {
	records := s.Records
	if records == nil {
		records = []series.PriceRecord{}
	}
	return TickerDocument{
		Symbol:   s.Symbol,
		Interval: interval,
		Start:    rng.Start,
		End:      rng.End,
		Records:  records,
	}
}

// FileName returns the per-ticker base name: "<rank>.<symbol>" when a
// rank annotation exists, otherwise the symbol alone.
func FileName(symbol string, rank int) string {
	if rank > 0 {
		return fmt.Sprintf("%d.%s", rank, symbol)
	}
	return symbol
}

// Writer writes enabled output formats under one base directory.
// Format toggles are independent; at least one should be on for the
// run to produce anything.
type Writer struct {
	CSV    bool
	JSON   bool
	Merged bool

	csvDir    string
	jsonDir   string
	mergedDir string
}

// NewWriter prepares a Writer and creates the directories the enabled
// formats need. Creation is idempotent.
func NewWriter(baseDir string, csvOn, jsonOn, mergedOn bool) (*Writer, error) {
	w := &Writer{
		CSV:       csvOn,
		JSON:      jsonOn,
		Merged:    mergedOn,
		csvDir:    filepath.Join(baseDir, "CSV"),
		jsonDir:   filepath.Join(baseDir, "JSON"),
		mergedDir: filepath.Join(baseDir, "JSON", "merged"),
	}
	dirs := []string{}
	if csvOn {
		dirs = append(dirs, w.csvDir)
	}
	if jsonOn {
		dirs = append(dirs, w.jsonDir)
	}
	if mergedOn {
		dirs = append(dirs, w.mergedDir)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return w, nil
}

// Enabled reports whether any output format is switched on.
func (w *Writer) Enabled() bool { return w.CSV || w.JSON || w.Merged }

// WriteTicker writes one ticker's series in every enabled per-ticker
// format and returns the paths written. An empty series still produces
// files (header-only CSV, empty records array) so downstream consumers
// can tell "attempted, no data" from "not attempted". The first write
// error aborts the remaining formats for this ticker.
func (w *Writer) WriteTicker(name string, doc TickerDocument) ([]string, error) {
	var paths []string
	if w.CSV {
		p := filepath.Join(w.csvDir, name+".csv")
		if err := writeAtomic(p, func(f io.Writer) error {
			return writeCSV(f, doc.Records)
		}); err != nil {
			return paths, fmt.Errorf("write csv: %w", err)
		}
		paths = append(paths, p)
	}
	if w.JSON {
		p := filepath.Join(w.jsonDir, name+".json")
		if err := writeAtomic(p, func(f io.Writer) error {
			return writeJSON(f, doc)
		}); err != nil {
			return paths, fmt.Errorf("write json: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// mergedDocument is the on-disk shape of the merged dataset.
type mergedDocument struct {
	Start    date.Date                       `json:"start"`
	End      date.Date                       `json:"end"`
	Interval provider.Interval               `json:"interval"`
	Series   map[string][]series.PriceRecord `json:"series"`
}

// WriteMerged serializes the merged dataset once, after all tickers
// reached a terminal state. An empty dataset still produces a valid
// document with an empty series mapping.
func (w *Writer) WriteMerged(m *series.MergedDataset) (string, error) {
	doc := mergedDocument{
		Start:    m.Range.Start,
		End:      m.Range.End,
		Interval: m.Interval,
		Series:   m.Series,
	}
	if doc.Series == nil {
		doc.Series = map[string][]series.PriceRecord{}
	}
	name := fmt.Sprintf("merged_%s_%s.json", m.Range.Identifier(), m.Interval)
	p := filepath.Join(w.mergedDir, name)
	if err := writeAtomic(p, func(f io.Writer) error {
		return writeJSON(f, doc)
	}); err != nil {
		return "", fmt.Errorf("write merged json: %w", err)
	}
	return p, nil
}

func writeCSV(f io.Writer, records []series.PriceRecord) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date.String(),
			r.Open.String(),
			r.High.String(),
			r.Low.String(),
			r.Close.String(),
			fmt.Sprint(r.Volume),
			fmt.Sprint(r.Adjusted),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(f io.Writer, v any) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeAtomic writes through a temp file in the destination directory
// and renames it into place. On any error the temp file is removed.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	name := tmp.Name()
	tmp = nil
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
