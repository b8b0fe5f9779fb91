// Package tickerlist parses ticker symbols out of loosely formatted
// list files: plain or numbered/bulleted text, CSV/TSV tables, JSON
// arrays and JSONL streams.
package tickerlist

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmpty is returned when a list file yields no symbols at all.
// It is a fatal configuration error: there is nothing to fetch.
var ErrEmpty = errors.New("ticker list is empty")

// Entry is one parsed ticker. Rank carries an optional numbering
// annotation from the source file (1-based); 0 means none. Rank is
// cosmetic metadata for output naming, never part of identity.
type Entry struct {
	Symbol string
	Rank   int
}

var (
	// Numbered prefixes like "1.", "2)", "$3:", "4 -".
	numPrefix = regexp.MustCompile(`^\s*\$?(\d+)([.):])?\s*(-\s*)?`)
	// Bullets -, * or •.
	bulletPrefix = regexp.MustCompile(`^\s*[-*\x{2022}]\s*`)
	// Yahoo-style symbols: letter or ^, then letters/digits or . - =.
	tickerRe = regexp.MustCompile(`^[A-Za-z^][A-Za-z0-9.\-=]*$`)
)

// commonColumns are header names auto-detected in tabular and object inputs.
var commonColumns = []string{
	"ticker", "tickers", "symbol", "symbols",
	"Ticker", "Tickers", "Symbol", "Symbols",
	"Ticker Symbol", "SYMBOL", "TICKER",
}

// Load reads and parses a ticker list file, choosing the parser from
// the file extension (.csv, .tsv, .json, .jsonl; anything else is
// treated as text). colHint applies to tabular input only: a column
// name or 0-based index.
func Load(path, colHint string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ticker list: %w", err)
	}
	defer f.Close()

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err = ParseTable(f, ',', colHint)
	case ".tsv":
		entries, err = ParseTable(f, '\t', colHint)
	case ".json":
		entries, err = ParseJSON(f)
	case ".jsonl":
		entries, err = ParseJSONL(f)
	default:
		entries, err = ParseText(f)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return entries, nil
}

// ParseText parses free-form text, one symbol per line. Numbered and
// bulleted prefixes are stripped (the number becomes the Rank), `#`
// lines are comments, trailing " - Company Name" annotations are
// dropped, and lines holding separator-joined symbols are split.
// Duplicates collapse to the first occurrence, case-insensitively,
// preserving first-seen casing and order.
func ParseText(r io.Reader) ([]Entry, error) {
	d := newDeduper()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rank := 0
		if m := numPrefix.FindStringSubmatch(line); m != nil && m[1] != "" {
			// A bare number with no symbol after it is not a rank.
			rest := line[len(m[0]):]
			if rest != "" {
				rank, _ = strconv.Atoi(m[1])
				line = rest
			}
		}
		line = bulletPrefix.ReplaceAllString(line, "")

		// "AAPL - Apple Inc." keeps the left token only.
		if left, _, found := strings.Cut(line, " - "); found {
			if left = strings.TrimSpace(left); left != "" {
				line = left
			}
		}
		// Trailing inline comment.
		if left, _, found := strings.Cut(line, " #"); found {
			line = strings.TrimSpace(left)
		}

		if fields := splitAny(line, ",|;\t"); fields != nil {
			for _, p := range fields {
				if tickerRe.MatchString(p) {
					d.add(p, 0) // separator lines never carry a rank per symbol
				}
			}
			continue
		}
		for _, tok := range strings.Fields(line) {
			if tickerRe.MatchString(tok) {
				d.add(tok, rank)
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ticker list: %w", err)
	}
	return d.entries, nil
}

// ParseTable parses CSV or TSV input. The first row is a header.
// colHint selects the symbol column by name or 0-based index; when
// empty, a well-known column name is auto-detected, else column 0.
func ParseTable(r io.Reader, comma rune, colHint string) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	col := 0
	switch {
	case colHint == "":
		for i, name := range header {
			if containsString(commonColumns, strings.TrimSpace(name)) {
				col = i
				break
			}
		}
	default:
		if idx, err := strconv.Atoi(colHint); err == nil {
			// Negative indices count from the right, pandas-style.
			if idx < 0 {
				idx += len(header)
			}
			if idx < 0 || idx >= len(header) {
				return nil, fmt.Errorf("column index %s out of range, table has %d columns", colHint, len(header))
			}
			col = idx
		} else {
			found := -1
			for i, name := range header {
				if strings.TrimSpace(name) == colHint {
					found = i
					break
				}
			}
			if found < 0 {
				return nil, fmt.Errorf("column %q not found, available: %v", colHint, header)
			}
			col = found
		}
	}

	d := newDeduper()
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if s := strings.TrimSpace(row[col]); s != "" && tickerRe.MatchString(s) {
			d.add(s, 0)
		}
	}
	return d.entries, nil
}

// ParseJSON parses a JSON array of symbol strings or of objects
// carrying one of the well-known ticker keys.
func ParseJSON(r io.Reader) ([]Entry, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json ticker list: %w", err)
	}
	d := newDeduper()
	for _, msg := range raw {
		sym, err := symbolFromJSON(msg)
		if err != nil {
			return nil, err
		}
		if sym != "" {
			d.add(sym, 0)
		}
	}
	return d.entries, nil
}

// ParseJSONL parses newline-delimited JSON: one string or object per line.
func ParseJSONL(r io.Reader) ([]Entry, error) {
	d := newDeduper()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sym, err := symbolFromJSON(json.RawMessage(line))
		if err != nil {
			return nil, err
		}
		if sym != "" {
			d.add(sym, 0)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl ticker list: %w", err)
	}
	return d.entries, nil
}

// objectKeys extend commonColumns for JSON object inputs.
var objectKeys = append(append([]string{}, commonColumns...),
	"TickerSymbol", "RIC", "Yahoo", "YahooSymbol")

func symbolFromJSON(msg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(msg, &obj); err != nil {
		return "", errors.New("unsupported JSON structure: want strings or objects")
	}
	for _, k := range objectKeys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}

// deduper collapses case-insensitive duplicates, keeping the first
// occurrence's casing, rank and position.
type deduper struct {
	seen    map[string]struct{}
	entries []Entry
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[string]struct{})}
}

func (d *deduper) add(symbol string, rank int) {
	key := strings.ToUpper(symbol)
	if _, dup := d.seen[key]; dup {
		return
	}
	d.seen[key] = struct{}{}
	d.entries = append(d.entries, Entry{Symbol: symbol, Rank: rank})
}

func splitAny(s, seps string) []string {
	if !strings.ContainsAny(s, seps) {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
