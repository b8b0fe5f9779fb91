// Package date provides a day-granularity calendar date, free of time
// zones and clock components. All price series in this project are
// keyed by these dates.
package date

import (
	"encoding/json"
	"fmt"
	"time"
)

// Format is the ISO-8601 layout used everywhere dates are rendered.
const Format = "2006-01-02"

// readFormat is slightly permissive on input (allows 2024-7-1).
const readFormat = "2006-1-2"

// Date represents a calendar day. The zero value is the zero day and
// reports IsZero.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month and day.
// Out-of-range components roll over the way time.Date does.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// FromTime truncates t to its calendar day in UTC.
func FromTime(t time.Time) Date {
	return New(t.UTC().Date())
}

// Today returns the current date.
func Today() Date { return New(time.Now().Date()) }

// Parse parses an ISO-8601 date string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(readFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return New(t.Date()), nil
}

// MustParse is like Parse but panics on error. Test helper.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}

// Time returns midnight UTC of that day.
func (d Date) Time() time.Time { return d.time() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Before reports whether d is strictly before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is strictly after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Add returns d shifted by the given number of days.
func (d Date) Add(days int) Date { return New(d.y, d.m, d.d+days) }

// String formats the date as ISO-8601.
func (d Date) String() string { return d.time().Format(Format) }

// MarshalJSON encodes the date as an ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO-8601 string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Marshaler = (*Date)(nil)
var _ json.Unmarshaler = (*Date)(nil)

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date
	End   Date
}

// NewRange builds a Range and validates its ordering. An invalid range
// is a configuration error and must be rejected before any fetch.
func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate reports an error when Start is after End.
func (r Range) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("start %s is after end %s", r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls inside the range, boundaries included.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Identifier returns a filesystem-friendly tag for the range,
// e.g. "2024-01-01_to_2024-06-30".
func (r Range) Identifier() string {
	return fmt.Sprintf("%s_to_%s", r.Start, r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s -> %s", r.Start, r.End)
}
