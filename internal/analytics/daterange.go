package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used in range keys and API parameters.
const DateLayout = "2006-01-02"

// rangeKeySeparator joins the two dates of a range key. It must never occur in
// DateLayout output.
const rangeKeySeparator = "_"

// DateRange is an inclusive [Start, End] interval of calendar dates.
// Both dates are stored as midnight UTC so day arithmetic is exact.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LoadLocation resolves the reference time zone. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// CalendarDate returns the calendar date of t in loc as midnight UTC.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// truncateDate drops the clock part of a date value, keeping its own calendar fields.
func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange builds a range from two calendar dates. The clock part of both
// values is ignored.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDate(start), End: truncateDate(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end %s is before start %s",
			ErrInvalidDateRange, r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates into a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidDateRange, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidDateRange, end)
	}
	return NewDateRange(s, e)
}

// TrailingRange returns the range of the last days calendar days ending on
// asOf's date in loc.
func TrailingRange(asOf time.Time, days int, loc *time.Location) (DateRange, error) {
	if days < 1 {
		return DateRange{}, fmt.Errorf("%w: window of %d days", ErrInvalidDateRange, days)
	}
	end := CalendarDate(asOf, loc)
	return NewDateRange(end.AddDate(0, 0, -(days - 1)), end)
}

// Key encodes the range as "YYYY-MM-DD_YYYY-MM-DD". The format is persisted and
// must stay stable.
func (r DateRange) Key() string {
	return r.Start.Format(DateLayout) + rangeKeySeparator + r.End.Format(DateLayout)
}

// ParseRangeKey is the inverse of DateRange.Key.
func ParseRangeKey(key string) (DateRange, error) {
	start, end, ok := strings.Cut(key, rangeKeySeparator)
	if !ok {
		return DateRange{}, fmt.Errorf("%w: malformed range key %q", ErrInvalidDateRange, key)
	}
	return ParseDateRange(start, end)
}

// Both ends are midnight UTC, so whole days divide evenly. time.Duration
// saturates after about 292 years and cannot be used here.
const secondsPerDay = 24 * 60 * 60

// Days is the number of calendar days in the range, counting both ends.
func (r DateRange) Days() int {
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

// Contains reports whether the calendar date d falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	d = truncateDate(d)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Bounds returns the instants [start, end) covering the range in loc. The end
// instant is the first moment of the day after End.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)
	after := r.End.AddDate(0, 0, 1)
	end := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, loc)
	return start, end
}

// String implements fmt.Stringer.
func (r DateRange) String() string {
	return r.Key()
}

type dateRangeJSON struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// MarshalJSON encodes the range as {"start_date","end_date"}.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		StartDate: r.Start.Format(DateLayout),
		EndDate:   r.End.Format(DateLayout),
	})
}

// UnmarshalJSON decodes and validates a range encoded by MarshalJSON.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDateRange(raw.StartDate, raw.EndDate)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
