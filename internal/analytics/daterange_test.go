package analytics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		wantDays int
		wantErr  bool
	}{
		{"single day", "2024-01-01", "2024-01-01", 1, false},
		{"ten days", "2024-01-01", "2024-01-10", 10, false},
		{"across leap day", "2024-02-28", "2024-03-01", 3, false},
		{"multi-century", "1000-01-01", "2024-12-31", 374374, false},
		{"end before start", "2024-01-10", "2024-01-01", 0, true},
		{"bad start", "2024-1-1", "2024-01-10", 0, true},
		{"bad end", "2024-01-01", "tomorrow", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.start, tt.end)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDateRange) {
					t.Fatalf("err = %v, want ErrInvalidDateRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateRange: %v", err)
			}
			if got := r.Days(); got != tt.wantDays {
				t.Errorf("Days() = %d, want %d", got, tt.wantDays)
			}
		})
	}
}

func TestRangeKeyRoundTrip(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 7))
	key := r.Key()
	if key != "2024-01-01_2024-01-07" {
		t.Fatalf("Key() = %q", key)
	}

	parsed, err := ParseRangeKey(key)
	if err != nil {
		t.Fatalf("ParseRangeKey: %v", err)
	}
	if !parsed.Start.Equal(r.Start) || !parsed.End.Equal(r.End) {
		t.Errorf("round trip = %v, want %v", parsed, r)
	}
	if parsed.Key() != key {
		t.Errorf("re-encoded key = %q, want %q", parsed.Key(), key)
	}
}

func TestParseRangeKey_Malformed(t *testing.T) {
	for _, key := range []string{"", "2024-01-01", "2024-01-01|2024-01-02", "2024-01-07_2024-01-01"} {
		if _, err := ParseRangeKey(key); !errors.Is(err, ErrInvalidDateRange) {
			t.Errorf("ParseRangeKey(%q) err = %v, want ErrInvalidDateRange", key, err)
		}
	}
}

func TestNewDateRange_IgnoresClock(t *testing.T) {
	r, err := NewDateRange(at(2024, 1, 1, 23, 59), at(2024, 1, 2, 0, 1))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	if r.Key() != "2024-01-01_2024-01-02" {
		t.Errorf("Key() = %q", r.Key())
	}
}

func TestCalendarDate_UsesLocation(t *testing.T) {
	tokyo, err := LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:00 UTC on Jan 1 is 05:00 Jan 2 in Tokyo.
	ts := at(2024, 1, 1, 20, 0)

	if got := CalendarDate(ts, time.UTC); !got.Equal(date(2024, 1, 1)) {
		t.Errorf("UTC date = %s", got.Format(DateLayout))
	}
	if got := CalendarDate(ts, tokyo); !got.Equal(date(2024, 1, 2)) {
		t.Errorf("Tokyo date = %s", got.Format(DateLayout))
	}
}

func TestBounds(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 7))
	start, end := r.Bounds(time.UTC)
	if !start.Equal(at(2024, 1, 1, 0, 0)) {
		t.Errorf("start = %s", start)
	}
	if !end.Equal(at(2024, 1, 8, 0, 0)) {
		t.Errorf("end = %s, want first instant of the day after the range", end)
	}

	ny, err := LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start, _ = r.Bounds(ny)
	if want := at(2024, 1, 1, 5, 0); !start.Equal(want) {
		t.Errorf("New York start = %s, want %s", start.UTC(), want)
	}
}

func TestTrailingRange(t *testing.T) {
	r, err := TrailingRange(at(2024, 3, 10, 15, 0), 7, time.UTC)
	if err != nil {
		t.Fatalf("TrailingRange: %v", err)
	}
	if r.Key() != "2024-03-04_2024-03-10" {
		t.Errorf("Key() = %q", r.Key())
	}
	if _, err := TrailingRange(time.Now(), 0, time.UTC); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("zero-day window err = %v", err)
	}
}

func TestDateRangeJSON(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 31))
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"start_date":"2024-01-01","end_date":"2024-01-31"}` {
		t.Errorf("json = %s", data)
	}

	var invalid DateRange
	if err := json.Unmarshal([]byte(`{"start_date":"2024-02-01","end_date":"2024-01-01"}`), &invalid); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("unmarshal inverted range err = %v", err)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Errorf("LoadLocation(\"\") = %v, %v; want UTC", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
