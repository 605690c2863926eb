package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

func completed(taskID int64, ts time.Time) models.CompletionEvent {
	return models.CompletionEvent{TaskID: taskID, UserID: "u1", EventType: models.EventCompleted, Timestamp: ts}
}

func TestAggregateEvents_CompletionRate(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 10))
	var events []models.CompletionEvent
	for d := 1; d <= 7; d++ {
		events = append(events, completed(1, at(2024, 1, d, 9, 0)))
	}
	events = append(events,
		models.CompletionEvent{TaskID: 1, EventType: models.EventViewed, Timestamp: at(2024, 1, 8, 9, 0)},
		models.CompletionEvent{TaskID: 1, EventType: models.EventSkipped, Timestamp: at(2024, 1, 9, 9, 0)},
		completed(1, at(2024, 1, 11, 9, 0)), // outside the range
	)

	agg, err := AggregateEvents(events, r, time.UTC)
	if err != nil {
		t.Fatalf("AggregateEvents: %v", err)
	}
	if agg.TotalCompletions != 7 {
		t.Errorf("TotalCompletions = %d, want 7", agg.TotalCompletions)
	}
	if math.Abs(agg.CompletionRate-0.7) > 1e-9 {
		t.Errorf("CompletionRate = %v, want 0.7", agg.CompletionRate)
	}
}

func TestAggregateEvents_DefaultCompletionMinutes(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 3))

	t.Run("empty", func(t *testing.T) {
		agg, err := AggregateEvents(nil, r, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		if agg.AverageCompletionTimeMinutes != DefaultCompletionMinutes {
			t.Errorf("average = %v, want %v", agg.AverageCompletionTimeMinutes, DefaultCompletionMinutes)
		}
		if agg.TotalCompletions != 0 || agg.CompletionRate != 0 {
			t.Errorf("got %+v, want zero counts", agg)
		}
		if len(agg.TimeOfDayDistribution) != 0 {
			t.Errorf("distribution = %v, want empty", agg.TimeOfDayDistribution)
		}
	})

	t.Run("one completion per day", func(t *testing.T) {
		events := []models.CompletionEvent{completed(1, at(2024, 1, 1, 9, 0)), completed(1, at(2024, 1, 2, 9, 0))}
		agg, err := AggregateEvents(events, r, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		if agg.AverageCompletionTimeMinutes != 15.0 {
			t.Errorf("average = %v, want 15.0", agg.AverageCompletionTimeMinutes)
		}
	})
}

func TestAggregateEvents_SessionMinutes(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 3))
	events := []models.CompletionEvent{
		completed(1, at(2024, 1, 1, 9, 0)),
		completed(1, at(2024, 1, 1, 9, 30)),
		completed(1, at(2024, 1, 2, 10, 0)),
		completed(1, at(2024, 1, 2, 10, 10)),
		completed(1, at(2024, 1, 2, 10, 5)),
		completed(1, at(2024, 1, 3, 7, 0)), // single completion, no session
	}

	agg, err := AggregateEvents(events, r, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if want := 20.0; agg.AverageCompletionTimeMinutes != want {
		t.Errorf("average = %v, want %v (30 and 10 minute sessions)", agg.AverageCompletionTimeMinutes, want)
	}
}

func TestAggregateEvents_TimeOfDay(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 2))
	events := []models.CompletionEvent{
		completed(1, at(2024, 1, 1, 7, 15)),
		completed(1, at(2024, 1, 2, 7, 45)),
		completed(1, at(2024, 1, 2, 22, 0)),
	}

	agg, err := AggregateEvents(events, r, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if agg.TimeOfDayDistribution[7] != 2 || agg.TimeOfDayDistribution[22] != 1 || len(agg.TimeOfDayDistribution) != 2 {
		t.Errorf("distribution = %v", agg.TimeOfDayDistribution)
	}

	tokyo, err := LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 22:00 UTC Jan 2 is 07:00 Jan 3 in Tokyo, outside the range.
	agg, err = AggregateEvents(events, r, tokyo)
	if err != nil {
		t.Fatal(err)
	}
	if agg.TimeOfDayDistribution[16] != 2 || agg.TotalCompletions != 2 {
		t.Errorf("Tokyo aggregate = %+v", agg)
	}
}

func TestAggregateEvents_Deterministic(t *testing.T) {
	r := mustRange(date(2024, 1, 1), date(2024, 1, 31))
	var events []models.CompletionEvent
	for d := 1; d <= 31; d++ {
		events = append(events, completed(1, at(2024, 1, d, 6, d)), completed(1, at(2024, 1, d, 8, 3*d%60)))
	}

	first, err := AggregateEvents(events, r, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, _ := AggregateEvents(events, r, time.UTC)
		if again.AverageCompletionTimeMinutes != first.AverageCompletionTimeMinutes ||
			again.CompletionRate != first.CompletionRate {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestAggregateEvents_InvalidTimestamp(t *testing.T) {
	r := mustRange(date(1969, 12, 31), date(1970, 1, 2))
	events := []models.CompletionEvent{completed(1, time.Unix(-60, 0))}
	if _, err := AggregateEvents(events, r, time.UTC); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("err = %v, want ErrInvalidTimestamp", err)
	}
}
