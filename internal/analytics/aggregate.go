package analytics

import (
	"maps"
	"slices"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// DefaultCompletionMinutes is reported as the average completion time when no
// day in the range has two or more completions to derive a session from.
const DefaultCompletionMinutes = 15.0

// AggregateEvents computes completion rate, total completions, average
// completion-session duration and the hour-of-day histogram for the COMPLETED
// events whose calendar date (in loc) falls inside r. It is a pure function of
// its inputs.
func AggregateEvents(events []models.CompletionEvent, r DateRange, loc *time.Location) (Aggregate, error) {
	byDay := make(map[time.Time][]time.Time)
	hours := make(map[int]int)
	total := 0

	for _, e := range events {
		if e.EventType != models.EventCompleted {
			continue
		}
		if err := validateTimestamp(e.Timestamp); err != nil {
			return Aggregate{}, err
		}
		date := CalendarDate(e.Timestamp, loc)
		if !r.Contains(date) {
			continue
		}
		total++
		byDay[date] = append(byDay[date], e.Timestamp)
		hours[e.Timestamp.In(loc).Hour()]++
	}

	return Aggregate{
		CompletionRate:               float64(total) / float64(r.Days()),
		TotalCompletions:             total,
		AverageCompletionTimeMinutes: averageSessionMinutes(byDay),
		TimeOfDayDistribution:        hours,
	}, nil
}

// averageSessionMinutes treats the span between the first and last completion
// of a day as that day's session length and averages it over days with at
// least two completions.
func averageSessionMinutes(byDay map[time.Time][]time.Time) float64 {
	// Sum in date order so the float result does not depend on map iteration.
	days := slices.SortedFunc(maps.Keys(byDay), func(a, b time.Time) int { return a.Compare(b) })

	var sum float64
	sessions := 0
	for _, d := range days {
		stamps := byDay[d]
		if len(stamps) < 2 {
			continue
		}
		first := slices.MinFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })
		last := slices.MaxFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })
		sum += last.Sub(first).Minutes()
		sessions++
	}
	if sessions == 0 {
		return DefaultCompletionMinutes
	}
	return sum / float64(sessions)
}
