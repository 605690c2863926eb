package analytics

import (
	"fmt"
	"slices"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// Two streak policies exist and are kept apart on purpose:
//
//   - any-completion (CurrentStreak, LongestStreak): a day counts when the task
//     has at least one COMPLETED event. This is what cached TaskAnalytics carry.
//   - all-habits (AllHabitsCurrentStreak): a day counts only when every tracked
//     task has at least one completion that day.

const day = 24 * time.Hour

// CompletionTimes returns the timestamps of COMPLETED events.
func CompletionTimes(events []models.CompletionEvent) []time.Time {
	times := make([]time.Time, 0, len(events))
	for _, e := range events {
		if e.EventType == models.EventCompleted {
			times = append(times, e.Timestamp)
		}
	}
	return times
}

func validateTimestamp(t time.Time) error {
	if t.UnixMilli() < 0 {
		return fmt.Errorf("%w: %s is before the Unix epoch", ErrInvalidTimestamp, t.UTC().Format(time.RFC3339))
	}
	return nil
}

// distinctDates normalises timestamps to calendar dates in loc and returns them
// sorted ascending without duplicates.
func distinctDates(timestamps []time.Time, loc *time.Location) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if err := validateTimestamp(ts); err != nil {
			return nil, err
		}
		dates = append(dates, CalendarDate(ts, loc))
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) }), nil
}

// CurrentStreak counts consecutive completion days ending on asOf's date or the
// day before it. A streak whose last day is older than yesterday is 0.
func CurrentStreak(timestamps []time.Time, asOf time.Time, loc *time.Location) (int, error) {
	if err := validateTimestamp(asOf); err != nil {
		return 0, err
	}
	dates, err := distinctDates(timestamps, loc)
	if err != nil {
		return 0, err
	}
	return currentFromDates(dates, CalendarDate(asOf, loc)), nil
}

func currentFromDates(dates []time.Time, today time.Time) int {
	// Completions after asOf do not belong to the streak being measured.
	end := len(dates)
	for end > 0 && dates[end-1].After(today) {
		end--
	}
	if end == 0 {
		return 0
	}
	last := dates[end-1]
	if !last.Equal(today) && !last.Equal(today.Add(-day)) {
		return 0
	}

	streak := 1
	for i := end - 1; i > 0; i-- {
		if dates[i].Sub(dates[i-1]) != day {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive completion days.
func LongestStreak(timestamps []time.Time, loc *time.Location) (int, error) {
	dates, err := distinctDates(timestamps, loc)
	if err != nil {
		return 0, err
	}
	return longestFromDates(dates), nil
}

func longestFromDates(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	longest, streak := 1, 1
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == day {
			streak++
		} else {
			streak = 1
		}
		longest = max(longest, streak)
	}
	return longest
}

// AllHabitsCurrentStreak counts consecutive days on which every tracked task
// (every key of completionsByTask) has at least one completion. Counting starts
// at asOf's date; when that day is not complete yet it starts at yesterday.
// With no tracked tasks the streak is 0.
func AllHabitsCurrentStreak(completionsByTask map[int64][]time.Time, asOf time.Time, loc *time.Location) (int, error) {
	if err := validateTimestamp(asOf); err != nil {
		return 0, err
	}
	if len(completionsByTask) == 0 {
		return 0, nil
	}

	daysPerTask := make([]map[time.Time]bool, 0, len(completionsByTask))
	for _, timestamps := range completionsByTask {
		dates, err := distinctDates(timestamps, loc)
		if err != nil {
			return 0, err
		}
		set := make(map[time.Time]bool, len(dates))
		for _, d := range dates {
			set[d] = true
		}
		daysPerTask = append(daysPerTask, set)
	}

	complete := func(d time.Time) bool {
		for _, set := range daysPerTask {
			if !set[d] {
				return false
			}
		}
		return true
	}

	cursor := CalendarDate(asOf, loc)
	if !complete(cursor) {
		cursor = cursor.Add(-day)
	}
	streak := 0
	for complete(cursor) {
		streak++
		cursor = cursor.Add(-day)
	}
	return streak, nil
}
