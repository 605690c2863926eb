package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CompletionSource returns COMPLETED timestamps in [start, end) grouped by task.
// Every requested task has an entry, possibly empty.
type CompletionSource interface {
	FetchCompletionTimesByTask(ctx context.Context, userID string, taskIDs []int64, start, end time.Time) (map[int64][]time.Time, error)
}

// StreakSummary reports both cross-task streak policies side by side. They
// answer different questions and are never merged into one number.
type StreakSummary struct {
	AsOf            time.Time `json:"as_of"`
	TrackedTasks    int       `json:"tracked_tasks"`
	AllHabitsStreak int       `json:"all_habits_streak"`
	AnyHabitStreak  int       `json:"any_habit_streak"`
}

// Streaks computes cross-task streak summaries for a user.
type Streaks struct {
	tasks       TaskSource
	completions CompletionSource
	loc         *time.Location
}

// NewStreaks creates a Streaks service. A nil loc means UTC.
func NewStreaks(tasks TaskSource, completions CompletionSource, loc *time.Location) *Streaks {
	if loc == nil {
		loc = time.UTC
	}
	return &Streaks{tasks: tasks, completions: completions, loc: loc}
}

// Summary computes the all-habits and any-habit streaks as of asOf over the
// user's active tasks. Completions after asOf are ignored.
func (s *Streaks) Summary(ctx context.Context, userID string, asOf time.Time) (*StreakSummary, error) {
	ctx, span := tracer.Start(ctx, "analytics.streak_summary",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if userID == "" {
		return nil, ErrInvalidUser
	}
	if err := validateTimestamp(asOf); err != nil {
		return nil, err
	}

	habits, err := s.tasks.ListTasks(ctx, userID, false)
	if err != nil {
		err = unavailable("task metadata", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	ids := make([]int64, 0, len(habits))
	for _, h := range habits {
		if !h.IsDeleted {
			ids = append(ids, h.ID)
		}
	}

	byTask, err := s.completions.FetchCompletionTimesByTask(ctx, userID, ids, time.UnixMilli(0), asOf.Add(time.Millisecond))
	if err != nil {
		err = unavailable("event log", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	all, err := AllHabitsCurrentStreak(byTask, asOf, s.loc)
	if err != nil {
		return nil, err
	}
	var merged []time.Time
	for _, ts := range byTask {
		merged = append(merged, ts...)
	}
	anyStreak, err := CurrentStreak(merged, asOf, s.loc)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("streak.all_habits", all),
		attribute.Int("streak.any_habit", anyStreak),
	)
	return &StreakSummary{
		AsOf:            asOf.UTC(),
		TrackedTasks:    len(byTask),
		AllHabitsStreak: all,
		AnyHabitStreak:  anyStreak,
	}, nil
}
