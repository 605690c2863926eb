package analytics

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// History joins task metadata with the latest stored analytics per task.
type History struct {
	tasks TaskSource
	store AnalyticsStore
}

// NewHistory creates a History over the given collaborators.
func NewHistory(tasks TaskSource, store AnalyticsStore) *History {
	return &History{tasks: tasks, store: store}
}

// Build loads every task of the user, soft-deleted ones included, and every
// stored analytics record, then returns the joined entries ordered by
// LastActivity descending (ties by task ID ascending). Collaborator failures
// are returned here; the sequence itself cannot fail and may be ranged over
// more than once.
func (h *History) Build(ctx context.Context, userID string) (iter.Seq[HistoryEntry], error) {
	ctx, span := tracer.Start(ctx, "analytics.history",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if userID == "" {
		return nil, ErrInvalidUser
	}

	habits, err := h.tasks.ListTasks(ctx, userID, true)
	if err != nil {
		err = unavailable("task metadata", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	records, err := h.store.ListAnalytics(ctx, userID)
	if err != nil {
		err = unavailable("analytics store", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	latest := make(map[int64]*TaskAnalytics, len(records))
	for i := range records {
		rec := &records[i]
		if cur, ok := latest[rec.TaskID]; !ok || rec.ComputedAt.After(cur.ComputedAt) {
			latest[rec.TaskID] = rec
		}
	}

	entries := make([]HistoryEntry, 0, len(habits))
	for _, habit := range habits {
		entry := HistoryEntry{
			Habit:        habit,
			IsActive:     !habit.IsDeleted,
			LastActivity: habit.CreatedAt,
		}
		if rec, ok := latest[habit.ID]; ok {
			entry.LatestAnalytics = rec
			entry.LastActivity = rec.ComputedAt
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b HistoryEntry) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.Habit.ID, b.Habit.ID)
	})

	span.SetAttributes(attribute.Int("history.entries", len(entries)))
	return slices.Values(entries), nil
}
