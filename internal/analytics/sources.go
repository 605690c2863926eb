package analytics

import (
	"context"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// EventSource is the read-only event log. end is exclusive; ordering of the
// returned events is not required. A nil taskID returns events for all tasks.
type EventSource interface {
	FetchEvents(ctx context.Context, userID string, taskID *int64, start, end time.Time) ([]models.CompletionEvent, error)
}

// TaskSource lists task metadata for a user.
type TaskSource interface {
	ListTasks(ctx context.Context, userID string, includeDeleted bool) ([]models.Habit, error)
}

// AnalyticsStore persists computed records. GetAnalytics returns (nil, nil) when
// nothing is stored under the key.
type AnalyticsStore interface {
	GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*TaskAnalytics, error)
	PutAnalytics(ctx context.Context, record *TaskAnalytics) error
	ListAnalytics(ctx context.Context, userID string) ([]TaskAnalytics, error)
}

// FitnessSource supplies per-day fitness samples for an inclusive date range.
type FitnessSource interface {
	FetchFitnessSamples(ctx context.Context, userID string, r DateRange) ([]models.FitnessSample, error)
}
