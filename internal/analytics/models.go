package analytics

import (
	"time"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// TaskAnalytics is the derived, cacheable record for one task over one date range.
// Records are never updated in place: a refresh writes a new record under the
// same (TaskID, DateRange.Key()) pair.
type TaskAnalytics struct {
	TaskID                       int64       `json:"task_id"`
	UserID                       string      `json:"user_id"`
	DateRange                    DateRange   `json:"date_range"`
	CompletionRate               float64     `json:"completion_rate"`
	CurrentStreak                int         `json:"current_streak"`
	LongestStreak                int         `json:"longest_streak"`
	TotalCompletions             int         `json:"total_completions"`
	AverageCompletionTimeMinutes float64     `json:"average_completion_time_minutes"`
	TimeOfDayDistribution        map[int]int `json:"time_of_day_distribution"`
	ComputedAt                   time.Time   `json:"computed_at"`
}

// RangeKey returns the cache key of the record's date range.
func (a *TaskAnalytics) RangeKey() string {
	return a.DateRange.Key()
}

// Aggregate is the output of AggregateEvents.
type Aggregate struct {
	CompletionRate               float64
	TotalCompletions             int
	AverageCompletionTimeMinutes float64
	TimeOfDayDistribution        map[int]int
}

// FitnessCorrelation summarises fitness metrics over a task's analytics window.
type FitnessCorrelation struct {
	AverageSteps         float64 `json:"average_steps"`
	AverageCalories      float64 `json:"average_calories"`
	FitnessDataAvailable bool    `json:"fitness_data_available"`
}

// FitnessReport pairs a task's analytics with the fitness correlation for the
// same window.
type FitnessReport struct {
	Analytics *TaskAnalytics     `json:"analytics"`
	Fitness   FitnessCorrelation `json:"fitness"`
}

// HistoryEntry is one row of the history view.
type HistoryEntry struct {
	Habit           models.Habit   `json:"habit"`
	LatestAnalytics *TaskAnalytics `json:"latest_analytics"`
	IsActive        bool           `json:"is_active"`
	LastActivity    time.Time      `json:"last_activity"`
}

// BatchResult summarises a precompute sweep over many tasks.
type BatchResult struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Failures  []TaskError `json:"failures,omitempty"`
}

// TaskError records a single task's failure inside a batch sweep.
type TaskError struct {
	TaskID int64  `json:"task_id"`
	Error  string `json:"error"`
}
