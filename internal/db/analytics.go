package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
)

// AnalyticsStore persists TaskAnalytics rows keyed by (task_id, range_key).
type AnalyticsStore struct {
	db *DB
}

// NewAnalyticsStore creates a SQL-backed analytics store.
func NewAnalyticsStore(db *DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

const analyticsColumns = `task_id, range_key, user_id, start_date, end_date, completion_rate,
	current_streak, longest_streak, total_completions, avg_completion_minutes,
	time_of_day, computed_at_ms`

// GetAnalytics returns the stored record, or nil if there is none.
func (s *AnalyticsStore) GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "db.get_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", rangeKey),
		))
	defer span.End()

	query := `SELECT ` + analyticsColumns + ` FROM task_analytics WHERE task_id = $1 AND range_key = $2`
	record, err := scanAnalytics(s.db.conn.QueryRowContext(ctx, s.db.rebind(query), taskID, rangeKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return record, nil
}

// PutAnalytics inserts the record, replacing any record under the same key.
func (s *AnalyticsStore) PutAnalytics(ctx context.Context, record *analytics.TaskAnalytics) error {
	ctx, span := tracer.Start(ctx, "db.put_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", record.TaskID),
			attribute.String("range.key", record.RangeKey()),
		))
	defer span.End()

	distribution, err := json.Marshal(record.TimeOfDayDistribution)
	if err != nil {
		return fmt.Errorf("failed to encode time of day distribution: %w", err)
	}

	query := `
		INSERT INTO task_analytics (` + analyticsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (task_id, range_key) DO UPDATE SET
			user_id = excluded.user_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			completion_rate = excluded.completion_rate,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			total_completions = excluded.total_completions,
			avg_completion_minutes = excluded.avg_completion_minutes,
			time_of_day = excluded.time_of_day,
			computed_at_ms = excluded.computed_at_ms
	`
	_, err = s.db.conn.ExecContext(ctx, s.db.rebind(query),
		record.TaskID,
		record.RangeKey(),
		record.UserID,
		record.DateRange.Start.Format(analytics.DateLayout),
		record.DateRange.End.Format(analytics.DateLayout),
		record.CompletionRate,
		record.CurrentStreak,
		record.LongestStreak,
		record.TotalCompletions,
		record.AverageCompletionTimeMinutes,
		string(distribution),
		record.ComputedAt.UnixMilli(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert analytics: %w", err)
	}
	return nil
}

// ListAnalytics returns every stored record of the user.
func (s *AnalyticsStore) ListAnalytics(ctx context.Context, userID string) ([]analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "db.list_analytics",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	query := `SELECT ` + analyticsColumns + ` FROM task_analytics WHERE user_id = $1 ORDER BY task_id, range_key`
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(query), userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list analytics: %w", err)
	}
	defer rows.Close()

	var records []analytics.TaskAnalytics
	for rows.Next() {
		record, err := scanAnalytics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytics: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics: %w", err)
	}

	span.SetAttributes(attribute.Int("analytics.count", len(records)))
	return records, nil
}

func scanAnalytics(row rowScanner) (*analytics.TaskAnalytics, error) {
	var (
		a                  analytics.TaskAnalytics
		rangeKey           string
		startDate, endDate string
		distribution       string
		computedMs         int64
	)
	err := row.Scan(
		&a.TaskID,
		&rangeKey,
		&a.UserID,
		&startDate,
		&endDate,
		&a.CompletionRate,
		&a.CurrentStreak,
		&a.LongestStreak,
		&a.TotalCompletions,
		&a.AverageCompletionTimeMinutes,
		&distribution,
		&computedMs,
	)
	if err != nil {
		return nil, err
	}

	r, err := analytics.ParseDateRange(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("stored range %q: %w", rangeKey, err)
	}
	a.DateRange = r
	if err := json.Unmarshal([]byte(distribution), &a.TimeOfDayDistribution); err != nil {
		return nil, fmt.Errorf("stored distribution of task %d: %w", a.TaskID, err)
	}
	a.ComputedAt = time.UnixMilli(computedMs).UTC()
	return &a, nil
}
