package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// InsertEvent appends an event to the log. A missing ID is generated.
// Timestamps are stored with millisecond precision.
func (db *DB) InsertEvent(ctx context.Context, event models.CompletionEvent) (*models.CompletionEvent, error) {
	ctx, span := tracer.Start(ctx, "db.insert_event",
		trace.WithAttributes(
			attribute.Int64("task.id", event.TaskID),
			attribute.String("event.type", string(event.EventType)),
		))
	defer span.End()

	if _, err := models.ParseEventType(string(event.EventType)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if event.TaskID <= 0 || event.UserID == "" {
		return nil, fmt.Errorf("%w: task and user are required", ErrInvalidEvent)
	}
	if event.Timestamp.UnixMilli() < 0 {
		return nil, fmt.Errorf("%w: timestamp before the Unix epoch", ErrInvalidEvent)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Timestamp = event.Timestamp.UTC().Truncate(time.Millisecond)

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to encode event metadata: %w", err)
		}
	}

	query := `
		INSERT INTO completion_events (id, task_id, user_id, event_type, occurred_at_ms, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.conn.ExecContext(ctx, db.rebind(query),
		event.ID, event.TaskID, event.UserID, string(event.EventType), event.Timestamp.UnixMilli(), string(metadata))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return &event, nil
}

// FetchEvents returns the user's events with start <= timestamp < end, ordered
// by timestamp. A nil taskID returns events of all tasks.
func (db *DB) FetchEvents(ctx context.Context, userID string, taskID *int64, start, end time.Time) ([]models.CompletionEvent, error) {
	ctx, span := tracer.Start(ctx, "db.fetch_events",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	query := `
		SELECT id, task_id, user_id, event_type, occurred_at_ms, metadata
		FROM completion_events
		WHERE user_id = $1 AND occurred_at_ms >= $2 AND occurred_at_ms < $3
	`
	args := []any{userID, start.UnixMilli(), end.UnixMilli()}
	if taskID != nil {
		query += ` AND task_id = $4`
		args = append(args, *taskID)
		span.SetAttributes(attribute.Int64("task.id", *taskID))
	}
	query += ` ORDER BY occurred_at_ms, id`

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.CompletionEvent
	for rows.Next() {
		var (
			e        models.CompletionEvent
			eventTyp string
			atMs     int64
			metadata string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.UserID, &eventTyp, &atMs, &metadata); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EventType = models.EventType(eventTyp)
		e.Timestamp = time.UnixMilli(atMs).UTC()
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of event %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.count", len(events)))
	return events, nil
}

// FetchCompletionTimesByTask returns COMPLETED timestamps in [start, end)
// grouped by task, for the given tasks. Every requested task has an entry,
// possibly empty.
func (db *DB) FetchCompletionTimesByTask(ctx context.Context, userID string, taskIDs []int64, start, end time.Time) (map[int64][]time.Time, error) {
	ctx, span := tracer.Start(ctx, "db.fetch_completion_times",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("tasks.count", len(taskIDs)),
		))
	defer span.End()

	result := make(map[int64][]time.Time, len(taskIDs))
	for _, id := range taskIDs {
		result[id] = nil
	}
	if len(taskIDs) == 0 {
		return result, nil
	}

	args := []any{userID, string(models.EventCompleted)}
	var taskFilter string
	if db.dialect == Postgres {
		taskFilter = "task_id = ANY($3)"
		args = append(args, pq.Array(taskIDs))
	} else {
		placeholders := make([]string, len(taskIDs))
		for i, id := range taskIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		taskFilter = "task_id IN (" + strings.Join(placeholders, ", ") + ")"
	}
	n := len(args)
	args = append(args, start.UnixMilli(), end.UnixMilli())

	query := fmt.Sprintf(`
		SELECT task_id, occurred_at_ms FROM completion_events
		WHERE user_id = $1 AND event_type = $2 AND %s
		  AND occurred_at_ms >= $%d AND occurred_at_ms < $%d
		ORDER BY occurred_at_ms
	`, taskFilter, n+1, n+2)

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID int64
			atMs   int64
		)
		if err := rows.Scan(&taskID, &atMs); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		result[taskID] = append(result[taskID], time.UnixMilli(atMs).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}
	return result, nil
}
