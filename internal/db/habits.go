package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/models"
)

// CreateHabitParams holds the fields of a new habit.
type CreateHabitParams struct {
	UserID      string
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
}

// CreateHabit inserts a habit and returns it with its assigned ID.
func (db *DB) CreateHabit(ctx context.Context, params CreateHabitParams) (*models.Habit, error) {
	ctx, span := tracer.Start(ctx, "db.create_habit",
		trace.WithAttributes(attribute.String("user.id", params.UserID)))
	defer span.End()

	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now()
	}
	createdAt := params.CreatedAt.UTC().Truncate(time.Millisecond)

	query := `
		INSERT INTO habits (user_id, name, description, color, is_deleted, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := db.conn.QueryRowContext(ctx, db.rebind(query),
		params.UserID, params.Name, params.Description, params.Color, false, createdAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert habit: %w", err)
	}

	return &models.Habit{
		ID:          id,
		UserID:      params.UserID,
		Name:        params.Name,
		Description: params.Description,
		Color:       params.Color,
		CreatedAt:   createdAt,
	}, nil
}

// SoftDeleteHabit marks a habit deleted. Its events and analytics are kept so
// it still appears in the history view.
func (db *DB) SoftDeleteHabit(ctx context.Context, userID string, habitID int64, at time.Time) error {
	ctx, span := tracer.Start(ctx, "db.soft_delete_habit",
		trace.WithAttributes(attribute.Int64("habit.id", habitID)))
	defer span.End()

	query := `
		UPDATE habits SET is_deleted = $1, deleted_at_ms = $2
		WHERE id = $3 AND user_id = $4 AND is_deleted = $5
	`
	res, err := db.conn.ExecContext(ctx, db.rebind(query), true, at.UnixMilli(), habitID, userID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if n == 0 {
		return ErrHabitNotFound
	}
	return nil
}

// GetHabit returns one habit owned by userID, deleted or not.
func (db *DB) GetHabit(ctx context.Context, userID string, habitID int64) (*models.Habit, error) {
	query := `
		SELECT id, user_id, name, description, color, is_deleted, created_at_ms, deleted_at_ms
		FROM habits WHERE id = $1 AND user_id = $2
	`
	h, err := scanHabit(db.conn.QueryRowContext(ctx, db.rebind(query), habitID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return h, nil
}

// ListTasks returns the user's habits ordered by ID. Soft-deleted habits are
// included only when includeDeleted is set.
func (db *DB) ListTasks(ctx context.Context, userID string, includeDeleted bool) ([]models.Habit, error) {
	ctx, span := tracer.Start(ctx, "db.list_tasks",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("include_deleted", includeDeleted),
		))
	defer span.End()

	query := `
		SELECT id, user_id, name, description, color, is_deleted, created_at_ms, deleted_at_ms
		FROM habits WHERE user_id = $1
	`
	args := []any{userID}
	if !includeDeleted {
		query += ` AND is_deleted = $2`
		args = append(args, false)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habits: %w", err)
	}

	span.SetAttributes(attribute.Int("habits.count", len(habits)))
	return habits, nil
}

// ListUserIDsWithActiveHabits returns up to limit users that own at least one
// active habit, ordered by user ID.
func (db *DB) ListUserIDsWithActiveHabits(ctx context.Context, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "db.list_active_users",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	query := `
		SELECT DISTINCT user_id FROM habits
		WHERE is_deleted = $1
		ORDER BY user_id
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), false, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	span.SetAttributes(attribute.Int("users.found", len(users)))
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (*models.Habit, error) {
	var (
		h         models.Habit
		createdMs int64
		deletedMs sql.NullInt64
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.Color, &h.IsDeleted, &createdMs, &deletedMs); err != nil {
		return nil, err
	}
	h.CreatedAt = time.UnixMilli(createdMs).UTC()
	if deletedMs.Valid {
		t := time.UnixMilli(deletedMs.Int64).UTC()
		h.DeletedAt = &t
	}
	return &h, nil
}
