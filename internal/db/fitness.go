package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/models"
)

// UpsertFitnessSample records a user's value for one day and metric,
// replacing any earlier value.
func (db *DB) UpsertFitnessSample(ctx context.Context, sample models.FitnessSample) error {
	ctx, span := tracer.Start(ctx, "db.upsert_fitness_sample",
		trace.WithAttributes(
			attribute.String("user.id", sample.UserID),
			attribute.String("fitness.type", string(sample.DataType)),
		))
	defer span.End()

	if _, err := models.ParseFitnessDataType(string(sample.DataType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}
	if sample.UserID == "" || sample.Date.IsZero() {
		return fmt.Errorf("%w: user and date are required", ErrInvalidSample)
	}
	if sample.Value.IsNegative() {
		return fmt.Errorf("%w: negative value %s", ErrInvalidSample, sample.Value)
	}

	query := `
		INSERT INTO fitness_samples (user_id, sample_date, data_type, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, sample_date, data_type) DO UPDATE SET value = excluded.value
	`
	_, err := db.conn.ExecContext(ctx, db.rebind(query),
		sample.UserID, sample.Date.Format(analytics.DateLayout), string(sample.DataType), sample.Value.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert fitness sample: %w", err)
	}
	return nil
}

// FetchFitnessSamples returns the user's samples dated inside r.
func (db *DB) FetchFitnessSamples(ctx context.Context, userID string, r analytics.DateRange) ([]models.FitnessSample, error) {
	ctx, span := tracer.Start(ctx, "db.fetch_fitness_samples",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("range.key", r.Key()),
		))
	defer span.End()

	// CAST keeps NUMERIC and SQLite TEXT values scanning identically.
	query := `
		SELECT sample_date, data_type, CAST(value AS TEXT)
		FROM fitness_samples
		WHERE user_id = $1 AND sample_date >= $2 AND sample_date <= $3
		ORDER BY sample_date, data_type
	`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query),
		userID, r.Start.Format(analytics.DateLayout), r.End.Format(analytics.DateLayout))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query fitness samples: %w", err)
	}
	defer rows.Close()

	var samples []models.FitnessSample
	for rows.Next() {
		var (
			date, dataType, value string
		)
		if err := rows.Scan(&date, &dataType, &value); err != nil {
			return nil, fmt.Errorf("failed to scan fitness sample: %w", err)
		}
		d, err := time.Parse(analytics.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sample date %q: %w", date, err)
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sample value %q: %w", value, err)
		}
		samples = append(samples, models.FitnessSample{
			UserID:   userID,
			Date:     d,
			DataType: models.FitnessDataType(dataType),
			Value:    v,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fitness samples: %w", err)
	}

	span.SetAttributes(attribute.Int("samples.count", len(samples)))
	return samples, nil
}
