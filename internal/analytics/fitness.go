package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/models"
)

// Correlate averages the fitness samples that fall inside the record's date
// range. A metric with no samples averages to 0; FitnessDataAvailable is false
// only when no sample of any type matched. a is not modified.
func Correlate(a *TaskAnalytics, samples []models.FitnessSample) FitnessCorrelation {
	return correlate(samples, func(d time.Time) bool {
		return a.DateRange.Contains(d)
	})
}

// CorrelateCompletionDays is Correlate restricted further to the calendar dates
// on which the task was completed. completionDates are calendar dates as
// returned by CalendarDate.
func CorrelateCompletionDays(a *TaskAnalytics, samples []models.FitnessSample, completionDates []time.Time) FitnessCorrelation {
	days := make(map[time.Time]bool, len(completionDates))
	for _, d := range completionDates {
		days[truncateDate(d)] = true
	}
	return correlate(samples, func(d time.Time) bool {
		return a.DateRange.Contains(d) && days[truncateDate(d)]
	})
}

type mean struct {
	sum   decimal.Decimal
	count int64
}

func (m *mean) add(v decimal.Decimal) {
	m.sum = m.sum.Add(v)
	m.count++
}

func (m mean) value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum.Div(decimal.NewFromInt(m.count)).InexactFloat64()
}

func correlate(samples []models.FitnessSample, keep func(time.Time) bool) FitnessCorrelation {
	var steps, calories mean
	for _, s := range samples {
		if !keep(s.Date) {
			continue
		}
		switch s.DataType {
		case models.FitnessSteps:
			steps.add(s.Value)
		case models.FitnessCaloriesBurned:
			calories.add(s.Value)
		}
	}
	return FitnessCorrelation{
		AverageSteps:         steps.value(),
		AverageCalories:      calories.value(),
		FitnessDataAvailable: steps.count+calories.count > 0,
	}
}

// FitnessReporter pairs task analytics with fitness data for the same window.
type FitnessReporter struct {
	engine  *Engine
	fitness FitnessSource
}

// NewFitnessReporter creates a FitnessReporter.
func NewFitnessReporter(engine *Engine, fitness FitnessSource) *FitnessReporter {
	return &FitnessReporter{engine: engine, fitness: fitness}
}

// Report returns the task's analytics for r together with its fitness
// correlation. Analytics failures are returned; a fitness source failure only
// degrades the correlation to "no data available".
func (f *FitnessReporter) Report(ctx context.Context, taskID int64, userID string, r DateRange) (*FitnessReport, error) {
	ctx, span := tracer.Start(ctx, "analytics.fitness_report",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", r.Key()),
		))
	defer span.End()

	record, err := f.engine.GetOrCompute(ctx, taskID, userID, r, false)
	if err != nil {
		return nil, err
	}

	samples, err := f.fitness.FetchFitnessSamples(ctx, userID, record.DateRange)
	if err != nil {
		logger.Ctx(ctx).Warn("fitness data unavailable, reporting analytics only",
			"task_id", taskID, "range_key", r.Key(), "error", err)
		span.SetAttributes(attribute.Bool("fitness.degraded", true))
		return &FitnessReport{Analytics: record}, nil
	}

	return &FitnessReport{Analytics: record, Fitness: Correlate(record, samples)}, nil
}
