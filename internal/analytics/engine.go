package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ConfabulousDev/habitstat/internal/logger"
)

var (
	tracer = otel.Tracer("habitstat/analytics")
	meter  = otel.Meter("habitstat/analytics")
)

// Config holds engine settings chosen at the composition root.
type Config struct {
	// Location is the reference time zone for calendar dates. Nil means UTC.
	Location *time.Location

	// SingleFlight collapses concurrent misses on the same task and range into
	// one computation. Without it concurrent fills are last-writer-wins.
	SingleFlight bool

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

type engineMetrics struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	computations metric.Int64Counter
}

func newEngineMetrics() engineMetrics {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("failed to create counter, metrics disabled", "counter", name, "error", err)
			c, _ = noop.NewMeterProvider().Meter("").Int64Counter(name)
		}
		return c
	}
	return engineMetrics{
		hits:         counter("analytics.cache.hits", "Analytics records served from the store"),
		misses:       counter("analytics.cache.misses", "Analytics lookups that found no stored record"),
		computations: counter("analytics.cache.computations", "Analytics records computed from the event log"),
	}
}

// Engine serves TaskAnalytics from an AnalyticsStore, computing and storing
// them from the event log when absent.
type Engine struct {
	events  EventSource
	store   AnalyticsStore
	loc     *time.Location
	now     func() time.Time
	single  bool
	group   singleflight.Group
	metrics engineMetrics
}

// NewEngine creates an Engine over the given collaborators.
func NewEngine(events EventSource, store AnalyticsStore, cfg Config) *Engine {
	e := &Engine{
		events:  events,
		store:   store,
		loc:     cfg.Location,
		now:     cfg.Now,
		single:  cfg.SingleFlight,
		metrics: newEngineMetrics(),
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Location returns the reference time zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

func validateRequest(taskID int64, userID string, r DateRange) error {
	if taskID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTask, taskID)
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidDateRange, r.Key())
	}
	return nil
}

// GetOrCompute returns the stored analytics for (taskID, r). When nothing is
// stored, or forceRecompute is set, it computes a fresh record from the event
// log, stores it and returns it. A stored record is returned unchanged.
func (e *Engine) GetOrCompute(ctx context.Context, taskID int64, userID string, r DateRange, forceRecompute bool) (*TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "analytics.get_or_compute",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", r.Key()),
			attribute.Bool("force", forceRecompute),
		))
	defer span.End()

	if err := validateRequest(taskID, userID, r); err != nil {
		return nil, err
	}
	key := r.Key()

	if !forceRecompute {
		cached, err := e.store.GetAnalytics(ctx, taskID, key)
		if err != nil {
			err = unavailable("analytics store", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if cached != nil {
			e.metrics.hits.Add(ctx, 1)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		e.metrics.misses.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	fill := func(ctx context.Context) (*TaskAnalytics, error) {
		record, err := e.Compute(ctx, taskID, userID, r)
		if err != nil {
			return nil, err
		}
		if err := e.store.PutAnalytics(ctx, record); err != nil {
			return nil, unavailable("analytics store", err)
		}
		return record, nil
	}

	var record *TaskAnalytics
	var err error
	if e.single {
		// The shared fill outlives any one caller; each caller stops waiting
		// when its own context ends.
		ch := e.group.DoChan(fmt.Sprintf("%d|%s", taskID, key), func() (any, error) {
			return fill(context.WithoutCancel(ctx))
		})
		select {
		case res := <-ch:
			err = res.Err
			if err == nil {
				record = res.Val.(*TaskAnalytics)
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		record, err = fill(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}

// Compute builds a fresh TaskAnalytics record from the event log without
// storing it. The current streak is measured as of the earlier of now and the
// last instant of the range.
func (e *Engine) Compute(ctx context.Context, taskID int64, userID string, r DateRange) (*TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "analytics.compute",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", r.Key()),
		))
	defer span.End()

	if err := validateRequest(taskID, userID, r); err != nil {
		return nil, err
	}

	start, end := r.Bounds(e.loc)
	events, err := e.events.FetchEvents(ctx, userID, &taskID, start, end)
	if err != nil {
		err = unavailable("event log", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.count", len(events)))

	now := e.now()
	asOf := now
	if last := end.Add(-time.Nanosecond); last.Before(asOf) {
		asOf = last
	}

	completions := CompletionTimes(events)
	current, err := CurrentStreak(completions, asOf, e.loc)
	if err != nil {
		return nil, err
	}
	longest, err := LongestStreak(completions, e.loc)
	if err != nil {
		return nil, err
	}
	agg, err := AggregateEvents(events, r, e.loc)
	if err != nil {
		return nil, err
	}

	e.metrics.computations.Add(ctx, 1)

	return &TaskAnalytics{
		TaskID:                       taskID,
		UserID:                       userID,
		DateRange:                    r,
		CompletionRate:               agg.CompletionRate,
		CurrentStreak:                current,
		LongestStreak:                longest,
		TotalCompletions:             agg.TotalCompletions,
		AverageCompletionTimeMinutes: agg.AverageCompletionTimeMinutes,
		TimeOfDayDistribution:        agg.TimeOfDayDistribution,
		ComputedAt:                   now.UTC().Truncate(time.Millisecond),
	}, nil
}
