package analytics

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ConfabulousDev/habitstat/internal/logger"
)

// DefaultPrecomputeConcurrency bounds parallel task computations in a sweep.
const DefaultPrecomputeConcurrency = 4

// Precomputer fills the analytics store for all active tasks of a user.
type Precomputer struct {
	tasks       TaskSource
	engine      *Engine
	concurrency int
}

// NewPrecomputer creates a Precomputer. concurrency < 1 uses
// DefaultPrecomputeConcurrency.
func NewPrecomputer(tasks TaskSource, engine *Engine, concurrency int) *Precomputer {
	if concurrency < 1 {
		concurrency = DefaultPrecomputeConcurrency
	}
	return &Precomputer{tasks: tasks, engine: engine, concurrency: concurrency}
}

// PrecomputeUser runs GetOrCompute for every active task of the user over r.
// Tasks are independent: one task failing does not stop the others, and the
// failure is reported in the result. Only a failure to list tasks is returned
// as an error.
func (p *Precomputer) PrecomputeUser(ctx context.Context, userID string, r DateRange, force bool) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "precompute.user",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("range.key", r.Key()),
			attribute.Bool("force", force),
		))
	defer span.End()

	if userID == "" {
		return BatchResult{}, ErrInvalidUser
	}

	habits, err := p.tasks.ListTasks(ctx, userID, false)
	if err != nil {
		err = unavailable("task metadata", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BatchResult{}, err
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, habit := range habits {
		if habit.IsDeleted {
			continue
		}
		g.Go(func() error {
			_, err := p.engine.GetOrCompute(gctx, habit.ID, userID, r, force)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Ctx(ctx).Warn("precompute failed for task",
					"user_id", userID, "task_id", habit.ID, "error", err)
				result.Failed++
				result.Failures = append(result.Failures, TaskError{TaskID: habit.ID, Error: err.Error()})
				return nil
			}
			result.Processed++
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(result.Failures, func(a, b TaskError) int {
		return cmp.Compare(a.TaskID, b.TaskID)
	})

	span.SetAttributes(
		attribute.Int("tasks.processed", result.Processed),
		attribute.Int("tasks.failed", result.Failed),
	)
	return result, nil
}
