package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

var workerTracer = otel.Tracer("habitstat/worker")

// WorkerConfig holds configuration for the analytics precompute worker.
type WorkerConfig struct {
	PollInterval time.Duration
	MaxUsers     int  // Maximum users to sweep per cycle
	WindowDays   int  // Trailing window recomputed for each user
	DryRun       bool // If true, log what would be done without precomputing
}

// UserSource lists users that have something to precompute.
type UserSource interface {
	ListUserIDsWithActiveHabits(ctx context.Context, limit int) ([]string, error)
}

// Worker is the background analytics precompute worker.
type Worker struct {
	users       UserSource
	precomputer *analytics.Precomputer
	loc         *time.Location
	now         func() time.Time
	config      WorkerConfig
}

// runWorker is the entry point for the background worker process.
func runWorker() {
	logger.Info("starting analytics precompute worker")

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry for worker", "error", err)
	} else {
		defer otelShutdown()
	}

	workerConfig := loadWorkerConfig()
	logger.Info("worker configuration loaded",
		"poll_interval", workerConfig.PollInterval,
		"max_users", workerConfig.MaxUsers,
		"window_days", workerConfig.WindowDays,
		"dry_run", workerConfig.DryRun,
	)
	if workerConfig.DryRun {
		logger.Info("DRY-RUN MODE ENABLED - no analytics will be precomputed")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("missing required env var", "var", "DATABASE_URL")
	}
	analyticsConfig := loadAnalyticsConfig()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	database, err := db.ConnectWithRetry(startupCtx, databaseURL)
	if err != nil {
		cancelStartup()
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	store, closeStore, err := newAnalyticsStore(startupCtx, database, analyticsConfig)
	cancelStartup()
	if err != nil {
		logger.Fatal("failed to initialize analytics store", "error", err)
	}
	defer closeStore()

	engine := analytics.NewEngine(database, store, analytics.Config{
		Location:     analyticsConfig.Location,
		SingleFlight: analyticsConfig.SingleFlight,
	})
	worker := &Worker{
		users:       database,
		precomputer: analytics.NewPrecomputer(database, engine, analyticsConfig.Concurrency),
		loc:         engine.Location(),
		now:         time.Now,
		config:      workerConfig,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutdown signal received, stopping worker")
		cancel()
	}()

	worker.Run(ctx)
	logger.Info("worker stopped")
}

// Run executes the main worker loop.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on startup
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// cycleStats summarises one precompute cycle.
type cycleStats struct {
	Users          int
	UsersFailed    int
	TasksProcessed int
	TasksFailed    int
}

// runOnce force-recomputes the trailing window for every user with active
// habits, up to MaxUsers.
func (w *Worker) runOnce(ctx context.Context) cycleStats {
	ctx, span := workerTracer.Start(ctx, "worker.run_once")
	defer span.End()

	var stats cycleStats
	logger.Info("starting precomputation cycle")

	window, err := analytics.TrailingRange(w.now(), w.config.WindowDays, w.loc)
	if err != nil {
		logger.Error("invalid precompute window", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats
	}

	userIDs, err := w.users.ListUserIDsWithActiveHabits(ctx, w.config.MaxUsers)
	if err != nil {
		logger.Error("failed to list users", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats
	}
	span.SetAttributes(
		attribute.Int("users.found", len(userIDs)),
		attribute.String("range.key", window.Key()),
	)
	if len(userIDs) == 0 {
		logger.Info("no users with active habits")
		return stats
	}

	if w.config.DryRun {
		for _, userID := range userIDs {
			logger.Info("[DRY-RUN] would precompute user", "user_id", userID, "range_key", window.Key())
		}
		span.SetAttributes(attribute.Bool("dry_run", true))
		return stats
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			logger.Info("stopping processing due to shutdown")
			return stats
		default:
		}

		result, err := w.precomputer.PrecomputeUser(ctx, userID, window, true)
		stats.Users++
		if err != nil {
			logger.Error("failed to precompute user", "user_id", userID, "error", err)
			stats.UsersFailed++
			continue
		}
		stats.TasksProcessed += result.Processed
		stats.TasksFailed += result.Failed
		logger.Info("precomputed user",
			"user_id", userID,
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}

	logger.Info("precomputation cycle complete",
		"users", stats.Users,
		"users_failed", stats.UsersFailed,
		"tasks_processed", stats.TasksProcessed,
		"tasks_failed", stats.TasksFailed,
	)
	span.SetAttributes(
		attribute.Int("users.processed", stats.Users),
		attribute.Int("users.failed", stats.UsersFailed),
		attribute.Int("tasks.processed", stats.TasksProcessed),
		attribute.Int("tasks.failed", stats.TasksFailed),
	)
	return stats
}

// loadWorkerConfig loads worker configuration from environment variables.
func loadWorkerConfig() WorkerConfig {
	config := WorkerConfig{
		PollInterval: envDuration("WORKER_POLL_INTERVAL", 30*time.Minute),
		WindowDays:   envInt("WORKER_WINDOW_DAYS", 30),
	}

	// MaxUsers is mandatory
	maxUsers := os.Getenv("WORKER_MAX_USERS")
	if maxUsers == "" {
		logger.Fatal("missing required env var", "var", "WORKER_MAX_USERS")
	}
	parsed, err := strconv.Atoi(maxUsers)
	if err != nil || parsed <= 0 {
		logger.Fatal("invalid WORKER_MAX_USERS", "value", maxUsers)
	}
	config.MaxUsers = parsed

	if dryRun := os.Getenv("WORKER_DRY_RUN"); dryRun == "true" || dryRun == "1" {
		config.DryRun = true
	}

	return config
}
