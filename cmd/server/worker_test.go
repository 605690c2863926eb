package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/models"
	"github.com/ConfabulousDev/habitstat/internal/testutil"
)

type failingUsers struct{}

func (failingUsers) ListUserIDsWithActiveHabits(ctx context.Context, limit int) ([]string, error) {
	return nil, errors.New("connection refused")
}

func newTestWorker(t *testing.T, config WorkerConfig) (*Worker, *db.DB) {
	t.Helper()

	database := testutil.OpenSQLite(t)
	now := testutil.At(2024, time.January, 10, 12, 0)
	engine := analytics.NewEngine(database, db.NewAnalyticsStore(database), analytics.Config{
		Now: func() time.Time { return now },
	})
	return &Worker{
		users:       database,
		precomputer: analytics.NewPrecomputer(database, engine, 2),
		loc:         time.UTC,
		now:         func() time.Time { return now },
		config:      config,
	}, database
}

func TestWorker_RunOnce(t *testing.T) {
	w, database := newTestWorker(t, WorkerConfig{MaxUsers: 10, WindowDays: 7})
	ctx := context.Background()

	read := testutil.CreateTestHabit(t, database, "u1", "read", testutil.Date(2024, time.January, 1))
	testutil.CreateTestHabit(t, database, "u1", "run", testutil.Date(2024, time.January, 1))
	testutil.CreateTestHabit(t, database, "u2", "walk", testutil.Date(2024, time.January, 1))
	testutil.LogTestEvents(t, database, "u1", read.ID, models.EventCompleted,
		testutil.At(2024, time.January, 9, 8, 0),
		testutil.At(2024, time.January, 10, 8, 0),
	)

	stats := w.runOnce(ctx)
	if stats.Users != 2 || stats.UsersFailed != 0 {
		t.Errorf("users = %d (failed %d), want 2 (0)", stats.Users, stats.UsersFailed)
	}
	if stats.TasksProcessed != 3 || stats.TasksFailed != 0 {
		t.Errorf("tasks = %d (failed %d), want 3 (0)", stats.TasksProcessed, stats.TasksFailed)
	}

	record, err := db.NewAnalyticsStore(database).GetAnalytics(ctx, read.ID, "2024-01-04_2024-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("expected a stored record for the trailing window")
	}
	if record.TotalCompletions != 2 || record.CurrentStreak != 2 {
		t.Errorf("record = %d completions, streak %d; want 2, 2", record.TotalCompletions, record.CurrentStreak)
	}
}

func TestWorker_RunOnce_DryRun(t *testing.T) {
	w, database := newTestWorker(t, WorkerConfig{MaxUsers: 10, WindowDays: 7, DryRun: true})
	testutil.CreateTestHabit(t, database, "u1", "read", testutil.Date(2024, time.January, 1))

	stats := w.runOnce(context.Background())
	if stats.Users != 0 {
		t.Errorf("dry run processed %d users", stats.Users)
	}
	stored, err := db.NewAnalyticsStore(database).ListAnalytics(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("dry run stored %d records", len(stored))
	}
}

func TestWorker_RunOnce_UserListFailure(t *testing.T) {
	w, _ := newTestWorker(t, WorkerConfig{MaxUsers: 10, WindowDays: 7})
	w.users = failingUsers{}

	if stats := w.runOnce(context.Background()); stats != (cycleStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	w, _ := newTestWorker(t, WorkerConfig{MaxUsers: 10, WindowDays: 7, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
