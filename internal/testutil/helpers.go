package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/models"
)

// OpenSQLite opens a fresh SQLite database in a per-test temp directory.
func OpenSQLite(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "habitstat.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// CreateTestHabit creates a habit and fails the test on error.
func CreateTestHabit(t *testing.T, database *db.DB, userID, name string, createdAt time.Time) *models.Habit {
	t.Helper()

	habit, err := database.CreateHabit(context.Background(), db.CreateHabitParams{
		UserID:    userID,
		Name:      name,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Failed to create habit %q: %v", name, err)
	}
	return habit
}

// LogTestEvents inserts one event of the given type per timestamp.
func LogTestEvents(t *testing.T, database *db.DB, userID string, taskID int64, eventType models.EventType, timestamps ...time.Time) {
	t.Helper()

	for _, ts := range timestamps {
		_, err := database.InsertEvent(context.Background(), models.CompletionEvent{
			TaskID:    taskID,
			UserID:    userID,
			EventType: eventType,
			Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Failed to insert %s event at %s: %v", eventType, ts, err)
		}
	}
}

// Date returns midnight UTC of the given day, for readable fixtures.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// At returns the given UTC day and clock time.
func At(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}
