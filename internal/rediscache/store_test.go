package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/rediscache"
	"github.com/ConfabulousDev/habitstat/internal/testutil"
)

func TestStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	addr := testutil.SetupRedis(t)
	ctx := context.Background()

	store, err := rediscache.Connect(ctx, "redis://"+addr+"/0", time.Hour)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer store.Close()

	r, _ := analytics.ParseDateRange("2024-01-01", "2024-01-07")
	if miss, err := store.GetAnalytics(ctx, 1, r.Key()); err != nil || miss != nil {
		t.Fatalf("GetAnalytics before put = %v, %v", miss, err)
	}

	for _, taskID := range []int64{1, 2} {
		err := store.PutAnalytics(ctx, &analytics.TaskAnalytics{
			TaskID:                taskID,
			UserID:                "u1",
			DateRange:             r,
			TotalCompletions:      int(taskID),
			TimeOfDayDistribution: map[int]int{},
			ComputedAt:            time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("PutAnalytics(%d): %v", taskID, err)
		}
	}

	got, err := store.GetAnalytics(ctx, 2, r.Key())
	if err != nil || got == nil || got.TotalCompletions != 2 {
		t.Fatalf("GetAnalytics = %+v, %v", got, err)
	}

	list, err := store.ListAnalytics(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAnalytics: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("list = %d records, want 2", len(list))
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := rediscache.Connect(context.Background(), "not a url", 0); err == nil {
		t.Error("expected error for malformed url")
	}
}
