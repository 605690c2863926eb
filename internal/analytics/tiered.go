package analytics

import (
	"context"
	"fmt"

	"github.com/ConfabulousDev/habitstat/internal/logger"
)

// TieredStore puts a fast cache tier in front of a durable primary store.
// Reads try the cache first and back-fill it from the primary; writes go to the
// primary, then the cache. Cache failures are logged and never fail a call.
type TieredStore struct {
	Primary AnalyticsStore
	Cache   AnalyticsStore
}

// GetAnalytics implements AnalyticsStore.
func (t *TieredStore) GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*TaskAnalytics, error) {
	cached, err := t.Cache.GetAnalytics(ctx, taskID, rangeKey)
	if err != nil {
		logger.Ctx(ctx).Warn("analytics cache read failed", "task_id", taskID, "range_key", rangeKey, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	record, err := t.Primary.GetAnalytics(ctx, taskID, rangeKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := t.Cache.PutAnalytics(ctx, record); err != nil {
		logger.Ctx(ctx).Warn("analytics cache back-fill failed", "task_id", taskID, "range_key", rangeKey, "error", err)
	}
	return record, nil
}

// PutAnalytics implements AnalyticsStore.
func (t *TieredStore) PutAnalytics(ctx context.Context, record *TaskAnalytics) error {
	if err := t.Primary.PutAnalytics(ctx, record); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}
	if err := t.Cache.PutAnalytics(ctx, record); err != nil {
		logger.Ctx(ctx).Warn("analytics cache write failed", "task_id", record.TaskID, "range_key", record.RangeKey(), "error", err)
	}
	return nil
}

// ListAnalytics reads from the primary only; the cache tier may be partial.
func (t *TieredStore) ListAnalytics(ctx context.Context, userID string) ([]TaskAnalytics, error) {
	return t.Primary.ListAnalytics(ctx, userID)
}
