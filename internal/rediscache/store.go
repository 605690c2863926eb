// Package rediscache is a Redis tier for analytics records, used in front of
// a durable analytics store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
)

var tracer = otel.Tracer("habitstat/rediscache")

const keyPrefix = "habitstat:analytics:"

// Store is an analytics.AnalyticsStore on Redis. Records are JSON strings; a
// per-user set indexes them for ListAnalytics.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses a redis:// URL, verifies the server answers and returns a
// Store whose entries expire after ttl (0 keeps them forever).
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, ttl), nil
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func recordKey(taskID int64, rangeKey string) string {
	return fmt.Sprintf("%s%d:%s", keyPrefix, taskID, rangeKey)
}

func userKey(userID string) string {
	return keyPrefix + "user:" + userID
}

// GetAnalytics implements analytics.AnalyticsStore.
func (s *Store) GetAnalytics(ctx context.Context, taskID int64, rangeKey string) (*analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "rediscache.get_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", taskID),
			attribute.String("range.key", rangeKey),
		))
	defer span.End()

	raw, err := s.client.Get(ctx, recordKey(taskID, rangeKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record analytics.TaskAnalytics
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode cached analytics: %w", err)
	}
	return &record, nil
}

// PutAnalytics implements analytics.AnalyticsStore. The record and its index
// entry are written in one MULTI/EXEC.
func (s *Store) PutAnalytics(ctx context.Context, record *analytics.TaskAnalytics) error {
	ctx, span := tracer.Start(ctx, "rediscache.put_analytics",
		trace.WithAttributes(
			attribute.Int64("task.id", record.TaskID),
			attribute.String("range.key", record.RangeKey()),
		))
	defer span.End()

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode analytics: %w", err)
	}

	member := fmt.Sprintf("%d:%s", record.TaskID, record.RangeKey())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(record.TaskID, record.RangeKey()), raw, s.ttl)
		pipe.SAdd(ctx, userKey(record.UserID), member)
		if s.ttl > 0 {
			pipe.Expire(ctx, userKey(record.UserID), s.ttl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// ListAnalytics implements analytics.AnalyticsStore. Index entries whose
// record has expired are skipped.
func (s *Store) ListAnalytics(ctx context.Context, userID string) ([]analytics.TaskAnalytics, error) {
	ctx, span := tracer.Start(ctx, "rediscache.list_analytics",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	members, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		taskID, rangeKey, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		keys = append(keys, keyPrefix+taskID+":"+rangeKey)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	records := make([]analytics.TaskAnalytics, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var record analytics.TaskAnalytics
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			return nil, fmt.Errorf("failed to decode cached analytics %s: %w", keys[i], err)
		}
		records = append(records, record)
	}
	return records, nil
}
