package main

import (
	"context"
	"fmt"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/rediscache"
	"github.com/ConfabulousDev/habitstat/internal/storage"
)

// newAnalyticsStore builds the configured analytics store. The returned close
// func releases the cache connection, if any.
func newAnalyticsStore(ctx context.Context, database *db.DB, config AnalyticsConfig) (analytics.AnalyticsStore, func(), error) {
	var primary analytics.AnalyticsStore
	switch config.Store {
	case storeS3:
		s3Store, err := storage.NewS3Store(config.S3Config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		primary = s3Store
	default:
		primary = db.NewAnalyticsStore(database)
	}
	logger.Info("analytics store configured", "store", config.Store)

	if config.RedisURL == "" {
		return primary, func() {}, nil
	}

	cache, err := rediscache.Connect(ctx, config.RedisURL, config.RedisTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("analytics cache tier enabled", "ttl", config.RedisTTL)

	closeCache := func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
	return &analytics.TieredStore{Primary: primary, Cache: cache}, closeCache, nil
}
