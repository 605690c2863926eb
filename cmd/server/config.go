package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/storage"
)

// Analytics store backends selectable via ANALYTICS_STORE.
const (
	storePostgres = "postgres"
	storeS3       = "s3"
)

type Config struct {
	Port         int
	DatabaseURL  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Analytics    AnalyticsConfig
	HTTP         HTTPConfig
}

// AnalyticsConfig is shared by the server and the worker.
type AnalyticsConfig struct {
	Location     *time.Location
	SingleFlight bool
	Concurrency  int
	Store        string
	S3Config     storage.S3Config
	RedisURL     string
	RedisTTL     time.Duration
}

type HTTPConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func loadConfig() Config {
	port := envInt("PORT", 8080)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("missing required env var", "var", "DATABASE_URL")
	}

	return Config{
		Port:         port,
		DatabaseURL:  databaseURL,
		ReadTimeout:  envDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		Analytics:    loadAnalyticsConfig(),
		HTTP: HTTPConfig{
			AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
			RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
		},
	}
}

func loadAnalyticsConfig() AnalyticsConfig {
	loc, err := analytics.LoadLocation(os.Getenv("ANALYTICS_TIMEZONE"))
	if err != nil {
		logger.Fatal("invalid env var", "var", "ANALYTICS_TIMEZONE", "error", err)
	}

	config := AnalyticsConfig{
		Location:     loc,
		SingleFlight: os.Getenv("ANALYTICS_SINGLE_FLIGHT") != "false", // Default true
		Concurrency:  envInt("WORKER_CONCURRENCY", analytics.DefaultPrecomputeConcurrency),
		Store:        storePostgres,
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisTTL:     envDuration("REDIS_TTL", 24*time.Hour),
	}

	switch store := strings.ToLower(os.Getenv("ANALYTICS_STORE")); store {
	case "", storePostgres:
	case storeS3:
		config.Store = storeS3
		config.S3Config = loadS3Config()
	default:
		logger.Fatal("invalid env var", "var", "ANALYTICS_STORE", "value", store, "hint", "postgres or s3")
	}
	return config
}

// loadS3Config loads S3 configuration from environment variables.
func loadS3Config() storage.S3Config {
	config := storage.S3Config{
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("BUCKET_NAME"),
		UseSSL:          os.Getenv("S3_USE_SSL") != "false", // Default true
	}
	for name, value := range map[string]string{
		"S3_ENDPOINT":           config.Endpoint,
		"AWS_ACCESS_KEY_ID":     config.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": config.SecretAccessKey,
		"BUCKET_NAME":           config.BucketName,
	} {
		if value == "" {
			logger.Fatal("missing required env var", "var", name)
		}
	}
	return config
}

// envInt returns the named variable as a positive int, or def when unset or invalid.
func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
		logger.Warn("ignoring invalid env var", "var", name, "value", v)
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			return parsed
		}
		logger.Warn("ignoring invalid env var", "var", name, "value", v)
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
		logger.Warn("ignoring invalid env var", "var", name, "value", v)
	}
	return def
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
