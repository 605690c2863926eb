package main

import (
	"slices"
	"testing"
	"time"
)

func TestLoadAnalyticsConfig_Defaults(t *testing.T) {
	for _, name := range []string{"ANALYTICS_TIMEZONE", "ANALYTICS_SINGLE_FLIGHT", "ANALYTICS_STORE", "REDIS_URL", "REDIS_TTL", "WORKER_CONCURRENCY"} {
		t.Setenv(name, "")
	}

	config := loadAnalyticsConfig()
	if config.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", config.Location)
	}
	if !config.SingleFlight {
		t.Error("expected single flight enabled by default")
	}
	if config.Store != storePostgres {
		t.Errorf("Store = %q, want postgres", config.Store)
	}
	if config.RedisTTL != 24*time.Hour {
		t.Errorf("RedisTTL = %v, want 24h", config.RedisTTL)
	}
}

func TestLoadAnalyticsConfig_FromEnv(t *testing.T) {
	t.Setenv("ANALYTICS_TIMEZONE", "America/New_York")
	t.Setenv("ANALYTICS_SINGLE_FLIGHT", "false")
	t.Setenv("ANALYTICS_STORE", "S3")
	t.Setenv("S3_ENDPOINT", "localhost:9000")
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("BUCKET_NAME", "habitstat")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_TTL", "1h")
	t.Setenv("WORKER_CONCURRENCY", "8")

	config := loadAnalyticsConfig()
	if config.Location.String() != "America/New_York" {
		t.Errorf("Location = %v", config.Location)
	}
	if config.SingleFlight {
		t.Error("expected single flight disabled")
	}
	if config.Store != storeS3 {
		t.Errorf("Store = %q, want s3", config.Store)
	}
	if config.S3Config.BucketName != "habitstat" || config.S3Config.UseSSL {
		t.Errorf("S3Config = %+v", config.S3Config)
	}
	if config.RedisTTL != time.Hour || config.Concurrency != 8 {
		t.Errorf("RedisTTL = %v, Concurrency = %d", config.RedisTTL, config.Concurrency)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	if got := envInt("TEST_INT", 7); got != 7 {
		t.Errorf("envInt invalid = %d, want default 7", got)
	}
	t.Setenv("TEST_INT", "-3")
	if got := envInt("TEST_INT", 7); got != 7 {
		t.Errorf("envInt negative = %d, want default 7", got)
	}
	t.Setenv("TEST_INT", "12")
	if got := envInt("TEST_INT", 7); got != 12 {
		t.Errorf("envInt = %d, want 12", got)
	}

	t.Setenv("TEST_DURATION", "90s")
	if got := envDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("envDuration = %v, want 90s", got)
	}
	t.Setenv("TEST_FLOAT", "2.5")
	if got := envFloat("TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("envFloat = %v, want 2.5", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example")
	want := []string{"https://a.example", "https://b.example"}
	if !slices.Equal(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}

func TestLoadWorkerConfig(t *testing.T) {
	t.Setenv("WORKER_MAX_USERS", "25")
	t.Setenv("WORKER_POLL_INTERVAL", "5m")
	t.Setenv("WORKER_WINDOW_DAYS", "")
	t.Setenv("WORKER_DRY_RUN", "1")

	config := loadWorkerConfig()
	if config.MaxUsers != 25 {
		t.Errorf("MaxUsers = %d, want 25", config.MaxUsers)
	}
	if config.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", config.PollInterval)
	}
	if config.WindowDays != 30 {
		t.Errorf("WindowDays = %d, want 30", config.WindowDays)
	}
	if !config.DryRun {
		t.Error("expected dry run")
	}
}
