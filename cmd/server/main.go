package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ConfabulousDev/habitstat/internal/api"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/ratelimit"
)

var version string

func main() {
	// A missing .env is normal in production
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "worker":
			runWorker()
			return
		case "migrate":
			runMigrate()
			return
		}
	}

	// Access via: fly proxy 6060:6060
	if os.Getenv("ENABLE_PPROF") == "true" {
		go startPprofServer()
	}

	// Configured via env vars: OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_HEADERS
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry", "error", err)
	} else {
		defer otelShutdown()
	}

	config := loadConfig()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	database, err := db.ConnectWithRetry(startupCtx, config.DatabaseURL)
	if err != nil {
		cancelStartup()
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	store, closeStore, err := newAnalyticsStore(startupCtx, database, config.Analytics)
	cancelStartup()
	if err != nil {
		logger.Fatal("failed to initialize analytics store", "error", err)
	}
	defer closeStore()

	limiter := ratelimit.NewInMemoryRateLimiter(config.HTTP.RateLimitRPS, config.HTTP.RateLimitBurst)
	defer limiter.Stop()

	server := api.NewServer(database, store, api.ServerConfig{
		Location:       config.Analytics.Location,
		SingleFlight:   config.Analytics.SingleFlight,
		Concurrency:    config.Analytics.Concurrency,
		AllowedOrigins: config.HTTP.AllowedOrigins,
		Limiter:        limiter,
		Version:        version,
	})
	handler := otelhttp.NewHandler(server.SetupRoutes(), "habitstat-api")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			"port", config.Port,
			"version", version,
			"timezone", config.Analytics.Location.String(),
			"single_flight", config.Analytics.SingleFlight,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// runMigrate applies the embedded Postgres migrations and exits.
func runMigrate() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("missing required env var", "var", "DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	database, err := db.ConnectWithRetry(ctx, databaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
	logger.Info("migrations applied")
}

// startPprofServer starts a pprof debug server on localhost:6060.
// It is only reachable locally and is meant for use through a proxy.
func startPprofServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))

	addr := "127.0.0.1:6060"
	logger.Info("pprof debug server starting", "addr", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("pprof server failed", "error", err)
	}
}
