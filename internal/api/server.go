package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/clientip"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/ratelimit"
)

// Timeouts for downstream work started by a request.
const (
	DatabaseTimeout = 10 * time.Second
	ComputeTimeout  = 30 * time.Second
)

// Request body limits.
const (
	MaxEventBodySize   = 64 * 1024
	MaxFitnessBodySize = 16 * 1024
)

// DefaultWindowDays is the trailing window used when a request names no dates.
const DefaultWindowDays = 30

// ServerConfig holds the engine and HTTP settings chosen at startup.
type ServerConfig struct {
	Location       *time.Location
	SingleFlight   bool
	Concurrency    int
	AllowedOrigins []string
	// Limiter is optional; nil disables rate limiting.
	Limiter ratelimit.RateLimiter
	Version string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Server holds dependencies for API handlers
type Server struct {
	db          *db.DB
	engine      *analytics.Engine
	fitness     *analytics.FitnessReporter
	history     *analytics.History
	precomputer *analytics.Precomputer
	streaks     *analytics.Streaks
	config      ServerConfig
}

// NewServer wires the analytics services over database (event log, task
// metadata, fitness samples) and store (computed records).
func NewServer(database *db.DB, store analytics.AnalyticsStore, config ServerConfig) *Server {
	engine := analytics.NewEngine(database, store, analytics.Config{
		Location:     config.Location,
		SingleFlight: config.SingleFlight,
		Now:          config.Now,
	})
	return &Server{
		db:          database,
		engine:      engine,
		fitness:     analytics.NewFitnessReporter(engine, database),
		history:     analytics.NewHistory(database, store),
		precomputer: analytics.NewPrecomputer(database, engine, config.Concurrency),
		streaks:     analytics.NewStreaks(database, database, engine.Location()),
		config:      config,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(clientip.Middleware)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Encoding", UserIDHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(newCompressor().Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireUser)
		if s.config.Limiter != nil {
			r.Use(ratelimit.Middleware(s.config.Limiter, ratelimit.HeaderKey(UserIDHeader)))
		}

		r.With(decompressMiddleware()).Post("/events",
			withMaxBody(MaxEventBodySize, HandleLogEvent(s.db, s.engine)))
		r.Post("/fitness-samples",
			withMaxBody(MaxFitnessBodySize, HandleRecordFitnessSample(s.db)))

		r.Get("/tasks/{taskID}/analytics", HandleGetTaskAnalytics(s.db, s.engine))
		r.Get("/tasks/{taskID}/fitness", HandleGetTaskFitness(s.db, s.engine, s.fitness))
		r.Get("/history", HandleGetHistory(s.history))
		r.Get("/streaks/all-habits", HandleGetStreaks(s.engine, s.streaks))
		r.Post("/analytics/recompute", HandleRecomputeAnalytics(s.engine, s.precomputer))
	})

	return r
}

// handleHealth reports whether the database is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		logger.Ctx(r.Context()).Error("health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleRoot returns API info
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "habitstat",
		"version": s.config.Version,
	})
}

// withMaxBody caps the request body at limit bytes.
func withMaxBody(limit int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next(w, r)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
