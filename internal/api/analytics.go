package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

// checkHabit confirms the habit belongs to the caller. A failing task store is
// reported as ErrSourceUnavailable, like the engine's own collaborators.
func checkHabit(ctx context.Context, database *db.DB, userID string, taskID int64) error {
	_, err := database.GetHabit(ctx, userID, taskID)
	if err != nil && !errors.Is(err, db.ErrHabitNotFound) {
		return fmt.Errorf("%w: task store: %w", analytics.ErrSourceUnavailable, err)
	}
	return err
}

// HandleGetTaskAnalytics returns the stored analytics for a habit and range,
// computing them on a miss. refresh=true forces a recompute.
func HandleGetTaskAnalytics(database *db.DB, engine *analytics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		taskID, err := parseTaskID(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		dateRange, err := parseDateRange(r, engine)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		refresh, err := parseBool(r, "refresh")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), ComputeTimeout)
		defer cancel()

		if err := checkHabit(ctx, database, userID, taskID); err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to get habit")
			return
		}

		record, err := engine.GetOrCompute(ctx, taskID, userID, dateRange, refresh)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to get analytics")
			return
		}
		respondJSON(w, http.StatusOK, record)
	}
}

// HandleGetTaskFitness returns a habit's analytics together with the fitness
// correlation over the same range.
func HandleGetTaskFitness(database *db.DB, engine *analytics.Engine, reporter *analytics.FitnessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		taskID, err := parseTaskID(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		dateRange, err := parseDateRange(r, engine)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), ComputeTimeout)
		defer cancel()

		if err := checkHabit(ctx, database, userID, taskID); err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to get habit")
			return
		}

		report, err := reporter.Report(ctx, taskID, userID, dateRange)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to get fitness report")
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// historyResponse is the response body for GET /api/v1/history
type historyResponse struct {
	Entries []analytics.HistoryEntry `json:"entries"`
}

// HandleGetHistory lists every habit of the caller, deleted ones included,
// with its latest stored analytics, most recently active first.
func HandleGetHistory(history *analytics.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), DatabaseTimeout)
		defer cancel()

		seq, err := history.Build(ctx, userID)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to build history")
			return
		}
		entries := slices.Collect(seq)
		if entries == nil {
			entries = []analytics.HistoryEntry{}
		}
		respondJSON(w, http.StatusOK, historyResponse{Entries: entries})
	}
}

// HandleGetStreaks returns the all-habits and any-habit streaks as of the
// as_of parameter (default now).
func HandleGetStreaks(engine *analytics.Engine, streaks *analytics.Streaks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		asOf, err := parseAsOf(r, engine)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), ComputeTimeout)
		defer cancel()

		summary, err := streaks.Summary(ctx, userID, asOf)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to compute streaks")
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

// HandleRecomputeAnalytics force-recomputes the caller's active habits over a
// range. Per-habit failures are reported in the body, not as an error status.
func HandleRecomputeAnalytics(engine *analytics.Engine, precomputer *analytics.Precomputer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Ctx(r.Context())
		userID, _ := userIDFromContext(r.Context())

		dateRange, err := parseDateRange(r, engine)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), ComputeTimeout)
		defer cancel()

		result, err := precomputer.PrecomputeUser(ctx, userID, dateRange, true)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to recompute analytics")
			return
		}
		if result.Failed > 0 {
			log.Warn("recompute finished with failures",
				"range_key", dateRange.Key(), "processed", result.Processed, "failed", result.Failed)
		}
		respondJSON(w, http.StatusOK, result)
	}
}
