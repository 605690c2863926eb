package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/models"
	"github.com/ConfabulousDev/habitstat/internal/validation"
)

// logEventRequest is the request body for POST /api/v1/events
type logEventRequest struct {
	TaskID    int64             `json:"task_id"`
	EventType string            `json:"event_type"`
	Timestamp *time.Time        `json:"timestamp,omitempty"` // defaults to now
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HandleLogEvent appends a lifecycle event for one of the caller's habits.
// Stored analytics are not invalidated; callers refresh them explicitly.
func HandleLogEvent(database *db.DB, engine *analytics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Ctx(r.Context())
		userID, _ := userIDFromContext(r.Context())

		var req logEventRequest
		if !decodeBody(w, r, &req) {
			return
		}
		eventType, err := models.ParseEventType(req.EventType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TaskID <= 0 {
			respondError(w, http.StatusBadRequest, "task_id is required")
			return
		}
		if err := validation.ValidateEventMetadata(req.Metadata); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ts := engine.Now()
		if req.Timestamp != nil {
			ts = *req.Timestamp
		}

		ctx, cancel := context.WithTimeout(r.Context(), DatabaseTimeout)
		defer cancel()

		habit, err := database.GetHabit(ctx, userID, req.TaskID)
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to get habit")
			return
		}
		if habit.IsDeleted {
			respondError(w, http.StatusConflict, "Habit is deleted")
			return
		}

		event, err := database.InsertEvent(ctx, models.CompletionEvent{
			TaskID:    req.TaskID,
			UserID:    userID,
			EventType: eventType,
			Timestamp: ts,
			Metadata:  req.Metadata,
		})
		if err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to log event")
			return
		}

		log.Debug("event logged", "task_id", event.TaskID, "event_type", event.EventType, "event_id", event.ID)
		respondJSON(w, http.StatusCreated, event)
	}
}

// fitnessSampleRequest is the request body for POST /api/v1/fitness-samples
type fitnessSampleRequest struct {
	Date     string          `json:"date"` // YYYY-MM-DD
	DataType string          `json:"data_type"`
	Value    decimal.Decimal `json:"value"`
}

// HandleRecordFitnessSample stores the caller's value for one day and metric,
// replacing an earlier value for the same day.
func HandleRecordFitnessSample(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		var req fitnessSampleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		day, err := time.Parse(analytics.DateLayout, req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		dataType, err := models.ParseFitnessDataType(req.DataType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), DatabaseTimeout)
		defer cancel()

		sample := models.FitnessSample{
			UserID:   userID,
			Date:     day,
			DataType: dataType,
			Value:    req.Value,
		}
		if err := database.UpsertFitnessSample(ctx, sample); err != nil {
			respondAnalyticsError(ctx, w, err, "Failed to record fitness sample")
			return
		}
		respondJSON(w, http.StatusCreated, sample)
	}
}
