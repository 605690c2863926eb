package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

// respondAnalyticsError maps analytics and db errors to HTTP responses.
// Validation failures echo their message; everything else is logged and
// answered with a generic message.
func respondAnalyticsError(ctx context.Context, w http.ResponseWriter, err error, message string) {
	switch {
	case analytics.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrHabitNotFound):
		respondError(w, http.StatusNotFound, "Habit not found")
	case errors.Is(err, db.ErrInvalidEvent), errors.Is(err, db.ErrInvalidSample):
		respondError(w, http.StatusBadRequest, err.Error())
	case analytics.IsRetryable(err):
		logger.Ctx(ctx).Warn(message, "error", err)
		respondError(w, http.StatusServiceUnavailable, "Analytics unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Ctx(ctx).Warn(message, "error", err)
		respondError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		logger.Ctx(ctx).Error(message, "error", err)
		respondError(w, http.StatusInternalServerError, message)
	}
}
