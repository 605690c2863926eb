package api

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/habitstat/internal/logger"
	"github.com/ConfabulousDev/habitstat/internal/validation"
)

// UserIDHeader carries the caller identity, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// requireUser rejects requests without a caller identity and adds user_id to
// the request logger and span.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "Missing "+UserIDHeader+" header")
			return
		}
		if err := validation.ValidateUserID(userID); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		ctx = logger.With(ctx, "user_id", userID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", userID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFromContext returns the identity stored by requireUser.
func userIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
