package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
)

// parseTaskID reads the {taskID} path parameter.
func parseTaskID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", analytics.ErrInvalidTask, raw)
	}
	return id, nil
}

// parseDateRange reads start_date and end_date (YYYY-MM-DD). Both must be given
// together; with neither, the trailing DefaultWindowDays window ending today is
// used.
func parseDateRange(r *http.Request, engine *analytics.Engine) (analytics.DateRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	switch {
	case start == "" && end == "":
		return analytics.TrailingRange(engine.Now(), DefaultWindowDays, engine.Location())
	case start == "" || end == "":
		return analytics.DateRange{}, fmt.Errorf("%w: start_date and end_date must be given together", analytics.ErrInvalidDateRange)
	}
	return analytics.ParseDateRange(start, end)
}

// parseBool reads an optional boolean query parameter.
func parseBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}

// parseAsOf reads the optional as_of parameter: an RFC 3339 instant, or a
// YYYY-MM-DD date meaning the last millisecond of that day in loc. Missing
// means now.
func parseAsOf(r *http.Request, engine *analytics.Engine) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return engine.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(analytics.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of %q", analytics.ErrInvalidTimestamp, raw)
	}
	day, _ := analytics.NewDateRange(d, d)
	_, end := day.Bounds(engine.Location())
	return end.Add(-time.Millisecond), nil
}

// decodeBody decodes a JSON request body and writes the error response itself
// when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
