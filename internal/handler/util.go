// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/middleware"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, &errorBody{Error: message})
}

// writeServiceError maps service errors to status codes. Unexpected errors
// are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var verr *middleware.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, r, http.StatusBadRequest, &errorBody{Error: verr.Message, Fields: verr.Fields})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrConversationClosed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrDiscountInvalid):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := middleware.Decode(r, v); err != nil {
		var verr *middleware.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, r, http.StatusBadRequest, &errorBody{Error: verr.Message, Fields: verr.Fields})
		} else {
			writeError(w, r, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

// afterParam parses the optional ?after= RFC3339 cursor.
func afterParam(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// boolParam reads a query flag, defaulting to def.
func boolParam(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// listParam splits a comma-separated query value.
func listParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// agentFrom builds the acting agent from the admin token.
func agentFrom(r *http.Request) service.Agent {
	return service.Agent{
		ID:   middleware.GetUserID(r.Context()),
		Name: middleware.GetUserName(r.Context()),
	}
}
