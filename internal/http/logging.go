package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/cleaning-scheduler/internal/logging"
)

// routeLogger scopes the request logger to one handler operation. The {id}
// route wildcard is logged under idKey, {eventID} as event_id, and the
// authenticated user as username.
func routeLogger(r *http.Request, fallback *slog.Logger, handlerName, idKey, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if idKey != "" {
		if id := strings.TrimSpace(r.PathValue("id")); id != "" {
			pairs = append(pairs, idKey, id)
		}
	}
	if eventID := strings.TrimSpace(r.PathValue("eventID")); eventID != "" {
		pairs = append(pairs, "event_id", eventID)
	}
	if username, ok := UsernameFromContext(r.Context()); ok {
		pairs = append(pairs, "username", username)
	}
	return logging.For(r.Context(), fallback).With(append(pairs, attrs...)...)
}
