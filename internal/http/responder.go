package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/viewsession"
)

var (
	errBadRequestBody     = errors.New("Invalid request body.")
	errInvalidJobID       = errors.New("Invalid job id.")
	errInvalidEmployeeID  = errors.New("Invalid employee id.")
	errInvalidViewID      = errors.New("Invalid view id.")
	errInvalidDate        = errors.New("Invalid date, expected YYYY-MM-DD.")
	errInvalidEventTime   = errors.New("Invalid event time, expected an RFC 3339 start and end.")
	errMissingCredentials = errors.New("Authentication is required.")
	errMissingUpload      = errors.New("Attach the spreadsheet as the \"file\" form field.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: statusMessage(http.StatusUnprocessableEntity),
			Errors:  vErr.FieldErrors,
		})
	case errors.As(err, &cErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SCHEDULE_CONFLICT",
			Message:   application.UserMessage(err),
			Warnings:  toWarningDTOs(cErr.Warnings),
		})
	case errors.Is(err, application.ErrNotFound),
		errors.Is(err, viewsession.ErrViewNotFound),
		errors.Is(err, calendar.ErrUnknownEvent):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrReadOnly), errors.Is(err, calendar.ErrReadOnlyEvent):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "READ_ONLY", Message: "This job comes from an external calendar and cannot be edited here."})
	case errors.Is(err, viewsession.ErrMissingStart):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: errInvalidEventTime.Error()})
	case errors.Is(err, calendar.ErrGestureActive):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "GESTURE_ACTIVE", Message: "The event is being dragged."})
	case errors.Is(err, application.ErrAlreadyExists), errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: statusMessage(http.StatusConflict)})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request is malformed."
	case http.StatusUnauthorized:
		return "Authentication is required."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case http.StatusUnprocessableEntity:
		return "The input contains errors."
	default:
		return "An internal server error occurred."
	}
}

type errorResponse struct {
	ErrorCode string               `json:"error_code,omitempty"`
	Message   string               `json:"message"`
	Errors    map[string]string    `json:"errors,omitempty"`
	Warnings  []conflictWarningDTO `json:"warnings,omitempty"`
}
