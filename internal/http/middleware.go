package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// CredentialChecker verifies basic auth credentials.
type CredentialChecker interface {
	Enabled() bool
	Check(username, password string) error
}

// RequireBasicAuth rejects requests without valid credentials. /health stays open.
func RequireBasicAuth(checker CredentialChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		if checker == nil || !checker.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="scheduler"`)
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingCredentials)
				return
			}
			if err := checker.Check(username, password); err != nil {
				routeLogger(r, logger, "RequireBasicAuth", "", "check").WarnContext(r.Context(), "credentials rejected", "username", username, "error", err)
				w.Header().Set("WWW-Authenticate", `Basic realm="scheduler"`)
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "Invalid username or password."})
				return
			}

			ctx := ContextWithUsername(r.Context(), username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a logger with request_id, method and path to the
// request context and logs the start and completion of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
