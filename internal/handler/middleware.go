package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"slotcal/internal/model"
	"slotcal/internal/service"
)

type contextKey string

const subscriberKey contextKey = "subscriber"

// Subscriber returns the acting subscriber attached by Identity. Only
// valid on routes behind that middleware.
func Subscriber(ctx context.Context) *model.Subscriber {
	sub, _ := ctx.Value(subscriberKey).(*model.Subscriber)
	return sub
}

// Identity resolves the already-authenticated caller to a subscriber and
// attaches it to the request context. The surrounding deployment
// terminates authentication and forwards the subscriber id in
// X-Subscriber-ID; this service only consumes the result. Public claim
// routes are mounted outside this middleware and stay anonymous.
func Identity(svc *service.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Subscriber-ID")
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing subscriber identity")
				return
			}
			sub, err := svc.Profile(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unknown subscriber")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subscriberKey, sub)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog emits one structured log line per request.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
