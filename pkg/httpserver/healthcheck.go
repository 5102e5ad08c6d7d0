package httpserver

import (
	"context"
	"log/slog"
	"net/http"
)

// Healthcheck returns a handler usable for liveness and readiness
// probes. With no dependency checks it always answers 200 "ALIVE".
// With checks it answers 200 "READY" only if every check passes,
// otherwise 500 "NOT_READY".
func Healthcheck(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
