package http

import (
	"net/http"
	"time"

	applog "budget/internal/log"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger attaches a request-scoped logger carrying the chi request ID
// and logs each completed request at a level derived from its status.
func requestLogger(logger *applog.Logger) func(http.Handler) http.Handler {
	withLogger := applog.Middleware(logger.WithComponent(applog.ComponentHTTP))
	withRequestID := applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	})
	return func(next http.Handler) http.Handler {
		return withLogger(withRequestID(logCompletion(next)))
	}
}

func logCompletion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), clientIP(r))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
