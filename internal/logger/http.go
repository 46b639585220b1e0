package logger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/studentportal/internal/http"
)

// RequestLogger attaches a request-scoped logger to the context and logs
// one line per request once the handler has finished.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			reqLogger := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ctx := reqLogger.WithContext(r.Context())
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			event := reqLogger.Info()
			if status >= http.StatusInternalServerError {
				event = reqLogger.Error()
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}
