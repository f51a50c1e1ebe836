package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entries := []interface{}{"msg", "request"}
			reqID := middleware.GetReqID(r.Context())
			if reqID != "" {
				entries = append(entries, "id", reqID)
			}
			entries = append(entries, "method", r.Method, "path", r.URL.Path, "from", r.RemoteAddr)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entries = append(entries,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
				level.Info(logger).Log(entries...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
