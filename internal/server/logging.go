package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mssola/useragent"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func quietPath(path string) bool {
	return path == "/api/health" || path == "/metrics"
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		attrs = append(attrs, clientAttrs(r.UserAgent())...)
		slog.Info("http request", attrs...)
	})
}

// clientAttrs summarises a User-Agent header as browser, os and mobile.
func clientAttrs(header string) []any {
	if header == "" {
		return nil
	}
	ua := useragent.New(header)
	browser, _ := ua.Browser()
	attrs := []any{"browser", browser, "os", ua.OS(), "mobile", ua.Mobile()}
	if ua.Bot() {
		attrs = append(attrs, "bot", true)
	}
	return attrs
}
