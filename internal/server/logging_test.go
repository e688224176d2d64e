package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

const iPhoneSafari = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// captureLogs routes the default logger into a buffer for the test's lifetime.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func loggedRouter(status int) http.Handler {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestSlogMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		userAgent string
		want      []string
		silent    bool
	}{
		{
			name:   "logs request fields",
			method: http.MethodGet,
			path:   "/download/abc_clip.mp4",
			status: http.StatusOK,
			want:   []string{"method=GET", "path=/download/abc_clip.mp4", "status=200", "remote_addr=", "duration_ms="},
		},
		{
			name:   "logs error status",
			method: http.MethodPost,
			path:   "/download",
			status: http.StatusTooManyRequests,
			want:   []string{"method=POST", "status=429"},
		},
		{
			name:      "adds client from user agent",
			method:    http.MethodPost,
			path:      "/download",
			status:    http.StatusOK,
			userAgent: iPhoneSafari,
			want:      []string{"browser=Safari", "mobile=true"},
		},
		{name: "skips health check", method: http.MethodGet, path: "/api/health", status: http.StatusOK, silent: true},
		{name: "skips metrics", method: http.MethodGet, path: "/metrics", status: http.StatusOK, silent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			rec := httptest.NewRecorder()
			loggedRouter(tt.status).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			output := buf.String()
			if tt.silent {
				if output != "" {
					t.Errorf("expected no log output for %s, got: %s", tt.path, output)
				}
				return
			}
			for _, field := range tt.want {
				if !strings.Contains(output, field) {
					t.Errorf("expected log to contain %q, got: %s", field, output)
				}
			}
		})
	}
}

func TestClientAttrsEmptyHeader(t *testing.T) {
	if attrs := clientAttrs(""); attrs != nil {
		t.Errorf("expected no attributes for an empty header, got %v", attrs)
	}
}
