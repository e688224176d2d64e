package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONSetsHeaderStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	WriteJSON(recorder, http.StatusCreated, map[string]string{"name": "tikgrab"})

	if recorder.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	var decoded map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if decoded["name"] != "tikgrab" {
		t.Errorf("expected name=tikgrab, got %s", decoded["name"])
	}
}

func TestWriteErrorWithVariousMessages(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		message    string
	}{
		{"BadRequest", http.StatusBadRequest, "Invalid filename"},
		{"NotFound", http.StatusNotFound, "File not found"},
		{"TooMany", http.StatusTooManyRequests, "too many requests"},
		{"EmptyMessage", http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()

			WriteError(recorder, tt.statusCode, tt.message)

			if recorder.Code != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, recorder.Code)
			}
			var decoded ErrorBody
			if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if decoded.Error != tt.message {
				t.Errorf("expected error=%q, got %q", tt.message, decoded.Error)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		URL string `json:"url"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
		wantURL string
	}{
		{"valid", `{"url":"https://tiktok.com/x"}`, "", "https://tiktok.com/x"},
		{"malformed", `{"url":`, "invalid request body", ""},
		{"trailing", `{"url":"a"}{"url":"b"}`, "trailing data", ""},
		{"too large", `{"url":"` + strings.Repeat("a", 100) + `"}`, "exceeds 64 bytes", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var p payload
			err := DecodeJSON(rec, req, 64, &p)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.URL != tt.wantURL {
					t.Errorf("expected url %q, got %q", tt.wantURL, p.URL)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.10:5123", "192.168.1.10"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
