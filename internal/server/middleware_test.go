package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestAPIKeyAuth verifies missing keys get 401, wrong keys 403 and the right key passes.
func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"nope", http.StatusForbidden},
		{"secret", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, rec.Code, tt.want)
		}
	}
}

// TestStatusWriterHijack verifies the logging wrapper still exposes Hijacker.
func TestStatusWriterHijack(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	var w http.ResponseWriter = sw
	if _, ok := w.(http.Hijacker); !ok {
		t.Fatal("statusWriter does not implement http.Hijacker")
	}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("expected error hijacking a recorder")
	}
	if sw.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}

// TestRequestLogging verifies that the logging middleware calls the next handler and records status.
func TestRequestLogging(t *testing.T) {
	log := slog.Default()
	handler := RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

// TestCORSHeaders verifies operator API routes get CORS headers and device routes do not.
func TestCORSHeaders(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		path       string
		wantOrigin string
		wantMethod string
	}{
		{"/api/v1/devices", "*", "GET, POST, OPTIONS"},
		{"/mcp", "*", "GET, POST, DELETE, OPTIONS"},
		{"/ws", "", ""},
		{"/metrics", "", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
			t.Errorf("%s: origin = %q, want %q", tt.path, got, tt.wantOrigin)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethod {
			t.Errorf("%s: methods = %q, want %q", tt.path, got, tt.wantMethod)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "Mcp-Session-Id" {
		t.Errorf("mcp expose headers = %q", got)
	}
}

// TestCORSPreflight verifies that OPTIONS requests to the API get 204 without reaching the handler.
func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices/1/start", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

// TestRequestLoggingProbesAtDebug verifies health and metrics requests stay out of info logs.
func TestRequestLoggingProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handler := RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("health probe logged at info: %s", buf.String())
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	if !strings.Contains(buf.String(), "path=/api/v1/devices") {
		t.Errorf("api request not logged: %s", buf.String())
	}
}
