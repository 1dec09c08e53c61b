package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mw := NewRequestLoggingMiddleware(logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := mw.Handler(handler)

	req := httptest.NewRequest("GET", "/plan/status", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	logOutput := buf.String()

	if !strings.Contains(logOutput, "GET") {
		t.Errorf("log should contain method, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "/plan/status") {
		t.Errorf("log should contain path, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "200") {
		t.Errorf("log should contain status code, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "duration") {
		t.Errorf("log should contain duration, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_LogsClientIP(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mw := NewRequestLoggingMiddleware(logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := mw.Handler(handler)

	req := httptest.NewRequest("GET", "/analysis/history", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	logOutput := buf.String()

	// Should log the real client IP from X-Forwarded-For
	if !strings.Contains(logOutput, "203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_WarnsOnServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mw := NewRequestLoggingMiddleware(logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	wrapped := mw.Handler(handler)

	req := httptest.NewRequest("POST", "/analysis", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	logOutput := buf.String()

	if !strings.Contains(logOutput, "500") {
		t.Errorf("log should contain error status, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "WARN") {
		t.Errorf("5xx responses should log at warn level, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mw := NewRequestLoggingMiddleware(logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := mw.Handler(handler)

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}

	if buf.Len() != 0 {
		t.Errorf("health and metrics requests should not be logged, got: %s", buf.String())
	}
}

// =============================================================================
// Path Sanitization Tests
// =============================================================================

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{
			name:     "no query",
			path:     "/plan/status",
			rawQuery: "",
			want:     "/plan/status",
		},
		{
			name:     "benign query preserved",
			path:     "/analysis/history",
			rawQuery: "limit=10",
			want:     "/analysis/history?limit=10",
		},
		{
			name:     "token redacted",
			path:     "/plan/status",
			rawQuery: "token=abc123&limit=5",
			want:     "/plan/status?token=[REDACTED]&limit=5",
		},
		{
			name:     "api key redacted case-insensitively",
			path:     "/brands",
			rawQuery: "API_KEY=xyz",
			want:     "/brands?API_KEY=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizePath(tt.path, tt.rawQuery)
			if got != tt.want {
				t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.rawQuery, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Client IP Tests
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "x-forwarded-for wins",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 10.0.0.2"},
			want:       "203.0.113.195",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			got := getClientIP(req)
			if got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
