package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogMeta(t *testing.T) {
	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
	}{
		{200, slog.LevelInfo, "success"},
		{204, slog.LevelInfo, "success"},
		{301, slog.LevelInfo, "redirect"},
		{404, slog.LevelWarn, "client_error"},
		{500, slog.LevelError, "server_error"},
		{503, slog.LevelError, "server_error"},
	}
	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		if level != tc.wantLevel || result != tc.wantResult {
			t.Fatalf("requestLogMeta(%d) = (%v, %q), want (%v, %q)", tc.status, level, result, tc.wantLevel, tc.wantResult)
		}
	}
}

func TestStatusClass(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{400, "4xx"},
		{500, "5xx"},
	}
	for _, tc := range cases {
		if got := statusClass(tc.status); got != tc.want {
			t.Fatalf("statusClass(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithCORS_EmptyAllowlistPassthrough(t *testing.T) {
	h := WithCORS(okHandler(), Config{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("no CORS headers expected with an empty allowlist")
	}
}

func TestWithCORS_PreflightAllowed(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: []string{"https://app.example"}, CORSMaxAgeSeconds: 300}
	h := WithCORS(okHandler(), cfg, discardLogger())

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin mismatch: %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("missing allow-methods")
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "300" {
		t.Fatalf("max-age mismatch: %q", got)
	}
}

func TestWithCORS_PreflightRejected(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: []string{"https://app.example"}}
	h := WithCORS(okHandler(), cfg, discardLogger())

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("rejected preflight status %d", rec.Code)
	}
}

func TestWithCORS_SimpleRequestFromAllowedOrigin(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: []string{"https://app.example"}}
	h := WithCORS(okHandler(), cfg, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "https://APP.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	// Matching is case-insensitive but the header echoes the request origin.
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://APP.example" {
		t.Fatalf("allow-origin mismatch: %q", got)
	}
}

func TestWithRequestLogging_PreservesStatusAndBody(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	h := WithRequestLogging(inner, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body mismatch: %q", rec.Body.String())
	}
}
