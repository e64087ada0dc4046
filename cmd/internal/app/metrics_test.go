package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWithRequestMetrics_LabelsByMuxPattern(t *testing.T) {
	m := NewMetrics(nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := m.WithRequestMetrics(mux)

	for _, path := range []string{"/healthz", "/wp-admin/setup.php", "/does/not/exist"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/healthz", "2xx")); got != 1 {
		t.Fatalf("matched pattern count = %v, want 1", got)
	}

	// Unmatched paths collapse into one label value instead of minting a
	// new pair per probe path.
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "4xx")); got != 2 {
		t.Fatalf("unmatched bucket count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/wp-admin/setup.php", "4xx")); got != 0 {
		t.Fatalf("raw scan path must not become a label, got %v", got)
	}
}

func TestObserveAuth_Counts(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveAuth("login", "ok")
	m.ObserveAuth("login", "ok")
	m.ObserveAuth("refresh", "rejected")

	if got := testutil.ToFloat64(m.authOps.WithLabelValues("login", "ok")); got != 2 {
		t.Fatalf("login/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.authOps.WithLabelValues("refresh", "rejected")); got != 1 {
		t.Fatalf("refresh/rejected = %v, want 1", got)
	}
}
