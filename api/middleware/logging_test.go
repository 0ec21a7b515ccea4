package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingPassesResponseThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	resp := httptest.NewRecorder()
	Logging(nil)(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))

	if resp.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", resp.Code)
	}
	if resp.Body.String() != "short and stout" {
		t.Fatalf("expected body to pass through, got %q", resp.Body.String())
	}
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if rec.status != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", rec.status)
	}

	rec = &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.WriteHeader(http.StatusNoContent)
	if rec.status != http.StatusNoContent {
		t.Fatalf("expected explicit status, got %d", rec.status)
	}
}
