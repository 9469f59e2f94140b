package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockDB struct {
	pingFunc func(ctx context.Context) error
}

func (m *mockDB) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func TestHealth_OK(t *testing.T) {
	h := New(&mockDB{})
	req := httptest.NewRequest("GET", "/make-server-27de0da4/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status=ok, got %q", resp.Status)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	h := New(&mockDB{
		pingFunc: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})
	req := httptest.NewRequest("GET", "/make-server-27de0da4/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var resp healthResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "unhealthy" {
		t.Errorf("expected status=unhealthy, got %q", resp.Status)
	}
}

// --- CORS middleware tests ---

func TestCORS_SetsHeaders(t *testing.T) {
	h := New(&mockDB{})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/make-server-27de0da4/contacts", nil)
	rec := httptest.NewRecorder()
	h.CORS(inner).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Allow-Origin=*, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("unexpected Allow-Headers: %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	h := New(&mockDB{})
	innerCalled := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/make-server-27de0da4/contact", nil)
	rec := httptest.NewRecorder()
	h.CORS(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if innerCalled {
		t.Error("expected preflight not to reach the inner handler")
	}
}
