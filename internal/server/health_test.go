package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"calbridge/internal/mcp/oauth"
)

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker(nil)

	if !h.IsReady() {
		t.Error("IsReady() = false for a new checker")
	}

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after SetReady(false) = %d, want 503", rec.Code)
	}
}

func TestHealthChecker_DetailedReportsTokenStore(t *testing.T) {
	store := oauth.NewMemoryStore()
	defer store.Close()

	h := NewHealthChecker(nil)
	h.SetTokenStore(store)

	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response DetailedHealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.TokenStore != oauth.BackendMemory {
		t.Errorf("token_store = %q, want %q", response.TokenStore, oauth.BackendMemory)
	}
	if response.TokenStoreStats == nil {
		t.Error("token_store_stats missing for memory store")
	}
	if response.Uptime == "" {
		t.Error("uptime missing")
	}
}

func TestHealthChecker_LivenessIgnoresShutdown(t *testing.T) {
	sc, err := NewServerContext(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	h := NewHealthChecker(sc)
	_ = sc.Shutdown()

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status during shutdown = %d, want 200", rec.Code)
	}
}
