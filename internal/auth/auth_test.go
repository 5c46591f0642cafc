package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIssueAndValid(t *testing.T) {
	store := NewTokenStore()
	token, err := store.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !store.Valid(token) {
		t.Error("expected issued token to be valid")
	}
}

func TestRevoke(t *testing.T) {
	store := NewTokenStore()
	token, _ := store.Issue()
	store.Revoke(token)
	if store.Valid(token) {
		t.Error("expected revoked token to be invalid")
	}
}

func TestExtractBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	token, ok := ExtractBearer(req)
	if !ok || token != "abc123" {
		t.Errorf("expected abc123, got %q ok=%v", token, ok)
	}
}

func TestExtractBearerMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ExtractBearer(req); ok {
		t.Error("expected ok=false for missing header")
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	store := NewTokenStore()
	handler := Middleware(store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareAllowsValidToken(t *testing.T) {
	store := NewTokenStore()
	token, _ := store.Issue()
	handler := Middleware(store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSessionIDForUserDeterministic(t *testing.T) {
	if SessionIDForUser("alice") != SessionIDForUser("alice") {
		t.Error("expected deterministic derivation")
	}
	if SessionIDForUser("alice") == SessionIDForUser("bob") {
		t.Error("expected distinct ids for distinct users")
	}
}
