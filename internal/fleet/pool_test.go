package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webdriver-fleet-mcp/internal/config"
)

func newFixedEndpointPool(t *testing.T, srv *httptest.Server) (*ClientPool, *ProcessSupervisor) {
	t.Helper()
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	health := NewHealthMonitor(supervisor, catalog, time.Second)
	cfg := config.BrowserConfig{Endpoint: srv.URL, AutoStart: false, Headless: true}
	router := NewSessionRouter(cfg, catalog, supervisor, health)
	return NewClientPool(router, supervisor, time.Minute), supervisor
}

func TestGetOrCreateReusesLiveClient(t *testing.T) {
	var sessionCreates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			sessionCreates++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]interface{}{"sessionId": "s1"},
			})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"value": "https://example.com"})
		}
	}))
	defer srv.Close()

	pool, _ := newFixedEndpointPool(t, srv)

	id1, _, _, err := pool.GetOrCreate(context.Background(), "chrome-test")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	id2, _, _, err := pool.GetOrCreate(context.Background(), "chrome-test")
	if err != nil {
		t.Fatalf("GetOrCreate second call: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected stable canonical id, got %q then %q", id1, id2)
	}
	if sessionCreates != 1 {
		t.Errorf("expected exactly one session creation, got %d", sessionCreates)
	}
}

func TestReleaseForgetsClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]interface{}{"sessionId": "s1"},
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
		}
	}))
	defer srv.Close()

	pool, _ := newFixedEndpointPool(t, srv)
	id, _, _, err := pool.GetOrCreate(context.Background(), "chrome-test")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := pool.Release(context.Background(), id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if pool.Size() != 0 {
		t.Errorf("expected empty pool after release, got size %d", pool.Size())
	}
}

func TestReleaseUnknownSessionIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	pool, _ := newFixedEndpointPool(t, srv)
	if err := pool.Release(context.Background(), "never-created"); err != nil {
		t.Errorf("expected nil error releasing unknown session, got %v", err)
	}
}
