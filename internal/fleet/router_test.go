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

func TestExtractKindRecognizesAliases(t *testing.T) {
	r := &SessionRouter{}
	cases := map[string]config.BrowserKind{
		"chrome-abc123":   config.Chrome,
		"Chromium-xyz":    config.Chrome,
		"FIREFOX-1":       config.Firefox,
		"gecko-session-2": config.Firefox,
		"edge-foo":        config.Edge,
		"unknown-9":       "",
	}
	for input, want := range cases {
		if got := r.ExtractKind(input); got != want {
			t.Errorf("ExtractKind(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveUsesFixedEndpointWhenConfigured(t *testing.T) {
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	health := NewHealthMonitor(supervisor, catalog, time.Second)
	cfg := config.BrowserConfig{Endpoint: "http://localhost:4444", AutoStart: false}
	r := NewSessionRouter(cfg, catalog, supervisor, health)

	id, endpoint, kind, err := r.Resolve(context.Background(), "firefox-abc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if endpoint != "http://localhost:4444" {
		t.Errorf("expected fixed endpoint, got %q", endpoint)
	}
	if kind != config.Firefox {
		t.Errorf("expected firefox kind, got %q", kind)
	}
	if id != "firefox-abc" {
		t.Errorf("expected echoed session id, got %q", id)
	}
}

func TestResolveFailsWhenNoneHealthyAndAutoStartDisabled(t *testing.T) {
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	health := NewHealthMonitor(supervisor, catalog, time.Second)
	cfg := config.BrowserConfig{Endpoint: "auto", AutoStart: false}
	r := NewSessionRouter(cfg, catalog, supervisor, health)

	_, _, _, err := r.Resolve(context.Background(), "")
	if err == nil {
		t.Fatal("expected NoAvailableDriver error")
	}
	fleetErr, ok := err.(*Error)
	if !ok || fleetErr.Kind != NoAvailableDriver {
		t.Errorf("expected NoAvailableDriver, got %v", err)
	}
}

func TestCanonicalIDMintsWhenEmpty(t *testing.T) {
	r := &SessionRouter{}
	id := r.canonicalID("", config.Chrome)
	if len(id) <= len("chrome-") {
		t.Errorf("expected minted id with uuid suffix, got %q", id)
	}
}

func TestCreateClientSucceedsWithoutConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": map[string]interface{}{"sessionId": "s1"},
		})
	}))
	defer srv.Close()

	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	health := NewHealthMonitor(supervisor, catalog, time.Second)
	cfg := config.BrowserConfig{Endpoint: "auto", Headless: true}
	r := NewSessionRouter(cfg, catalog, supervisor, health)

	sess, err := r.CreateClient(context.Background(), srv.URL, config.Chrome)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if sess.ID() != "s1" {
		t.Errorf("expected session id s1, got %q", sess.ID())
	}
}

func TestIsSessionConflictMatchesKnownMessages(t *testing.T) {
	err := &Error{Kind: SessionConflict, Message: "driver reported: session already started"}
	if !isSessionConflict(err) {
		t.Error("expected session conflict detection")
	}
}
