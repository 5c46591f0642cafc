package fleet

import (
	"context"
	"testing"
	"time"

	"webdriver-fleet-mcp/internal/config"
)

func TestRefreshSkipsUnstartedKinds(t *testing.T) {
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	monitor := NewHealthMonitor(supervisor, catalog, 100*time.Millisecond)

	if err := monitor.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(monitor.Healthy()) != 0 {
		t.Errorf("expected no healthy kinds when nothing started, got %v", monitor.Healthy())
	}
}

func TestEndpointReportsUnknownKind(t *testing.T) {
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	monitor := NewHealthMonitor(supervisor, catalog, 100*time.Millisecond)

	if _, ok := monitor.Endpoint(config.Chrome); ok {
		t.Error("expected no endpoint before any Refresh")
	}
}

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	catalog := NewDriverCatalog(config.CatalogConfig{})
	supervisor := NewProcessSupervisor(catalog, time.Second)
	monitor := NewHealthMonitor(supervisor, catalog, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stop := monitor.RunPeriodic(ctx, 20*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	stop()
	cancel()
	// No assertion beyond "does not hang" — RunPeriodic's goroutine must
	// observe cancellation and return.
}
