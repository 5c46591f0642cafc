package fleet

import (
	"context"
	"testing"
	"time"

	"webdriver-fleet-mcp/internal/config"
)

func newTestSupervisor(t *testing.T, readiness time.Duration) *ProcessSupervisor {
	t.Helper()
	catalog := NewDriverCatalog(config.CatalogConfig{
		ExecutableOverrides: map[string]string{
			"chrome": "sleep",
		},
	})
	return NewProcessSupervisor(catalog, readiness)
}

func TestStartTimesOutWhenDriverNeverReady(t *testing.T) {
	s := newTestSupervisor(t, 300*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Start(ctx, config.Chrome)
	if err == nil {
		t.Fatal("expected startup timeout error")
	}
	fleetErr, ok := err.(*Error)
	if !ok || fleetErr.Kind != StartupTimeout {
		t.Errorf("expected StartupTimeout error kind, got %v", err)
	}

	// clean up the leaked "sleep" child so the test doesn't leave it running
	s.StopAll(ctx)
}

func TestStopOnUnstartedKindIsNoop(t *testing.T) {
	s := newTestSupervisor(t, time.Second)
	if err := s.Stop(config.Firefox); err != nil {
		t.Errorf("expected nil error stopping unstarted kind, got %v", err)
	}
}

func TestGenerationIncrementsOnKillExternal(t *testing.T) {
	s := newTestSupervisor(t, time.Second)
	before := s.Generation(config.Chrome)
	if err := s.KillExternal(context.Background(), config.Chrome); err != nil {
		t.Fatalf("KillExternal: %v", err)
	}
	after := s.Generation(config.Chrome)
	if after != before+1 {
		t.Errorf("expected generation to increment, got %d -> %d", before, after)
	}
}

func TestStatusReportsNoProcessBeforeStart(t *testing.T) {
	s := newTestSupervisor(t, time.Second)
	if _, ok := s.Status(config.Chrome); ok {
		t.Error("expected no status before Start")
	}
}
