package fleet

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webdriver-fleet-mcp/internal/config"
)

// HealthMonitor tracks which driver endpoints are currently answering
// /status as ready. It never starts or stops processes itself; it only
// observes what ProcessSupervisor has running.
type HealthMonitor struct {
	mu          sync.RWMutex
	supervisor  *ProcessSupervisor
	catalog     *DriverCatalog
	probeTimeout time.Duration
	healthy     map[config.BrowserKind]string // kind -> endpoint, present only if ready
}

// NewHealthMonitor builds a monitor over supervisor's managed processes.
func NewHealthMonitor(supervisor *ProcessSupervisor, catalog *DriverCatalog, probeTimeout time.Duration) *HealthMonitor {
	return &HealthMonitor{
		supervisor:   supervisor,
		catalog:      catalog,
		probeTimeout: probeTimeout,
		healthy:      make(map[config.BrowserKind]string),
	}
}

// Refresh probes the /status endpoint of every kind the supervisor has a
// process for, in parallel, and atomically swaps in the result set. A
// probe failure simply omits that kind from the refreshed map; the probe
// goroutines never report an error, so Refresh always returns nil.
func (h *HealthMonitor) Refresh(ctx context.Context) error {
	kinds := h.catalog.Kinds()
	next := make(map[config.BrowserKind]string)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			if _, running := h.supervisor.Status(kind); !running {
				return nil
			}
			endpoint := h.supervisor.Endpoint(kind)
			probeCtx, cancel := context.WithTimeout(gctx, h.probeTimeout)
			defer cancel()

			client := NewWireClient(endpoint, h.probeTimeout)
			ready, err := client.Status(probeCtx)
			if err != nil || !ready {
				return nil
			}

			mu.Lock()
			next[kind] = endpoint
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.mu.Lock()
	h.healthy = next
	h.mu.Unlock()
	return nil
}

// Healthy returns a snapshot of kind -> endpoint for every driver currently
// considered ready.
func (h *HealthMonitor) Healthy() map[config.BrowserKind]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snapshot := make(map[config.BrowserKind]string, len(h.healthy))
	for k, v := range h.healthy {
		snapshot[k] = v
	}
	return snapshot
}

// Endpoint returns the healthy endpoint for kind, if any.
func (h *HealthMonitor) Endpoint(kind config.BrowserKind) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	endpoint, ok := h.healthy[kind]
	return endpoint, ok
}

// RunPeriodic calls Refresh every interval until the returned cancel func
// is invoked or ctx is done.
func (h *HealthMonitor) RunPeriodic(ctx context.Context, interval time.Duration) (cancel func()) {
	runCtx, cancelFn := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				_ = h.Refresh(runCtx)
			}
		}
	}()

	return cancelFn
}
