package fleet

import (
	"context"
	"log"
	"sync"
	"time"

	"webdriver-fleet-mcp/internal/config"
)

// closeTimeout bounds how long Release waits for a driver to acknowledge
// session deletion; a slow or wedged driver must not block shutdown.
const closeTimeout = 2 * time.Second

// pooledClient is one entry in ClientPool: a live WireSession plus the
// bookkeeping needed to detect staleness against a since-restarted driver.
type pooledClient struct {
	session    *WireSession
	kind       config.BrowserKind
	generation int
	lastUsed   time.Time
}

// ClientPool exclusively owns every live WebDriver session client. It
// references SessionRouter to resolve and create sessions but never
// reaches into ProcessSupervisor directly; process restarts are observed
// only through the generation counter SessionRouter's supervisor exposes.
type ClientPool struct {
	mu            sync.Mutex
	router        *SessionRouter
	supervisor    *ProcessSupervisor
	idleTimeout   time.Duration
	entries       map[string]*pooledClient
	probeDeadline time.Duration
}

// NewClientPool builds a pool over router, using supervisor only to read
// generation counters for eviction decisions.
func NewClientPool(router *SessionRouter, supervisor *ProcessSupervisor, idleTimeout time.Duration) *ClientPool {
	return &ClientPool{
		router:        router,
		supervisor:    supervisor,
		idleTimeout:   idleTimeout,
		entries:       make(map[string]*pooledClient),
		probeDeadline: 2 * time.Second,
	}
}

// GetOrCreate resolves sessionID to a canonical id and returns a live
// client for it, creating a new WebDriver session if none is pooled, the
// pooled one failed a liveness probe, or it belongs to a prior driver
// generation (the driver was restarted since the client was created). An
// empty sessionID is treated as the "default" session.
func (p *ClientPool) GetOrCreate(ctx context.Context, sessionID string) (canonicalID string, client *WireSession, kind config.BrowserKind, err error) {
	if sessionID == "" {
		sessionID = "default"
	}
	canonicalID, endpoint, kind, err := p.router.Resolve(ctx, sessionID)
	if err != nil {
		return "", nil, "", err
	}

	p.mu.Lock()
	entry, ok := p.entries[canonicalID]
	p.mu.Unlock()

	currentGen := p.supervisor.Generation(kind)

	if ok && p.idleTimeout > 0 && time.Since(entry.lastUsed) > p.idleTimeout {
		ok = false
		p.mu.Lock()
		delete(p.entries, canonicalID)
		p.mu.Unlock()
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		if err := entry.session.Delete(closeCtx); err != nil {
			log.Printf("fleet: closing idle session %s: %v", canonicalID, err)
		}
		cancel()
	}

	if ok && entry.generation == currentGen {
		probeCtx, cancel := context.WithTimeout(ctx, p.probeDeadline)
		_, probeErr := entry.session.CurrentURL(probeCtx)
		cancel()
		if probeErr == nil {
			p.mu.Lock()
			entry.lastUsed = time.Now()
			p.mu.Unlock()
			return canonicalID, entry.session, kind, nil
		}
		// stale client, fall through to recreate
	}

	sess, err := p.router.CreateClient(ctx, endpoint, kind)
	if err != nil {
		return "", nil, "", err
	}

	p.mu.Lock()
	p.entries[canonicalID] = &pooledClient{
		session:    sess,
		kind:       kind,
		generation: currentGen,
		lastUsed:   time.Now(),
	}
	p.mu.Unlock()

	return canonicalID, sess, kind, nil
}

// Release closes and forgets the pooled client for sessionID, if present.
// The driver is given closeTimeout to acknowledge the deletion; a timeout
// is logged and returned but the entry is removed from the pool regardless.
func (p *ClientPool) Release(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	entry, ok := p.entries[sessionID]
	if ok {
		delete(p.entries, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := entry.session.Delete(closeCtx); err != nil {
		log.Printf("fleet: closing session %s: %v", sessionID, err)
		return err
	}
	return nil
}

// CloseAll releases every pooled client, collecting errors rather than
// aborting at the first failure.
func (p *ClientPool) CloseAll(ctx context.Context) []error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := p.Release(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Size reports the current number of pooled clients, used by diagnostics
// tools to report fleet occupancy.
func (p *ClientPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
