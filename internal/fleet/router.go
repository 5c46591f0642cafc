package fleet

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"webdriver-fleet-mcp/internal/config"
)

// kindAliases maps loosely-cased session-id prefixes to canonical kinds,
// so callers can address a session as "chrome-...", "chromium-...",
// "firefox-...", "gecko-...", or "edge-...".
var kindAliases = map[string]config.BrowserKind{
	"chrome":   config.Chrome,
	"chromium": config.Chrome,
	"firefox":  config.Firefox,
	"gecko":    config.Firefox,
	"edge":     config.Edge,
}

// SessionRouter resolves a caller-supplied session identifier to a live
// driver endpoint and kind. It references ProcessSupervisor and
// HealthMonitor but mutates neither's internal state directly — starting
// or killing a process always goes through the supervisor's own methods.
type SessionRouter struct {
	cfg        config.BrowserConfig
	catalog    *DriverCatalog
	supervisor *ProcessSupervisor
	health     *HealthMonitor
}

// NewSessionRouter builds a router over the given fleet components.
func NewSessionRouter(cfg config.BrowserConfig, catalog *DriverCatalog, supervisor *ProcessSupervisor, health *HealthMonitor) *SessionRouter {
	return &SessionRouter{cfg: cfg, catalog: catalog, supervisor: supervisor, health: health}
}

// ExtractKind infers a browser kind from a session id's prefix, falling
// back to the empty BrowserKind when no alias matches.
func (r *SessionRouter) ExtractKind(sessionID string) config.BrowserKind {
	lower := strings.ToLower(sessionID)
	for alias, kind := range kindAliases {
		if strings.HasPrefix(lower, alias) {
			return kind
		}
	}
	return ""
}

// preferredOrder returns the kind search order: explicit preference first,
// then the catalog's default precedence.
func (r *SessionRouter) preferredOrder() []config.BrowserKind {
	kinds := r.catalog.Kinds()
	if r.cfg.Preferred == "" {
		return kinds
	}
	ordered := []config.BrowserKind{r.cfg.Preferred}
	for _, k := range kinds {
		if k != r.cfg.Preferred {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

// Resolve maps sessionID (possibly empty, requesting "any available
// driver") to a canonical session id, a live endpoint, and the resolved
// kind. Resolution steps:
//  1. If a fixed (non-"auto") WEBDRIVER_ENDPOINT is configured, use it
//     verbatim regardless of kind.
//  2. Otherwise, if sessionID carries a recognizable kind prefix, target
//     that kind specifically.
//  3. Otherwise walk the preferred kind order looking for one already
//     healthy.
//  4. If none are healthy and auto-start is enabled, start the first kind
//     in preferred order and wait for it to become healthy.
//  5. If auto-start is disabled and nothing is healthy, fail with
//     NoAvailableDriver.
//  6. Refresh the health monitor's view of the chosen kind's endpoint.
//  7. Mint a canonical session id (kind-prefixed UUID) when the caller
//     did not supply one; otherwise echo the caller's id back.
func (r *SessionRouter) Resolve(ctx context.Context, sessionID string) (canonicalID string, endpoint string, kind config.BrowserKind, err error) {
	if r.cfg.Endpoint != "" && r.cfg.Endpoint != "auto" {
		kind = r.ExtractKind(sessionID)
		if kind == "" {
			kind = r.cfg.Preferred
		}
		if kind == "" {
			kind = config.Chrome
		}
		return r.canonicalID(sessionID, kind), r.cfg.Endpoint, kind, nil
	}

	kind = r.ExtractKind(sessionID)
	candidates := r.preferredOrder()
	if kind != "" {
		candidates = []config.BrowserKind{kind}
	}

	for _, k := range candidates {
		if endpoint, ok := r.health.Endpoint(k); ok {
			return r.canonicalID(sessionID, k), endpoint, k, nil
		}
	}

	if !r.cfg.AutoStart {
		return "", "", "", newError(NoAvailableDriver, nil, "no healthy driver available and auto-start is disabled")
	}

	target := candidates[0]
	if _, startErr := r.supervisor.Start(ctx, target); startErr != nil {
		return "", "", "", startErr
	}
	if refreshErr := r.health.Refresh(ctx); refreshErr != nil {
		return "", "", "", refreshErr
	}
	endpoint, ok := r.health.Endpoint(target)
	if !ok {
		return "", "", "", newError(NoAvailableDriver, nil, "%s driver started but did not become healthy", target)
	}

	return r.canonicalID(sessionID, target), endpoint, target, nil
}

func (r *SessionRouter) canonicalID(sessionID string, kind config.BrowserKind) string {
	if sessionID != "" {
		return sessionID
	}
	return string(kind) + "-" + uuid.NewString()
}

// sessionConflictMessages lists driver error substrings that indicate a
// stale external process is squatting on the session's port.
var sessionConflictMessages = []string{
	"session already started",
	"session already exists",
	"session not created",
}

// consoleBufferScript installs a ring buffer over console.log/warn/error so
// get_console_logs can retrieve recent page console output without a
// native CDP listener, which the W3C wire protocol does not expose.
const consoleBufferScript = `
	if (!window.__fleetConsoleBuffer) {
		window.__fleetConsoleBuffer = [];
		['log', 'warn', 'error', 'info'].forEach(function(level) {
			var original = console[level];
			console[level] = function() {
				window.__fleetConsoleBuffer.push({
					level: level,
					message: Array.prototype.slice.call(arguments).map(String).join(' '),
					time: Date.now()
				});
				if (window.__fleetConsoleBuffer.length > 500) { window.__fleetConsoleBuffer.shift(); }
				return original.apply(console, arguments);
			};
		});
	}
`

// CreateClient opens a new W3C session against endpoint for kind. If the
// driver reports a session conflict (typically a leaked prior process),
// CreateClient kills the external process once via ProcessSupervisor,
// restarts the driver, and retries exactly once before giving up.
func (r *SessionRouter) CreateClient(ctx context.Context, endpoint string, kind config.BrowserKind) (*WireSession, error) {
	client := NewWireClient(endpoint, r.cfg.Timeout())
	caps := r.catalog.CapabilitiesFor(kind, r.cfg.Headless)

	sess, err := client.CreateSession(ctx, caps)
	if err == nil {
		installConsoleBuffer(ctx, sess)
		return sess, nil
	}
	if !isSessionConflict(err) {
		return nil, newError(DriverUnavailable, err, "failed to create %s session", kind)
	}

	if killErr := r.supervisor.KillExternal(ctx, kind); killErr != nil {
		return nil, newError(SessionConflict, err, "failed to create %s session and could not clear external process", kind)
	}
	if _, startErr := r.supervisor.Start(ctx, kind); startErr != nil {
		return nil, startErr
	}

	sess, retryErr := client.CreateSession(ctx, caps)
	if retryErr != nil {
		return nil, newError(SessionConflict, retryErr, "failed to create %s session after clearing external process", kind)
	}
	installConsoleBuffer(ctx, sess)
	return sess, nil
}

// installConsoleBuffer best-effort installs the console ring buffer; a
// failure here (e.g. the initial about:blank document rejecting scripts)
// must not fail session creation.
func installConsoleBuffer(ctx context.Context, sess *WireSession) {
	_, _ = sess.ExecuteScript(ctx, consoleBufferScript, nil)
}

func isSessionConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, candidate := range sessionConflictMessages {
		if strings.Contains(msg, candidate) {
			return true
		}
	}
	return false
}
