package fleet

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webdriver-fleet-mcp/internal/config"
)

// ManagedProcess describes a driver process under supervision. It is the
// only place a child's OS handle is held; no other component may touch cmd.
type ManagedProcess struct {
	Kind       config.BrowserKind
	Port       uint16
	Generation int

	cmd *exec.Cmd
}

// PID returns the child's process id, or 0 if not running.
func (m *ManagedProcess) PID() int {
	if m.cmd == nil || m.cmd.Process == nil {
		return 0
	}
	return m.cmd.Process.Pid
}

// ProcessSupervisor owns every driver child process it starts. Callers
// reach drivers only through the endpoint ProcessSupervisor hands back;
// SessionRouter and ClientPool never hold a *ManagedProcess themselves.
type ProcessSupervisor struct {
	mu               sync.Mutex
	catalog          *DriverCatalog
	readinessTimeout time.Duration
	processes        map[config.BrowserKind]*ManagedProcess
	generation       map[config.BrowserKind]int
}

// NewProcessSupervisor builds a supervisor bound to catalog for driver
// discovery and launch-argument construction.
func NewProcessSupervisor(catalog *DriverCatalog, readinessTimeout time.Duration) *ProcessSupervisor {
	return &ProcessSupervisor{
		catalog:          catalog,
		readinessTimeout: readinessTimeout,
		processes:        make(map[config.BrowserKind]*ManagedProcess),
		generation:       make(map[config.BrowserKind]int),
	}
}

// Endpoint returns the loopback base URL a started driver of kind listens on.
func (s *ProcessSupervisor) Endpoint(kind config.BrowserKind) string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.catalog.DefaultPort(kind))
}

// Start launches kind's driver if not already running, waits for its
// /status endpoint to report ready (or readinessTimeout elapses), and
// returns the managed process. If an endpoint at the canonical port is
// already answering /status before a spawn is attempted, Start adopts it
// without spawning a redundant child.
func (s *ProcessSupervisor) Start(ctx context.Context, kind config.BrowserKind) (*ManagedProcess, error) {
	s.mu.Lock()
	if existing, ok := s.processes[kind]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	port := s.catalog.DefaultPort(kind)

	probe := NewWireClient(s.Endpoint(kind), 500*time.Millisecond)
	if ready, _ := probe.Status(ctx); ready {
		s.mu.Lock()
		proc := &ManagedProcess{Kind: kind, Port: port, Generation: s.generation[kind]}
		s.processes[kind] = proc
		s.mu.Unlock()
		return proc, nil
	}

	execPath, err := s.catalog.ResolveExecutable(kind)
	if err != nil {
		return nil, err
	}

	args := s.catalog.ArgvFor(kind, port)

	cmd := exec.Command(execPath, args...)
	if err := cmd.Start(); err != nil {
		return nil, newError(DriverUnavailable, err, "failed to start %s driver", kind)
	}

	s.mu.Lock()
	s.generation[kind]++
	proc := &ManagedProcess{Kind: kind, Port: port, Generation: s.generation[kind], cmd: cmd}
	s.processes[kind] = proc
	s.mu.Unlock()

	client := NewWireClient(s.Endpoint(kind), 500*time.Millisecond)
	deadline := time.Now().Add(s.readinessTimeout)
	for time.Now().Before(deadline) {
		ready, _ := client.Status(ctx)
		if ready {
			return proc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	return nil, newError(StartupTimeout, nil, "%s driver did not become ready within %s", kind, s.readinessTimeout)
}

// StartConcurrent launches every kind in parallel via errgroup. The two
// returned slices are aligned with kinds: results[i] is nil wherever
// errs[i] reports that kind's failure. Partial success is expected: one
// kind's missing executable must not block the others.
func (s *ProcessSupervisor) StartConcurrent(ctx context.Context, kinds []config.BrowserKind) ([]*ManagedProcess, []error) {
	results := make([]*ManagedProcess, len(kinds))
	errs := make([]error, len(kinds))

	g, gctx := errgroup.WithContext(context.Background())
	_ = gctx // each Start call receives the caller's ctx; the group only tracks completion

	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			proc, err := s.Start(ctx, kind)
			results[i] = proc
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// Stop terminates kind's driver process, if running.
func (s *ProcessSupervisor) Stop(kind config.BrowserKind) error {
	s.mu.Lock()
	proc, ok := s.processes[kind]
	if ok {
		delete(s.processes, kind)
	}
	s.mu.Unlock()

	if !ok || proc.cmd == nil || proc.cmd.Process == nil {
		return nil
	}
	if err := proc.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("stopping %s driver: %w", kind, err)
	}
	_ = proc.cmd.Wait()
	return nil
}

// StopAll terminates every managed driver process, collecting errors
// rather than stopping at the first failure.
func (s *ProcessSupervisor) StopAll(ctx context.Context) []error {
	s.mu.Lock()
	kinds := make([]config.BrowserKind, 0, len(s.processes))
	for kind := range s.processes {
		kinds = append(kinds, kind)
	}
	s.mu.Unlock()

	var errs []error
	for _, kind := range kinds {
		if err := s.Stop(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// KillExternal kills every process whose command line matches kind's
// driver executable name (taskkill on Windows, pkill -f elsewhere), e.g.
// one leaked from a previous run. It does not tell external processes
// apart from the one this supervisor started: that one is killed too, and
// its entry is dropped and kind's generation advanced so the next Start
// spawns afresh. It is a recovery step for "session already started"
// errors. A failure of the kill command, or its absence, is ignored, and
// the call always waits 500ms and returns nil.
func (s *ProcessSupervisor) KillExternal(ctx context.Context, kind config.BrowserKind) error {
	name, err := s.catalog.ExecutableName(kind)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "taskkill", "/IM", name, "/F")
	default:
		cmd = exec.CommandContext(ctx, "pkill", "-f", name)
	}
	_ = cmd.Run() // absence of the process, or of the tool itself, is not an error here

	s.mu.Lock()
	delete(s.processes, kind)
	s.generation[kind]++
	s.mu.Unlock()

	time.Sleep(500 * time.Millisecond) // let the OS release the port
	return nil
}

// Status reports whether kind currently has a supervised process.
func (s *ProcessSupervisor) Status(kind config.BrowserKind) (*ManagedProcess, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc, ok := s.processes[kind]
	return proc, ok
}

// Generation returns the current start/kill generation counter for kind,
// used by ClientPool to evict clients bound to a since-restarted driver.
func (s *ProcessSupervisor) Generation(kind config.BrowserKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation[kind]
}
