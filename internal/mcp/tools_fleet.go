package mcp

import (
	"context"

	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/fleet"
)

func browserKindSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"driver_type": map[string]interface{}{
				"type":        "string",
				"description": "chrome, firefox, or edge",
			},
		},
		"required": []string{"driver_type"},
	}
}

// StartDriverTool launches a driver process for a named browser kind.
type StartDriverTool struct {
	supervisor *fleet.ProcessSupervisor
	health     *fleet.HealthMonitor
}

func (t *StartDriverTool) Name() string        { return "start_driver" }
func (t *StartDriverTool) Description() string { return "Start the WebDriver process for the given browser kind." }
func (t *StartDriverTool) InputSchema() map[string]interface{} { return browserKindSchema() }
func (t *StartDriverTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "driver_type"); err != nil {
		return nil, err
	}
	kind := config.BrowserKind(getStringArg(args, "driver_type"))
	proc, err := t.supervisor.Start(ctx, kind)
	if err != nil {
		return nil, err
	}
	_ = t.health.Refresh(ctx)
	return map[string]interface{}{"success": true, "driver_type": kind, "pid": proc.PID(), "port": proc.Port}, nil
}

// StopDriverTool stops the driver process for a named browser kind.
type StopDriverTool struct{ supervisor *fleet.ProcessSupervisor }

func (t *StopDriverTool) Name() string        { return "stop_driver" }
func (t *StopDriverTool) Description() string { return "Stop the WebDriver process for the given browser kind." }
func (t *StopDriverTool) InputSchema() map[string]interface{} { return browserKindSchema() }
func (t *StopDriverTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "driver_type"); err != nil {
		return nil, err
	}
	kind := config.BrowserKind(getStringArg(args, "driver_type"))
	if err := t.supervisor.Stop(kind); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "driver_type": kind}, nil
}

// StopAllDriversTool stops every managed driver process.
type StopAllDriversTool struct{ supervisor *fleet.ProcessSupervisor }

func (t *StopAllDriversTool) Name() string                 { return "stop_all_drivers" }
func (t *StopAllDriversTool) Description() string          { return "Stop every currently managed WebDriver process." }
func (t *StopAllDriversTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *StopAllDriversTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	errs := t.supervisor.StopAll(ctx)
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Error()
	}
	return map[string]interface{}{"success": len(errs) == 0, "errors": messages}, nil
}

// ListManagedDriversTool reports every driver kind's running state.
type ListManagedDriversTool struct {
	supervisor *fleet.ProcessSupervisor
	catalog    *fleet.DriverCatalog
}

func (t *ListManagedDriversTool) Name() string                 { return "list_managed_drivers" }
func (t *ListManagedDriversTool) Description() string          { return "List every supported browser kind and whether its driver process is running." }
func (t *ListManagedDriversTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ListManagedDriversTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var drivers []map[string]interface{}
	for _, kind := range t.catalog.Kinds() {
		proc, running := t.supervisor.Status(kind)
		entry := map[string]interface{}{"browser": kind, "running": running}
		if running {
			entry["pid"] = proc.PID()
			entry["port"] = proc.Port
			entry["generation"] = proc.Generation
		}
		drivers = append(drivers, entry)
	}
	return map[string]interface{}{"success": true, "drivers": drivers}, nil
}

// GetHealthyEndpointsTool reports every kind currently answering /status as ready.
type GetHealthyEndpointsTool struct{ health *fleet.HealthMonitor }

func (t *GetHealthyEndpointsTool) Name() string                 { return "get_healthy_endpoints" }
func (t *GetHealthyEndpointsTool) Description() string          { return "List every browser kind currently answering its readiness endpoint." }
func (t *GetHealthyEndpointsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *GetHealthyEndpointsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	healthy := t.health.Healthy()
	endpoints := make(map[string]string, len(healthy))
	for kind, endpoint := range healthy {
		endpoints[string(kind)] = endpoint
	}
	return map[string]interface{}{"success": true, "endpoints": endpoints}, nil
}

// RefreshDriverHealthTool forces an immediate health probe of every kind.
type RefreshDriverHealthTool struct{ health *fleet.HealthMonitor }

func (t *RefreshDriverHealthTool) Name() string                 { return "refresh_driver_health" }
func (t *RefreshDriverHealthTool) Description() string          { return "Force an immediate health probe of every managed driver." }
func (t *RefreshDriverHealthTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *RefreshDriverHealthTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := t.health.Refresh(ctx); err != nil {
		return nil, err
	}
	healthy := t.health.Healthy()
	endpoints := make(map[string]string, len(healthy))
	for kind, endpoint := range healthy {
		endpoints[string(kind)] = endpoint
	}
	return map[string]interface{}{"success": true, "endpoints": endpoints}, nil
}

// ForceCleanupOrphanedProcessesTool kills any externally-running driver
// process for every catalog kind, regardless of whether this supervisor
// started it.
type ForceCleanupOrphanedProcessesTool struct {
	supervisor *fleet.ProcessSupervisor
	catalog    *fleet.DriverCatalog
}

func (t *ForceCleanupOrphanedProcessesTool) Name() string { return "force_cleanup_orphaned_processes" }
func (t *ForceCleanupOrphanedProcessesTool) Description() string {
	return "Forcibly kill any driver process for every supported browser kind, including ones this server did not start."
}
func (t *ForceCleanupOrphanedProcessesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ForceCleanupOrphanedProcessesTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var cleaned []string
	for _, kind := range t.catalog.Kinds() {
		if err := t.supervisor.KillExternal(ctx, kind); err == nil {
			cleaned = append(cleaned, string(kind))
		}
	}
	return map[string]interface{}{"success": true, "cleaned": cleaned}, nil
}
