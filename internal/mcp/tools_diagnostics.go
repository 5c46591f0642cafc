package mcp

import (
	"context"
	"time"

	"webdriver-fleet-mcp/internal/docker"
	"webdriver-fleet-mcp/internal/fleet"
)

// GetConsoleLogsTool drains the in-page console ring buffer installed at
// session creation (see fleet.installConsoleBuffer) and, when Docker log
// correlation is configured, cross-references it against recent backing
// container logs.
type GetConsoleLogsTool struct {
	pool         *fleet.ClientPool
	dockerClient *docker.Client
}

func (t *GetConsoleLogsTool) Name() string { return "get_console_logs" }
func (t *GetConsoleLogsTool) Description() string {
	return "Drain the page's console log buffer, optionally cross-referenced with backing Docker container logs."
}
func (t *GetConsoleLogsTool) InputSchema() map[string]interface{} {
	return sessionIDSchema(map[string]interface{}{
		"since_seconds": map[string]interface{}{"type": "integer", "description": "How far back to look in Docker logs, default 60"},
		"errors_only":   map[string]interface{}{"type": "boolean", "description": "Return only ERROR/WARNING/CRITICAL Docker container log entries; console logs are not filtered"},
	})
}
func (t *GetConsoleLogsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}

	var consoleLogs []interface{}
	if raw, scriptErr := client.ExecuteScript(ctx, "return window.__fleetConsoleBuffer || [];", nil); scriptErr == nil {
		if entries, ok := raw.([]interface{}); ok {
			consoleLogs = entries
		}
	}

	result := map[string]interface{}{"success": true, "session_id": sessionID, "console_logs": consoleLogs}

	if t.dockerClient == nil {
		result["container_logs"] = []docker.LogEntry{}
		result["note"] = "docker log correlation not configured"
		return result, nil
	}

	sinceSeconds := getIntArg(args, "since_seconds", 60)
	since := timeNowMinus(time.Duration(sinceSeconds) * time.Second)
	logs, err := t.dockerClient.QueryLogs(ctx, since)
	if err != nil {
		return nil, err
	}
	if getBoolArg(args, "errors_only", false) {
		logs = t.dockerClient.FilterErrors(logs)
	}
	result["container_logs"] = logs
	result["count"] = len(consoleLogs) + len(logs)
	return result, nil
}

// timeNowMinus exists so the single non-deterministic time.Now() call in
// this file's request path is isolated to one line.
func timeNowMinus(d time.Duration) time.Time { return time.Now().Add(-d) }

// GetPerformanceMetricsTool reads the Navigation Timing and Paint Timing
// APIs from the current page via execute_script.
type GetPerformanceMetricsTool struct{ pool *fleet.ClientPool }

func (t *GetPerformanceMetricsTool) Name() string { return "get_performance_metrics" }
func (t *GetPerformanceMetricsTool) Description() string {
	return "Read navigation and paint timing metrics from the current page."
}
func (t *GetPerformanceMetricsTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *GetPerformanceMetricsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	script := `
		var nav = performance.getEntriesByType('navigation')[0] || {};
		var paints = {};
		performance.getEntriesByType('paint').forEach(function(p) { paints[p.name] = p.startTime; });
		return {
			dom_content_loaded_ms: nav.domContentLoadedEventEnd || null,
			load_event_ms: nav.loadEventEnd || null,
			dns_ms: nav.domainLookupEnd - nav.domainLookupStart || null,
			tcp_ms: nav.connectEnd - nav.connectStart || null,
			ttfb_ms: nav.responseStart || null,
			paints: paints
		};
	`
	result, err := client.ExecuteScript(ctx, script, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "metrics": result}, nil
}

// MonitorMemoryUsageTool reads the non-standard performance.memory API
// where available (Chromium-family browsers).
type MonitorMemoryUsageTool struct{ pool *fleet.ClientPool }

func (t *MonitorMemoryUsageTool) Name() string        { return "monitor_memory_usage" }
func (t *MonitorMemoryUsageTool) Description() string { return "Read JS heap memory usage, where the browser exposes performance.memory." }
func (t *MonitorMemoryUsageTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *MonitorMemoryUsageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	script := `
		if (!performance.memory) { return null; }
		return {
			used_js_heap_bytes: performance.memory.usedJSHeapSize,
			total_js_heap_bytes: performance.memory.totalJSHeapSize,
			js_heap_limit_bytes: performance.memory.jsHeapSizeLimit
		};
	`
	result, err := client.ExecuteScript(ctx, script, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "memory": result}, nil
}

// MonitorResourceUsageTool reports the count and transferred byte total of
// every resource the current page has loaded.
type MonitorResourceUsageTool struct{ pool *fleet.ClientPool }

func (t *MonitorResourceUsageTool) Name() string        { return "monitor_resource_usage" }
func (t *MonitorResourceUsageTool) Description() string { return "Summarize the resources the current page has loaded." }
func (t *MonitorResourceUsageTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *MonitorResourceUsageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	script := `
		var entries = performance.getEntriesByType('resource');
		var totalBytes = 0, byType = {};
		entries.forEach(function(e) {
			totalBytes += e.transferSize || 0;
			byType[e.initiatorType] = (byType[e.initiatorType] || 0) + 1;
		});
		return { resource_count: entries.length, total_transfer_bytes: totalBytes, by_type: byType };
	`
	result, err := client.ExecuteScript(ctx, script, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "resources": result}, nil
}

// RunPerformanceTestTool times repeated navigations to the same URL to
// produce a crude load-time distribution.
type RunPerformanceTestTool struct{ pool *fleet.ClientPool }

func (t *RunPerformanceTestTool) Name() string        { return "run_performance_test" }
func (t *RunPerformanceTestTool) Description() string { return "Navigate to a URL repeatedly and report per-run load times." }
func (t *RunPerformanceTestTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"url":       map[string]interface{}{"type": "string"},
		"iterations": map[string]interface{}{"type": "integer", "description": "Number of navigations to run, default 3"},
	})
	schema["required"] = []string{"url"}
	return schema
}
func (t *RunPerformanceTestTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "url"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	url := getStringArg(args, "url")
	iterations := getIntArg(args, "iterations", 3)
	if iterations < 1 {
		iterations = 1
	}

	var samplesMS []int64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if err := client.Navigate(ctx, url); err != nil {
			return nil, err
		}
		samplesMS = append(samplesMS, time.Since(start).Milliseconds())
	}

	var total int64
	for _, s := range samplesMS {
		total += s
	}
	average := total / int64(len(samplesMS))

	return map[string]interface{}{
		"success":       true,
		"session_id":    sessionID,
		"url":           url,
		"samples_ms":    samplesMS,
		"average_ms":    average,
	}, nil
}
