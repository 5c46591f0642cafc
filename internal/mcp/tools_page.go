package mcp

import (
	"context"
	"encoding/base64"
	"os"

	"webdriver-fleet-mcp/internal/fleet"
)

// GetTitleTool reads the current document title.
type GetTitleTool struct{ pool *fleet.ClientPool }

func (t *GetTitleTool) Name() string                 { return "get_title" }
func (t *GetTitleTool) Description() string          { return "Get the current page title." }
func (t *GetTitleTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *GetTitleTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	title, err := client.Title(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "title": title}, nil
}

// GetPageSourceTool reads the current document's serialized HTML.
type GetPageSourceTool struct{ pool *fleet.ClientPool }

func (t *GetPageSourceTool) Name() string                 { return "get_page_source" }
func (t *GetPageSourceTool) Description() string          { return "Get the current page's full HTML source." }
func (t *GetPageSourceTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *GetPageSourceTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	source, err := client.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "source": source}, nil
}

// ExecuteScriptTool runs arbitrary JavaScript in the session's page context.
type ExecuteScriptTool struct{ pool *fleet.ClientPool }

func (t *ExecuteScriptTool) Name() string        { return "execute_script" }
func (t *ExecuteScriptTool) Description() string { return "Execute a JavaScript expression synchronously in the current page." }
func (t *ExecuteScriptTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"script": map[string]interface{}{"type": "string", "description": "JavaScript source; executed as a function body"},
		"args":   map[string]interface{}{"type": "array", "description": "Arguments passed as arguments[0..n]"},
	})
	schema["required"] = []string{"script"}
	return schema
}
func (t *ExecuteScriptTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "script"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	var scriptArgs []interface{}
	if raw, ok := args["args"].([]interface{}); ok {
		scriptArgs = raw
	}
	result, err := client.ExecuteScript(ctx, getStringArg(args, "script"), scriptArgs)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "result": result}, nil
}

// ScreenshotTool captures the current viewport as a base64-encoded PNG,
// optionally writing the decoded bytes to save_path (the {{browser}}
// substitution recipe steps rely on for per-browser screenshot filenames).
type ScreenshotTool struct{ pool *fleet.ClientPool }

func (t *ScreenshotTool) Name() string        { return "screenshot" }
func (t *ScreenshotTool) Description() string { return "Capture a PNG screenshot of the current viewport, optionally saving it to disk." }
func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return sessionIDSchema(map[string]interface{}{
		"save_path": map[string]interface{}{"type": "string", "description": "If set, write the decoded PNG to this path"},
	})
}
func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	data, err := client.Screenshot(ctx)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{"success": true, "session_id": sessionID, "image_base64": data}

	if savePath := getStringArg(args, "save_path"); savePath != "" {
		raw, decodeErr := base64.StdEncoding.DecodeString(data)
		if decodeErr != nil {
			return nil, fleet.NewError(fleet.StepFailure, decodeErr, "screenshot data was not valid base64")
		}
		if err := os.WriteFile(savePath, raw, 0o644); err != nil {
			return nil, fleet.NewError(fleet.StepFailure, err, "failed to write screenshot to %s", savePath)
		}
		result["saved_path"] = savePath
	}

	return result, nil
}

// ResizeWindowTool sets the session's window dimensions.
type ResizeWindowTool struct{ pool *fleet.ClientPool }

func (t *ResizeWindowTool) Name() string        { return "resize_window" }
func (t *ResizeWindowTool) Description() string { return "Resize the browser window to the given width and height." }
func (t *ResizeWindowTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"width":  map[string]interface{}{"type": "integer"},
		"height": map[string]interface{}{"type": "integer"},
	})
	schema["required"] = []string{"width", "height"}
	return schema
}
func (t *ResizeWindowTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	width := getIntArg(args, "width", 0)
	height := getIntArg(args, "height", 0)
	if width <= 0 || height <= 0 {
		return nil, fleet.NewError(fleet.InvalidArguments, nil, "width and height must be positive")
	}
	if err := client.SetWindowRect(ctx, width, height); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}
