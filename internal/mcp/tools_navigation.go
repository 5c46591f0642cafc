package mcp

import (
	"context"

	"webdriver-fleet-mcp/internal/fleet"
)

func sessionIDSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"session_id": map[string]interface{}{
			"type":        "string",
			"description": "WebDriver session id, or empty to use/create the default session",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
}

// NavigateTool loads a URL in the resolved session's top-level browsing context.
type NavigateTool struct{ pool *fleet.ClientPool }

func (t *NavigateTool) Name() string { return "navigate" }
func (t *NavigateTool) Description() string {
	return "Navigate the browser to the given URL, starting or reusing a WebDriver session as needed."
}
func (t *NavigateTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"url": map[string]interface{}{"type": "string", "description": "Destination URL"},
	})
	schema["required"] = []string{"url"}
	return schema
}
func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "url"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	url := getStringArg(args, "url")
	if err := client.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "url": url}, nil
}

// BackTool navigates backward in session history.
type BackTool struct{ pool *fleet.ClientPool }

func (t *BackTool) Name() string                 { return "back" }
func (t *BackTool) Description() string          { return "Navigate backward in the browser's history." }
func (t *BackTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *BackTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	if err := client.Back(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// ForwardTool navigates forward in session history.
type ForwardTool struct{ pool *fleet.ClientPool }

func (t *ForwardTool) Name() string                 { return "forward" }
func (t *ForwardTool) Description() string          { return "Navigate forward in the browser's history." }
func (t *ForwardTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *ForwardTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	if err := client.Forward(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// RefreshTool reloads the current document.
type RefreshTool struct{ pool *fleet.ClientPool }

func (t *RefreshTool) Name() string                 { return "refresh" }
func (t *RefreshTool) Description() string          { return "Reload the current page." }
func (t *RefreshTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *RefreshTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	if err := client.Refresh(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// GetCurrentURLTool reports the active document's URL.
type GetCurrentURLTool struct{ pool *fleet.ClientPool }

func (t *GetCurrentURLTool) Name() string                 { return "get_current_url" }
func (t *GetCurrentURLTool) Description() string          { return "Get the URL of the current page." }
func (t *GetCurrentURLTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *GetCurrentURLTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	url, err := client.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "url": url}, nil
}

// GetPageLoadStatusTool reports readyState via script execution.
type GetPageLoadStatusTool struct{ pool *fleet.ClientPool }

func (t *GetPageLoadStatusTool) Name() string { return "get_page_load_status" }
func (t *GetPageLoadStatusTool) Description() string {
	return "Get the document's readyState (loading, interactive, or complete)."
}
func (t *GetPageLoadStatusTool) InputSchema() map[string]interface{} { return sessionIDSchema(nil) }
func (t *GetPageLoadStatusTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	status, err := client.ExecuteScript(ctx, "return document.readyState;", nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "ready_state": status}, nil
}
