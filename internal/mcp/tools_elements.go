package mcp

import (
	"context"
	"fmt"
	"time"

	"webdriver-fleet-mcp/internal/fleet"
)

// waitTimeout resolves a poll-loop deadline from the spec's timeout_seconds
// argument, falling back to the legacy timeout_ms key and then defaultSeconds.
func waitTimeout(args map[string]interface{}, defaultSeconds int) time.Duration {
	if _, ok := args["timeout_seconds"]; ok {
		return time.Duration(getIntArg(args, "timeout_seconds", defaultSeconds)) * time.Second
	}
	if _, ok := args["timeout_ms"]; ok {
		return time.Duration(getIntArg(args, "timeout_ms", defaultSeconds*1000)) * time.Millisecond
	}
	return time.Duration(defaultSeconds) * time.Second
}

func selectorSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"selector": map[string]interface{}{"type": "string", "description": "CSS selector"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return sessionIDSchema(props)
}

// FindElementTool locates the first element matching a CSS selector.
type FindElementTool struct{ pool *fleet.ClientPool }

func (t *FindElementTool) Name() string        { return "find_element" }
func (t *FindElementTool) Description() string { return "Locate the first element matching a CSS selector." }
func (t *FindElementTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *FindElementTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "element_id": el.ID()}, nil
}

// FindElementsTool locates every element matching a CSS selector.
type FindElementsTool struct{ pool *fleet.ClientPool }

func (t *FindElementsTool) Name() string        { return "find_elements" }
func (t *FindElementsTool) Description() string { return "Locate every element matching a CSS selector." }
func (t *FindElementsTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *FindElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	elems, err := client.FindElements(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(elems))
	for i, e := range elems {
		ids[i] = e.ID()
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "element_ids": ids, "count": len(ids)}, nil
}

// ClickTool clicks the element matching a CSS selector.
type ClickTool struct{ pool *fleet.ClientPool }

func (t *ClickTool) Name() string        { return "click" }
func (t *ClickTool) Description() string { return "Click the first element matching a CSS selector." }
func (t *ClickTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	if err := client.Click(ctx, el); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// SendKeysTool types text into the element matching a CSS selector.
type SendKeysTool struct{ pool *fleet.ClientPool }

func (t *SendKeysTool) Name() string        { return "send_keys" }
func (t *SendKeysTool) Description() string { return "Type text into the first element matching a CSS selector." }
func (t *SendKeysTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(map[string]interface{}{
		"text": map[string]interface{}{"type": "string", "description": "Text to type"},
	})
	schema["required"] = []string{"selector", "text"}
	return schema
}
func (t *SendKeysTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector", "text"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	if err := client.SendKeys(ctx, el, getStringArg(args, "text")); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// HoverTool dispatches a synthetic mouseover event at the matched element,
// since the wire client does not implement the W3C actions pipeline.
type HoverTool struct{ pool *fleet.ClientPool }

func (t *HoverTool) Name() string        { return "hover" }
func (t *HoverTool) Description() string { return "Hover the pointer over the first element matching a CSS selector." }
func (t *HoverTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *HoverTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	script := `
		var el = document.querySelector(arguments[0]);
		if (!el) { return false; }
		el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true}));
		el.dispatchEvent(new MouseEvent('mouseenter', {bubbles: true}));
		return true;
	`
	ok, err := client.ExecuteScript(ctx, script, []interface{}{getStringArg(args, "selector")})
	if err != nil {
		return nil, err
	}
	if truthyVal, _ := ok.(bool); !truthyVal {
		return nil, fleet.NewError(fleet.StepFailure, nil, "no element matched selector %q", getStringArg(args, "selector"))
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// ScrollToElementTool scrolls the matched element into view.
type ScrollToElementTool struct{ pool *fleet.ClientPool }

func (t *ScrollToElementTool) Name() string        { return "scroll_to_element" }
func (t *ScrollToElementTool) Description() string { return "Scroll the first element matching a CSS selector into view." }
func (t *ScrollToElementTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *ScrollToElementTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	script := `
		var el = document.querySelector(arguments[0]);
		if (!el) { return false; }
		el.scrollIntoView({block: 'center'});
		return true;
	`
	ok, err := client.ExecuteScript(ctx, script, []interface{}{getStringArg(args, "selector")})
	if err != nil {
		return nil, err
	}
	if truthyVal, _ := ok.(bool); !truthyVal {
		return nil, fleet.NewError(fleet.StepFailure, nil, "no element matched selector %q", getStringArg(args, "selector"))
	}
	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}

// WaitForElementTool polls for an element matching a CSS selector until it
// appears or the timeout elapses.
type WaitForElementTool struct{ pool *fleet.ClientPool }

func (t *WaitForElementTool) Name() string        { return "wait_for_element" }
func (t *WaitForElementTool) Description() string { return "Wait for an element matching a CSS selector to appear." }
func (t *WaitForElementTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(map[string]interface{}{
		"timeout_seconds": map[string]interface{}{"type": "number", "description": "Maximum time to wait, default 5"},
	})
	schema["required"] = []string{"selector"}
	return schema
}
func (t *WaitForElementTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	selector := getStringArg(args, "selector")
	timeout := waitTimeout(args, 5)
	deadline := time.Now().Add(timeout)

	for {
		if _, findErr := client.FindElement(ctx, selector); findErr == nil {
			return map[string]interface{}{"success": true, "session_id": sessionID}, nil
		}
		if time.Now().After(deadline) {
			return nil, fleet.NewError(fleet.StepFailure, nil, "timed out waiting for selector %q", selector)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// WaitForConditionTool polls a JavaScript expression until it is truthy or
// the timeout elapses.
type WaitForConditionTool struct{ pool *fleet.ClientPool }

func (t *WaitForConditionTool) Name() string        { return "wait_for_condition" }
func (t *WaitForConditionTool) Description() string { return "Wait for a JavaScript expression to become truthy." }
func (t *WaitForConditionTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"condition":         map[string]interface{}{"type": "string", "description": "JavaScript expression"},
		"timeout_seconds":   map[string]interface{}{"type": "number", "description": "Maximum time to wait, default 5"},
		"check_interval_ms": map[string]interface{}{"type": "integer", "description": "Poll interval, default 200"},
	})
	schema["required"] = []string{"condition"}
	return schema
}
func (t *WaitForConditionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "condition"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	condition := getStringArg(args, "condition")
	timeout := waitTimeout(args, 5)
	checkInterval := time.Duration(getIntArg(args, "check_interval_ms", 200)) * time.Millisecond
	deadline := time.Now().Add(timeout)
	script := "return (" + condition + ");"

	for {
		value, evalErr := client.ExecuteScript(ctx, script, nil)
		if evalErr == nil && truthy(value) {
			return map[string]interface{}{"success": true, "session_id": sessionID}, nil
		}
		if time.Now().After(deadline) {
			return nil, fleet.NewError(fleet.ConditionError, evalErr, "timed out waiting for condition %q", condition)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(checkInterval):
		}
	}
}

// GetElementInfoTool reports the tag, text, and a few attributes of the
// matched element.
type GetElementInfoTool struct{ pool *fleet.ClientPool }

func (t *GetElementInfoTool) Name() string        { return "get_element_info" }
func (t *GetElementInfoTool) Description() string { return "Get descriptive information about the first element matching a CSS selector." }
func (t *GetElementInfoTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *GetElementInfoTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	selector := getStringArg(args, "selector")
	el, err := client.FindElement(ctx, selector)
	if err != nil {
		return nil, err
	}
	text, _ := client.ElementText(ctx, el)
	tagName, _ := client.ElementProperty(ctx, el, "tagName")
	visible, _ := client.ExecuteScript(ctx,
		"var el = document.querySelector(arguments[0]); return !!(el && el.offsetParent !== null);",
		[]interface{}{selector})

	return map[string]interface{}{
		"success":    true,
		"session_id": sessionID,
		"tag_name":   tagName,
		"text":       text,
		"visible":    truthy(visible),
	}, nil
}

// GetAttributeTool reads a named HTML attribute off the matched element.
type GetAttributeTool struct{ pool *fleet.ClientPool }

func (t *GetAttributeTool) Name() string        { return "get_attribute" }
func (t *GetAttributeTool) Description() string { return "Read a named HTML attribute from the first element matching a CSS selector." }
func (t *GetAttributeTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(map[string]interface{}{
		"attribute": map[string]interface{}{"type": "string", "description": "Attribute name"},
	})
	schema["required"] = []string{"selector", "attribute"}
	return schema
}
func (t *GetAttributeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector", "attribute"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	value, err := client.ElementAttribute(ctx, el, getStringArg(args, "attribute"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "value": value}, nil
}

// GetPropertyTool reads a named JavaScript property off the matched element.
type GetPropertyTool struct{ pool *fleet.ClientPool }

func (t *GetPropertyTool) Name() string        { return "get_property" }
func (t *GetPropertyTool) Description() string { return "Read a named JavaScript property from the first element matching a CSS selector." }
func (t *GetPropertyTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(map[string]interface{}{
		"property": map[string]interface{}{"type": "string", "description": "Property name"},
	})
	schema["required"] = []string{"selector", "property"}
	return schema
}
func (t *GetPropertyTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector", "property"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	value, err := client.ElementProperty(ctx, el, getStringArg(args, "property"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "value": value}, nil
}

// GetTextTool reads the rendered text of the matched element.
type GetTextTool struct{ pool *fleet.ClientPool }

func (t *GetTextTool) Name() string        { return "get_text" }
func (t *GetTextTool) Description() string { return "Read the rendered text of the first element matching a CSS selector." }
func (t *GetTextTool) InputSchema() map[string]interface{} {
	schema := selectorSchema(nil)
	schema["required"] = []string{"selector"}
	return schema
}
func (t *GetTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "selector"); err != nil {
		return nil, err
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	el, err := client.FindElement(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	text, err := client.ElementText(ctx, el)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "text": text}, nil
}

// FillAndSubmitFormTool fills a map of selector -> value pairs and clicks a
// submit element.
type FillAndSubmitFormTool struct{ pool *fleet.ClientPool }

func (t *FillAndSubmitFormTool) Name() string { return "fill_and_submit_form" }
func (t *FillAndSubmitFormTool) Description() string {
	return "Fill each selector in fields with its value and click submit_selector."
}
func (t *FillAndSubmitFormTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"fields":          map[string]interface{}{"type": "object", "description": "Map of CSS selector to value"},
		"submit_selector": map[string]interface{}{"type": "string", "description": "CSS selector of the submit control"},
	})
	schema["required"] = []string{"fields", "submit_selector"}
	return schema
}
func (t *FillAndSubmitFormTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "submit_selector"); err != nil {
		return nil, err
	}
	fields := getMapArg(args, "fields")
	if len(fields) == 0 {
		return nil, fleet.NewError(fleet.InvalidArguments, nil, "missing required argument %q", "fields")
	}
	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}
	for selector, value := range fields {
		el, findErr := client.FindElement(ctx, selector)
		if findErr != nil {
			return nil, fmt.Errorf("field %q: %w", selector, findErr)
		}
		text := fmt.Sprintf("%v", value)
		if sendErr := client.SendKeys(ctx, el, text); sendErr != nil {
			return nil, fmt.Errorf("field %q: %w", selector, sendErr)
		}
	}
	submit, err := client.FindElement(ctx, getStringArg(args, "submit_selector"))
	if err != nil {
		return nil, err
	}
	if err := client.Click(ctx, submit); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "session_id": sessionID, "fields_filled": len(fields)}, nil
}

// LoginFormTool fills a username/password pair and submits, using
// conventional selector defaults overridable per call.
type LoginFormTool struct{ pool *fleet.ClientPool }

func (t *LoginFormTool) Name() string { return "login_form" }
func (t *LoginFormTool) Description() string {
	return "Fill a username/password form and submit, a convenience wrapper over fill_and_submit_form."
}
func (t *LoginFormTool) InputSchema() map[string]interface{} {
	schema := sessionIDSchema(map[string]interface{}{
		"username":          map[string]interface{}{"type": "string"},
		"password":          map[string]interface{}{"type": "string"},
		"username_selector": map[string]interface{}{"type": "string", "description": "default: input[type=email], input[name=username], input[name=email]"},
		"password_selector": map[string]interface{}{"type": "string", "description": "default: input[type=password]"},
		"submit_selector":   map[string]interface{}{"type": "string", "description": "default: button[type=submit], input[type=submit]"},
	})
	schema["required"] = []string{"username", "password"}
	return schema
}
func (t *LoginFormTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "username", "password"); err != nil {
		return nil, err
	}
	usernameSelector := getStringArg(args, "username_selector")
	if usernameSelector == "" {
		usernameSelector = "input[type=email], input[name=username], input[name=email]"
	}
	passwordSelector := getStringArg(args, "password_selector")
	if passwordSelector == "" {
		passwordSelector = "input[type=password]"
	}
	submitSelector := getStringArg(args, "submit_selector")
	if submitSelector == "" {
		submitSelector = "button[type=submit], input[type=submit]"
	}

	sessionID, client, _, err := t.pool.GetOrCreate(ctx, getStringArg(args, "session_id"))
	if err != nil {
		return nil, err
	}

	userEl, err := client.FindElement(ctx, usernameSelector)
	if err != nil {
		return nil, fmt.Errorf("username field: %w", err)
	}
	if err := client.SendKeys(ctx, userEl, getStringArg(args, "username")); err != nil {
		return nil, err
	}

	passEl, err := client.FindElement(ctx, passwordSelector)
	if err != nil {
		return nil, fmt.Errorf("password field: %w", err)
	}
	if err := client.SendKeys(ctx, passEl, getStringArg(args, "password")); err != nil {
		return nil, err
	}

	submitEl, err := client.FindElement(ctx, submitSelector)
	if err != nil {
		return nil, fmt.Errorf("submit control: %w", err)
	}
	if err := client.Click(ctx, submitEl); err != nil {
		return nil, err
	}

	return map[string]interface{}{"success": true, "session_id": sessionID}, nil
}
