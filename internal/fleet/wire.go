package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WireClient speaks the W3C WebDriver HTTP wire protocol directly against a
// running driver endpoint (e.g. http://127.0.0.1:9515). It never keeps a
// handle to the driver's OS process; process ownership belongs exclusively
// to ProcessSupervisor.
type WireClient struct {
	endpoint string
	http     *http.Client
}

// NewWireClient builds a client bound to endpoint with the given per-call
// timeout.
func NewWireClient(endpoint string, timeout time.Duration) *WireClient {
	return &WireClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// wireEnvelope mirrors the {"value": ...} envelope every WebDriver response
// is wrapped in, success or error.
type wireEnvelope struct {
	Value json.RawMessage `json:"value"`
}

type wireErrorValue struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

func (c *WireClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env wireEnvelope
		var ev wireErrorValue
		if json.Unmarshal(raw, &env) == nil && json.Unmarshal(env.Value, &ev) == nil && ev.Message != "" {
			return fmt.Errorf("%s", ev.Message)
		}
		return fmt.Errorf("webdriver error %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}

	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Value) == 0 {
		return nil
	}
	return json.Unmarshal(env.Value, out)
}

// WireSession is a live W3C session bound to a driver endpoint.
type WireSession struct {
	client *WireClient
	id     string
}

// CreateSession opens a new session with the given capabilities payload
// (as produced by DriverCatalog.CapabilitiesFor).
func (c *WireClient) CreateSession(ctx context.Context, capabilities map[string]interface{}) (*WireSession, error) {
	var result struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", capabilities, &result); err != nil {
		return nil, err
	}
	return &WireSession{client: c, id: result.SessionID}, nil
}

// AttachSession wraps an existing session id without creating a new one.
func (c *WireClient) AttachSession(id string) *WireSession {
	return &WireSession{client: c, id: id}
}

// ID returns the W3C session identifier.
func (s *WireSession) ID() string { return s.id }

func (s *WireSession) path(suffix string) string {
	return "/session/" + s.id + suffix
}

// Navigate loads url in the session's top-level browsing context.
func (s *WireSession) Navigate(ctx context.Context, url string) error {
	return s.client.do(ctx, http.MethodPost, s.path("/url"), map[string]string{"url": url}, nil)
}

// CurrentURL returns the active document's URL. Used by ClientPool as a
// cheap liveness probe.
func (s *WireSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.client.do(ctx, http.MethodGet, s.path("/url"), nil, &url)
	return url, err
}

// Back navigates backward in session history.
func (s *WireSession) Back(ctx context.Context) error {
	return s.client.do(ctx, http.MethodPost, s.path("/back"), map[string]interface{}{}, nil)
}

// Forward navigates forward in session history.
func (s *WireSession) Forward(ctx context.Context) error {
	return s.client.do(ctx, http.MethodPost, s.path("/forward"), map[string]interface{}{}, nil)
}

// Refresh reloads the current document.
func (s *WireSession) Refresh(ctx context.Context) error {
	return s.client.do(ctx, http.MethodPost, s.path("/refresh"), map[string]interface{}{}, nil)
}

// Title returns the current document title.
func (s *WireSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.client.do(ctx, http.MethodGet, s.path("/title"), nil, &title)
	return title, err
}

// PageSource returns the current document's serialized HTML.
func (s *WireSession) PageSource(ctx context.Context) (string, error) {
	var src string
	err := s.client.do(ctx, http.MethodGet, s.path("/source"), nil, &src)
	return src, err
}

// Element is an opaque reference to a located DOM node.
type Element struct {
	id string
}

// ID returns the element's W3C web element identifier.
func (e *Element) ID() string { return e.id }

const webElementIdentifier = "element-6066-11e4-a52e-4f735466cecf"

// FindElement locates the first element matching a CSS selector.
func (s *WireSession) FindElement(ctx context.Context, selector string) (*Element, error) {
	var raw map[string]string
	body := map[string]string{"using": "css selector", "value": selector}
	if err := s.client.do(ctx, http.MethodPost, s.path("/element"), body, &raw); err != nil {
		return nil, err
	}
	return &Element{id: raw[webElementIdentifier]}, nil
}

// FindElements locates all elements matching a CSS selector.
func (s *WireSession) FindElements(ctx context.Context, selector string) ([]*Element, error) {
	var raw []map[string]string
	body := map[string]string{"using": "css selector", "value": selector}
	if err := s.client.do(ctx, http.MethodPost, s.path("/elements"), body, &raw); err != nil {
		return nil, err
	}
	elems := make([]*Element, len(raw))
	for i, r := range raw {
		elems[i] = &Element{id: r[webElementIdentifier]}
	}
	return elems, nil
}

// Click dispatches a click at el.
func (s *WireSession) Click(ctx context.Context, el *Element) error {
	return s.client.do(ctx, http.MethodPost, s.path("/element/"+el.id+"/click"), map[string]interface{}{}, nil)
}

// SendKeys types text into el.
func (s *WireSession) SendKeys(ctx context.Context, el *Element, text string) error {
	return s.client.do(ctx, http.MethodPost, s.path("/element/"+el.id+"/value"), map[string]interface{}{"text": text}, nil)
}

// ElementText returns el's rendered text.
func (s *WireSession) ElementText(ctx context.Context, el *Element) (string, error) {
	var text string
	err := s.client.do(ctx, http.MethodGet, s.path("/element/"+el.id+"/text"), nil, &text)
	return text, err
}

// ElementAttribute returns el's named HTML attribute.
func (s *WireSession) ElementAttribute(ctx context.Context, el *Element, name string) (string, error) {
	var value string
	err := s.client.do(ctx, http.MethodGet, s.path("/element/"+el.id+"/attribute/"+name), nil, &value)
	return value, err
}

// ElementProperty returns el's named JS property.
func (s *WireSession) ElementProperty(ctx context.Context, el *Element, name string) (interface{}, error) {
	var value interface{}
	err := s.client.do(ctx, http.MethodGet, s.path("/element/"+el.id+"/property/"+name), nil, &value)
	return value, err
}

// ExecuteScript runs script synchronously in the session's page context.
func (s *WireSession) ExecuteScript(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	body := map[string]interface{}{"script": script, "args": args}
	var result interface{}
	err := s.client.do(ctx, http.MethodPost, s.path("/execute/sync"), body, &result)
	return result, err
}

// Screenshot returns a base64-encoded PNG of the current viewport.
func (s *WireSession) Screenshot(ctx context.Context) (string, error) {
	var b64 string
	err := s.client.do(ctx, http.MethodGet, s.path("/screenshot"), nil, &b64)
	return b64, err
}

// SetWindowRect resizes the session's window.
func (s *WireSession) SetWindowRect(ctx context.Context, width, height int) error {
	body := map[string]int{"width": width, "height": height}
	return s.client.do(ctx, http.MethodPost, s.path("/window/rect"), body, nil)
}

// Delete ends the session, per W3C DELETE /session/:id.
func (s *WireSession) Delete(ctx context.Context) error {
	return s.client.do(ctx, http.MethodDelete, s.path(""), nil, nil)
}

// Status queries the driver's readiness endpoint (not session-scoped),
// used by HealthMonitor to probe whether a listener is ready.
func (c *WireClient) Status(ctx context.Context) (ready bool, err error) {
	var result struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &result); err != nil {
		return false, err
	}
	return result.Ready, nil
}
