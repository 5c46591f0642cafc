package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"webdriver-fleet-mcp/internal/config"
)

func newClickableFakeDriver(t *testing.T) *httptest.Server {
	t.Helper()
	var clicked bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]interface{}{"sessionId": "sess-1"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/session/sess-1/element":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]interface{}{"element-6066-11e4-a52e-4f735466cecf": "el-1"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/session/sess-1/element/el-1/click":
			clicked = true
			json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
		}
	}))
	t.Cleanup(func() {
		srv.Close()
		if !clicked {
			t.Error("expected click to reach the fake driver")
		}
	})
	return srv
}

func TestClickToolFindsAndClicks(t *testing.T) {
	driver := newClickableFakeDriver(t)
	server := newTestServer(t, driver.URL, config.TransportStdio)

	result, err := server.ExecuteTool(context.Background(), "click", map[string]interface{}{
		"selector":   "#submit",
		"session_id": "sess-1",
	})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	payload := result.(map[string]interface{})
	if payload["success"] != true {
		t.Errorf("expected success, got %+v", payload)
	}
}

func TestFindElementsMissingSelectorErrors(t *testing.T) {
	driver := newFakeDriver(t)
	server := newTestServer(t, driver.URL, config.TransportStdio)

	if _, err := server.ExecuteTool(context.Background(), "find_elements", map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing selector")
	}
}
