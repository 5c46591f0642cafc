package mcp

import (
	"context"
	"testing"

	"webdriver-fleet-mcp/internal/config"
)

func TestCreateRecipeTemplateAndExecute(t *testing.T) {
	driver := newFakeDriver(t)
	server := newTestServer(t, driver.URL, config.TransportStdio)

	_, err := server.ExecuteTool(context.Background(), "create_recipe_template", map[string]interface{}{
		"template": "smoke",
		"name":     "smoke-test",
	})
	if err != nil {
		t.Fatalf("create_recipe_template: %v", err)
	}

	result, err := server.ExecuteTool(context.Background(), "execute_recipe", map[string]interface{}{
		"name":       "smoke-test",
		"parameters": map[string]interface{}{"url": "https://example.com"},
	})
	if err != nil {
		t.Fatalf("execute_recipe: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil execution result")
	}
}

func TestCreateRecipeTemplateRejectsUnknownName(t *testing.T) {
	driver := newFakeDriver(t)
	server := newTestServer(t, driver.URL, config.TransportStdio)

	_, err := server.ExecuteTool(context.Background(), "create_recipe_template", map[string]interface{}{
		"template": "does-not-exist",
		"name":     "whatever",
	})
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestListRecipesReflectsCreated(t *testing.T) {
	driver := newFakeDriver(t)
	server := newTestServer(t, driver.URL, config.TransportStdio)

	if _, err := server.ExecuteTool(context.Background(), "create_recipe_template", map[string]interface{}{
		"template": "login",
		"name":     "login-test",
	}); err != nil {
		t.Fatalf("create_recipe_template: %v", err)
	}

	result, err := server.ExecuteTool(context.Background(), "list_recipes", map[string]interface{}{})
	if err != nil {
		t.Fatalf("list_recipes: %v", err)
	}
	payload := result.(map[string]interface{})
	names, _ := payload["recipes"].([]string)
	found := false
	for _, n := range names {
		if n == "login-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected login-test in list, got %+v", names)
	}
}
