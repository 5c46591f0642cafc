package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "webdriver-fleet-mcp" {
		t.Errorf("expected server name 'webdriver-fleet-mcp', got %q", cfg.Server.Name)
	}
	if cfg.Browser.Endpoint != "auto" {
		t.Errorf("expected endpoint 'auto', got %q", cfg.Browser.Endpoint)
	}
	if !cfg.Browser.AutoStart {
		t.Error("expected AutoStart to be true")
	}
	if !cfg.Browser.Headless {
		t.Error("expected Headless to be true")
	}
	if cfg.MCP.Transport != TransportStdio {
		t.Errorf("expected stdio transport default, got %q", cfg.MCP.Transport)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("WEBDRIVER_ENDPOINT", "http://localhost:9999")
	t.Setenv("WEBDRIVER_TIMEOUT_MS", "5000")
	t.Setenv("WEBDRIVER_AUTO_START", "false")
	t.Setenv("WEBDRIVER_PREFERRED_DRIVER", "Firefox")
	t.Setenv("WEBDRIVER_HEADLESS", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.Endpoint != "http://localhost:9999" {
		t.Errorf("endpoint override not applied: %q", cfg.Browser.Endpoint)
	}
	if cfg.Browser.TimeoutMS != 5000 {
		t.Errorf("timeout override not applied: %d", cfg.Browser.TimeoutMS)
	}
	if cfg.Browser.AutoStart {
		t.Error("auto_start override not applied")
	}
	if cfg.Browser.Preferred != Firefox {
		t.Errorf("preferred driver override not applied: %q", cfg.Browser.Preferred)
	}
	if cfg.Browser.Headless {
		t.Error("headless override not applied")
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	f, err := os.CreateTemp("", "overlay-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	yamlBody := `
docker:
  enabled: true
  containers: ["backend", "frontend"]
  log_window: "45s"
catalog:
  recipe_dir: "/tmp/recipes"
  health_interval: "30s"
`
	if _, err := f.WriteString(yamlBody); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Docker.Enabled {
		t.Error("expected docker.enabled true from overlay")
	}
	if cfg.Docker.GetLogWindow() != 45*time.Second {
		t.Errorf("expected 45s log window, got %v", cfg.Docker.GetLogWindow())
	}
	if cfg.Catalog.RecipeDir != "/tmp/recipes" {
		t.Errorf("expected recipe dir override, got %q", cfg.Catalog.RecipeDir)
	}
	if cfg.Catalog.HealthIntervalDuration() != 30*time.Second {
		t.Errorf("expected 30s health interval, got %v", cfg.Catalog.HealthIntervalDuration())
	}
}

func TestValidateRejectsUnknownPreferredDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.Preferred = "opera"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown preferred driver")
	}
}
