package fleet

import (
	"testing"

	"webdriver-fleet-mcp/internal/config"
)

func TestExecutableName(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	name, err := c.ExecutableName(config.Chrome)
	if err != nil {
		t.Fatalf("ExecutableName: %v", err)
	}
	if name != "chromedriver" && name != "chromedriver.exe" {
		t.Errorf("unexpected chrome driver name %q", name)
	}
}

func TestExecutableNameUnknownKind(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	if _, err := c.ExecutableName(config.BrowserKind("opera")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestResolveExecutableHonorsOverride(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{
		ExecutableOverrides: map[string]string{"chrome": "/opt/custom/chromedriver"},
	})
	path, err := c.ResolveExecutable(config.Chrome)
	if err != nil {
		t.Fatalf("ResolveExecutable: %v", err)
	}
	if path != "/opt/custom/chromedriver" {
		t.Errorf("expected override path, got %q", path)
	}
}

func TestDefaultPort(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	if p := c.DefaultPort(config.Firefox); p != 4444 {
		t.Errorf("expected 4444 for firefox, got %d", p)
	}
	if p := c.DefaultPort(config.Chrome); p != 9515 {
		t.Errorf("expected 9515 for chrome, got %d", p)
	}
	if p := c.DefaultPort(config.Edge); p != 9515 {
		t.Errorf("expected 9515 for edge, got %d", p)
	}
}

func TestArgvForIncludesPort(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	args := c.ArgvFor(config.Chrome, 9515)
	if len(args) == 0 {
		t.Fatal("expected non-empty argv")
	}
	found := false
	for _, a := range args {
		if a == "--port=9515" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected --port=9515 in argv, got %v", args)
	}
}

func TestCapabilitiesForHeadless(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	caps := c.CapabilitiesFor(config.Chrome, true)
	always := caps["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
	opts := always["goog:chromeOptions"].(map[string]interface{})
	args := opts["args"].([]string)
	if len(args) != 1 || args[0] != "--headless=new" {
		t.Errorf("expected headless arg, got %v", args)
	}
}

func TestKindsOrder(t *testing.T) {
	c := NewDriverCatalog(config.CatalogConfig{})
	kinds := c.Kinds()
	if len(kinds) != 3 || kinds[0] != config.Chrome {
		t.Errorf("unexpected kind precedence: %v", kinds)
	}
}
