// Package fleet implements the WebDriver fleet manager: driver discovery
// (DriverCatalog), external process lifecycle (ProcessSupervisor), endpoint
// liveness (HealthMonitor), session-to-endpoint routing (SessionRouter), and
// pooled WebDriver clients (ClientPool).
package fleet

import (
	"fmt"
	"os/exec"
	"runtime"

	"webdriver-fleet-mcp/internal/config"
)

// DriverCatalog is a pure, stateless lookup of per-browser-kind launch
// recipes. It carries only operator overrides supplied via YAML; it owns
// no process or network state.
type DriverCatalog struct {
	overrides map[config.BrowserKind]string
	extraDirs []string
}

// NewDriverCatalog builds a catalog from the optional YAML overlay.
func NewDriverCatalog(cfg config.CatalogConfig) *DriverCatalog {
	overrides := make(map[config.BrowserKind]string, len(cfg.ExecutableOverrides))
	for k, v := range cfg.ExecutableOverrides {
		overrides[config.BrowserKind(k)] = v
	}
	return &DriverCatalog{overrides: overrides, extraDirs: cfg.ExtraSearchDirs}
}

// Kinds returns the supported browser kinds in catalog precedence order
// (Chrome, Firefox, Edge), used for "any discoverable kind" resolution.
func (c *DriverCatalog) Kinds() []config.BrowserKind {
	return []config.BrowserKind{config.Chrome, config.Firefox, config.Edge}
}

// ExecutableName returns the platform-dependent driver filename for kind.
func (c *DriverCatalog) ExecutableName(kind config.BrowserKind) (string, error) {
	base := map[config.BrowserKind]string{
		config.Chrome:  "chromedriver",
		config.Firefox: "geckodriver",
		config.Edge:    "msedgedriver",
	}[kind]
	if base == "" {
		return "", fmt.Errorf("unknown browser kind %q", kind)
	}
	if runtime.GOOS == "windows" {
		return base + ".exe", nil
	}
	return base, nil
}

// commonInstallDirs lists hard-coded fallback directories searched after PATH.
func commonInstallDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/usr/local/bin", "/opt/homebrew/bin"}
	case "windows":
		return []string{`C:\Program Files\Chrome\`, `C:\WebDrivers\`}
	default:
		return []string{"/usr/bin", "/usr/local/bin", "/snap/bin"}
	}
}

// ResolveExecutable finds an on-disk path for kind's driver executable.
// Search order: operator override, PATH, hard-coded common install dirs.
func (c *DriverCatalog) ResolveExecutable(kind config.BrowserKind) (string, error) {
	name, err := c.ExecutableName(kind)
	if err != nil {
		return "", err
	}

	if override, ok := c.overrides[kind]; ok && override != "" {
		return override, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	searchDirs := append(append([]string{}, c.extraDirs...), commonInstallDirs()...)
	for _, dir := range searchDirs {
		candidate := dir + pathSeparator() + name
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", newError(DriverUnavailable, nil, "no %s executable found on PATH or in common install directories", name)
}

func pathSeparator() string {
	if runtime.GOOS == "windows" {
		return `\`
	}
	return "/"
}

// DefaultPort returns the canonical listen port for kind.
func (c *DriverCatalog) DefaultPort(kind config.BrowserKind) uint16 {
	switch kind {
	case config.Firefox:
		return 4444
	default: // Chrome, Edge
		return 9515
	}
}

// ArgvFor returns the CLI arguments that bind a driver's listener to port.
func (c *DriverCatalog) ArgvFor(kind config.BrowserKind, port uint16) []string {
	switch kind {
	case config.Firefox:
		return []string{"--port", fmt.Sprintf("%d", port), "--host", "127.0.0.1"}
	default: // Chrome, Edge
		return []string{fmt.Sprintf("--port=%d", port), "--whitelisted-ips=127.0.0.1"}
	}
}

// CapabilitiesFor returns W3C capabilities for kind, including browser-
// specific options under the vendor-prefixed key.
func (c *DriverCatalog) CapabilitiesFor(kind config.BrowserKind, headless bool) map[string]interface{} {
	browserName := map[config.BrowserKind]string{
		config.Chrome:  "chrome",
		config.Firefox: "firefox",
		config.Edge:    "MicrosoftEdge",
	}[kind]

	caps := map[string]interface{}{
		"browserName": browserName,
	}

	switch kind {
	case config.Firefox:
		args := []string{}
		if headless {
			args = append(args, "-headless")
		}
		caps["moz:firefoxOptions"] = map[string]interface{}{
			"args": args,
		}
	default: // Chrome, Edge share chromium-derived options
		args := []string{}
		if headless {
			args = append(args, "--headless=new")
		}
		key := "goog:chromeOptions"
		if kind == config.Edge {
			key = "ms:edgeOptions"
		}
		caps[key] = map[string]interface{}{
			"args": args,
		}
	}

	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": caps,
		},
	}
}
