// Package config loads server settings from environment variables, the
// primary configuration surface for the fleet gateway, with an optional
// YAML overlay for settings that have no natural environment variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selects which adapter serves MCP requests.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// BrowserKind enumerates the supported driver kinds.
type BrowserKind string

const (
	Chrome  BrowserKind = "chrome"
	Firefox BrowserKind = "firefox"
	Edge    BrowserKind = "edge"
)

// Config captures all tunable settings for the fleet gateway.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	MCP     MCPConfig
	Docker  DockerConfig
	Catalog CatalogConfig
}

type ServerConfig struct {
	Name    string
	Version string
	LogFile string
}

// BrowserConfig mirrors the environment variables named in the spec's
// external interface (section 6).
type BrowserConfig struct {
	// Endpoint is WEBDRIVER_ENDPOINT: a literal URL, or the "auto" sentinel.
	Endpoint string
	// TimeoutMS is WEBDRIVER_TIMEOUT_MS.
	TimeoutMS uint64
	// AutoStart is WEBDRIVER_AUTO_START.
	AutoStart bool
	// Preferred is WEBDRIVER_PREFERRED_DRIVER, empty when unset.
	Preferred BrowserKind
	// Headless is WEBDRIVER_HEADLESS.
	Headless bool
}

// MCPConfig configures transport selection and the HTTP adapter.
type MCPConfig struct {
	Transport Transport
	Bind      string
	NoAuth    bool
	// AuthToken is MCP_AUTH_TOKEN: a static bearer token accepted by the
	// HTTP transport's gate. The OAuth/OIDC front end that would normally
	// mint these is out of scope; an operator running this gateway
	// standalone supplies one directly. Empty means the server mints and
	// logs a random token at startup.
	AuthToken string
}

// DockerConfig configures optional Docker log correlation for diagnostics.
type DockerConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Containers []string `yaml:"containers"`
	LogWindow  string   `yaml:"log_window"`
	Host       string   `yaml:"host"`
}

// CatalogConfig supplements DriverCatalog with operator-provided overrides
// that have no natural environment variable (YAML overlay only).
type CatalogConfig struct {
	ExecutableOverrides map[string]string `yaml:"executable_overrides"`
	ExtraSearchDirs     []string          `yaml:"extra_search_dirs"`
	RecipeDir           string            `yaml:"recipe_dir"`
	HealthInterval      string            `yaml:"health_interval"`
	ReadinessTimeout    string            `yaml:"readiness_timeout"`
}

type yamlOverlay struct {
	Docker  DockerConfig  `yaml:"docker"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "webdriver-fleet-mcp",
			Version: "0.1.0",
			LogFile: "webdriver-fleet-mcp.log",
		},
		Browser: BrowserConfig{
			Endpoint:  "auto",
			TimeoutMS: 2000,
			AutoStart: true,
			Headless:  true,
		},
		MCP: MCPConfig{
			Transport: TransportStdio,
			Bind:      "127.0.0.1:8080",
		},
		Catalog: CatalogConfig{
			RecipeDir:        "recipes",
			HealthInterval:   "60s",
			ReadinessTimeout: "10s",
		},
	}
}

// Load reads Config from the environment and overlays an optional YAML
// file (yamlPath may be empty, in which case only env vars and defaults
// apply).
func Load(yamlPath string) (Config, error) {
	cfg := DefaultConfig()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("reading config overlay %s: %w", yamlPath, err)
		}
		var overlay yamlOverlay
		if err := yaml.Unmarshal(raw, &overlay); err != nil {
			return cfg, fmt.Errorf("parsing config overlay %s: %w", yamlPath, err)
		}
		if overlay.Docker.Enabled {
			cfg.Docker = overlay.Docker
		}
		if overlay.Catalog.RecipeDir != "" {
			cfg.Catalog.RecipeDir = overlay.Catalog.RecipeDir
		}
		if overlay.Catalog.HealthInterval != "" {
			cfg.Catalog.HealthInterval = overlay.Catalog.HealthInterval
		}
		if overlay.Catalog.ReadinessTimeout != "" {
			cfg.Catalog.ReadinessTimeout = overlay.Catalog.ReadinessTimeout
		}
		if len(overlay.Catalog.ExecutableOverrides) > 0 {
			cfg.Catalog.ExecutableOverrides = overlay.Catalog.ExecutableOverrides
		}
		if len(overlay.Catalog.ExtraSearchDirs) > 0 {
			cfg.Catalog.ExtraSearchDirs = overlay.Catalog.ExtraSearchDirs
		}
	}

	applyEnv(&cfg)

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("WEBDRIVER_ENDPOINT"); ok && v != "" {
		cfg.Browser.Endpoint = v
	}
	if v, ok := os.LookupEnv("WEBDRIVER_TIMEOUT_MS"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Browser.TimeoutMS = n
		}
	}
	if v, ok := os.LookupEnv("WEBDRIVER_AUTO_START"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.AutoStart = b
		}
	}
	if v, ok := os.LookupEnv("WEBDRIVER_PREFERRED_DRIVER"); ok && v != "" {
		cfg.Browser.Preferred = BrowserKind(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("WEBDRIVER_HEADLESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v, ok := os.LookupEnv("MCP_AUTH_TOKEN"); ok && v != "" {
		cfg.MCP.AuthToken = v
	}
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	switch c.Browser.Preferred {
	case "", Chrome, Firefox, Edge:
	default:
		return fmt.Errorf("unknown preferred driver %q", c.Browser.Preferred)
	}
	return nil
}

// Timeout returns the configured per-WebDriver-call timeout.
func (b BrowserConfig) Timeout() time.Duration {
	if b.TimeoutMS == 0 {
		return 2 * time.Second
	}
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// HealthIntervalDuration returns the parsed periodic health-check interval.
func (c CatalogConfig) HealthIntervalDuration() time.Duration {
	return parseDurationOr(c.HealthInterval, 60*time.Second)
}

// ReadinessTimeoutDuration returns the parsed driver readiness timeout.
func (c CatalogConfig) ReadinessTimeoutDuration() time.Duration {
	return parseDurationOr(c.ReadinessTimeout, 10*time.Second)
}

// GetLogWindow returns the parsed Docker log correlation window.
func (d DockerConfig) GetLogWindow() time.Duration {
	return parseDurationOr(d.LogWindow, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
