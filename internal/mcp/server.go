// Package mcp wires the WebDriver fleet and recipe subsystems to the
// Model Context Protocol: tool registration, request dispatch, and the
// stdio and HTTP transport adapters.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"webdriver-fleet-mcp/internal/auth"
	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/docker"
	"webdriver-fleet-mcp/internal/fleet"
	"webdriver-fleet-mcp/internal/recipe"
)

// probeTimeout bounds each individual health-check HTTP call. It is fixed
// at 2s and does not follow WEBDRIVER_TIMEOUT_MS.
const probeTimeout = 2 * time.Second

// Tool describes the contract every MCP tool implementation satisfies.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Server wires the fleet manager, recipe subsystem, and diagnostics into
// the MCP tool registry and the selected transport.
type Server struct {
	cfg          config.Config
	catalog      *fleet.DriverCatalog
	supervisor   *fleet.ProcessSupervisor
	health       *fleet.HealthMonitor
	router       *fleet.SessionRouter
	pool         *fleet.ClientPool
	recipeStore  *recipe.Store
	executor     *recipe.Executor
	dockerClient *docker.Client
	tokenStore   *auth.TokenStore

	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// NewServer builds the fleet components from cfg, registers every tool
// appropriate for mode, and returns a ready-to-run Server.
func NewServer(cfg config.Config) (*Server, error) {
	catalog := fleet.NewDriverCatalog(cfg.Catalog)
	supervisor := fleet.NewProcessSupervisor(catalog, cfg.Catalog.ReadinessTimeoutDuration())
	health := fleet.NewHealthMonitor(supervisor, catalog, probeTimeout)
	router := fleet.NewSessionRouter(cfg.Browser, catalog, supervisor, health)
	pool := fleet.NewClientPool(router, supervisor, cfg.Browser.Timeout())

	recipeStore, err := recipe.NewStore(cfg.Catalog.RecipeDir)
	if err != nil {
		return nil, fmt.Errorf("initializing recipe store: %w", err)
	}

	var dockerClient *docker.Client
	if cfg.Docker.Enabled {
		dockerClient = docker.NewClient(cfg.Docker.Containers, cfg.Docker.GetLogWindow(), cfg.Docker.Host)
	}

	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	s := &Server{
		cfg:          cfg,
		catalog:      catalog,
		supervisor:   supervisor,
		health:       health,
		router:       router,
		pool:         pool,
		recipeStore:  recipeStore,
		dockerClient: dockerClient,
		tokenStore:   auth.NewTokenStore(),
		tools:        make(map[string]Tool),
		mcpServer:    mcpSrv,
	}

	s.executor = recipe.NewExecutor(catalog, health, s.runStep, s.evaluateCondition)

	if cfg.MCP.Transport == config.TransportHTTP && !cfg.MCP.NoAuth {
		if cfg.MCP.AuthToken != "" {
			s.tokenStore.Add(cfg.MCP.AuthToken)
		} else if token, err := s.tokenStore.Issue(); err == nil {
			log.Printf("no MCP_AUTH_TOKEN configured; minted bearer token for this run: %s", token)
		}
	}

	s.registerAllTools(cfg.MCP.Transport)
	return s, nil
}

// Supervisor exposes the underlying ProcessSupervisor for the stdio-only
// fleet-lifecycle tools.
func (s *Server) Supervisor() *fleet.ProcessSupervisor { return s.supervisor }

// registerAllTools wires every tool appropriate for mode: the WebDriver
// session-scoped tools and recipe tools are always present; fleet-
// lifecycle tools are stdio-only, per the mode-based visibility rule.
func (s *Server) registerAllTools(mode config.Transport) {
	// Navigation
	s.registerTool(&NavigateTool{pool: s.pool})
	s.registerTool(&BackTool{pool: s.pool})
	s.registerTool(&ForwardTool{pool: s.pool})
	s.registerTool(&RefreshTool{pool: s.pool})
	s.registerTool(&GetCurrentURLTool{pool: s.pool})
	s.registerTool(&GetPageLoadStatusTool{pool: s.pool})

	// Elements
	s.registerTool(&FindElementTool{pool: s.pool})
	s.registerTool(&FindElementsTool{pool: s.pool})
	s.registerTool(&ClickTool{pool: s.pool})
	s.registerTool(&SendKeysTool{pool: s.pool})
	s.registerTool(&HoverTool{pool: s.pool})
	s.registerTool(&ScrollToElementTool{pool: s.pool})
	s.registerTool(&WaitForElementTool{pool: s.pool})
	s.registerTool(&WaitForConditionTool{pool: s.pool})
	s.registerTool(&GetElementInfoTool{pool: s.pool})
	s.registerTool(&GetAttributeTool{pool: s.pool})
	s.registerTool(&GetPropertyTool{pool: s.pool})
	s.registerTool(&GetTextTool{pool: s.pool})
	s.registerTool(&FillAndSubmitFormTool{pool: s.pool})
	s.registerTool(&LoginFormTool{pool: s.pool})

	// Page
	s.registerTool(&GetTitleTool{pool: s.pool})
	s.registerTool(&GetPageSourceTool{pool: s.pool})
	s.registerTool(&ExecuteScriptTool{pool: s.pool})
	s.registerTool(&ScreenshotTool{pool: s.pool})
	s.registerTool(&ResizeWindowTool{pool: s.pool})

	// Performance / diagnostics
	s.registerTool(&GetConsoleLogsTool{pool: s.pool, dockerClient: s.dockerClient})
	s.registerTool(&GetPerformanceMetricsTool{pool: s.pool})
	s.registerTool(&MonitorMemoryUsageTool{pool: s.pool})
	s.registerTool(&MonitorResourceUsageTool{pool: s.pool})
	s.registerTool(&RunPerformanceTestTool{pool: s.pool})

	// Recipes
	s.registerTool(&CreateRecipeTool{store: s.recipeStore})
	s.registerTool(&ListRecipesTool{store: s.recipeStore})
	s.registerTool(&GetRecipeTool{store: s.recipeStore})
	s.registerTool(&DeleteRecipeTool{store: s.recipeStore})
	s.registerTool(&CreateRecipeTemplateTool{store: s.recipeStore})
	s.registerTool(&ExecuteRecipeTool{store: s.recipeStore, executor: s.executor})

	// Fleet-lifecycle tools: stdio only, per the dispatcher's mode-based
	// visibility invariant. In HTTP mode the supervisor runs autonomously.
	if mode == config.TransportStdio {
		s.registerTool(&StartDriverTool{supervisor: s.supervisor, health: s.health})
		s.registerTool(&StopDriverTool{supervisor: s.supervisor})
		s.registerTool(&StopAllDriversTool{supervisor: s.supervisor})
		s.registerTool(&ListManagedDriversTool{supervisor: s.supervisor, catalog: s.catalog})
		s.registerTool(&GetHealthyEndpointsTool{health: s.health})
		s.registerTool(&RefreshDriverHealthTool{health: s.health})
		s.registerTool(&ForceCleanupOrphanedProcessesTool{supervisor: s.supervisor, catalog: s.catalog})
	}
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(err.Error())},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, err := json.Marshal(result)
	if err == nil {
		return payload
	}
	fallback, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, err),
	})
	return fallback
}

// runStep invokes a registered tool by action name, used by the recipe
// executor as its StepRunner.
func (s *Server) runStep(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	tool, ok := s.tools[action]
	if !ok {
		return nil, fmt.Errorf("unknown recipe action %q", action)
	}
	return tool.Execute(ctx, args)
}

// evaluateCondition evaluates a recipe condition as a JavaScript
// expression in the session's active page.
func (s *Server) evaluateCondition(ctx context.Context, sessionID, condition string) (bool, error) {
	_, client, _, err := s.pool.GetOrCreate(ctx, sessionID)
	if err != nil {
		return false, err
	}
	value, err := client.ExecuteScript(ctx, "return ("+condition+");", nil)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}

// ExecuteTool runs a tool directly, used by tests and diagnostics.
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, args)
}

// Start launches the stdio transport (the default, and the only mode
// that exposes fleet-lifecycle tools).
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
