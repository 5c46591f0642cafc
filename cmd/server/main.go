package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webdriver-fleet-mcp/internal/config"
	mcpserver "webdriver-fleet-mcp/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config overlay")
	transport := flag.String("transport", "", "stdio or http (overrides config/env)")
	bind := flag.String("bind", "", "HTTP bind address, e.g. 127.0.0.1:8080 (overrides config)")
	noAuth := flag.Bool("no-auth", false, "Disable the bearer-token gate on the HTTP transport")
	browser := flag.String("browser", "", "Preferred browser kind: chrome, firefox, or edge (overrides config/env)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *transport != "" {
		cfg.MCP.Transport = config.Transport(*transport)
	}
	if *bind != "" {
		cfg.MCP.Bind = *bind
	}
	if *noAuth {
		cfg.MCP.NoAuth = true
	}
	if *browser != "" {
		cfg.Browser.Preferred = config.BrowserKind(*browser)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// stdio is a line-framed protocol; stray log output to stderr can
	// interleave with it in some terminal multiplexers, so redirect to a
	// file in that mode only.
	if cfg.MCP.Transport == config.TransportStdio && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			log.SetOutput(io.Discard)
		}
	}

	server, err := mcpserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	switch cfg.MCP.Transport {
	case config.TransportHTTP:
		log.Printf("starting webdriver-fleet-mcp HTTP server on %s", cfg.MCP.Bind)
		startErr = server.StartHTTP(ctx, cfg.MCP.Bind, cfg.MCP.NoAuth)
	default:
		log.Printf("starting webdriver-fleet-mcp stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}
