package mcp

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"webdriver-fleet-mcp/internal/auth"
)

// StartHTTP hosts the server over a single /mcp endpoint: GET establishes
// the SSE event stream, POST delivers JSON-RPC messages. Both handlers are
// the teacher's mcpserver.NewSSEServer primitives, mounted under one path
// per the gateway's transport contract rather than the teacher's separate
// /sse and /message routes.
func (s *Server) StartHTTP(ctx context.Context, bind string, noAuth bool) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://"+bind))

	// Unlike stdio mode, where health only refreshes on demand (a tool
	// call or a recipe pre-flight), HTTP mode runs the supervisor
	// autonomously, so a background refresh keeps EndpointHealth from
	// going stale between client calls.
	stopHealth := s.health.RunPeriodic(ctx, s.cfg.Catalog.HealthIntervalDuration())
	defer stopHealth()

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.dispatchByMethod(sseServer))

	var handler http.Handler = mux
	if !noAuth {
		handler = auth.Middleware(s.tokenStore, handler)
	}

	handler = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "mcp-session-id"},
		ExposedHeaders:   []string{"mcp-session-id"},
		AllowCredentials: false,
	}).Handler(handler)

	httpServer := &http.Server{Addr: bind, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = s.supervisor.StopAll(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// dispatchByMethod routes GET (SSE stream open) and POST (JSON-RPC message)
// requests on /mcp to the underlying SSE server's two handlers, and stamps
// a deterministic session id derived from the bearer token when the caller
// omits mcp-session-id.
func (s *Server) dispatchByMethod(sseServer *mcpserver.SSEServer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("mcp-session-id") == "" {
			if token, ok := auth.ExtractBearer(r); ok {
				r.Header.Set("mcp-session-id", auth.SessionIDForUser(token))
			}
		}

		switch r.Method {
		case http.MethodGet:
			sseServer.SSEHandler().ServeHTTP(w, r)
		case http.MethodPost:
			sseServer.MessageHandler().ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}
