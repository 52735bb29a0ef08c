package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/HyphaGroup/gevulot/internal/auth"
	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/session"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// generateRequestID creates a unique request identifier
func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Server wraps the MCP server with the session manager and stores
type Server struct {
	manager   *session.Manager
	orch      session.Orchestrator
	history   *conversation.Store
	schedules *schedule.Store  // nil disables the schedule tool
	runner    *schedule.Runner // created when schedules is set
	tokens    *auth.TokenSet
	limiter   *auth.RateLimiter
	registry  *Registry
	mcpServer *mcp_sdk.Server
	version   string
}

// ServerConfig holds the optional collaborators and serve mode settings
type ServerConfig struct {
	Schedules          *schedule.Store
	Tokens             []string
	RateLimitPerMinute int
	Version            string
}

// NewServer creates a new MCP server instance
func NewServer(manager *session.Manager, orch session.Orchestrator, history *conversation.Store, cfg *ServerConfig) *Server {
	version := "dev"
	rateLimit := 120
	var tokens []string
	var schedStore *schedule.Store
	if cfg != nil {
		if cfg.Version != "" {
			version = cfg.Version
		}
		if cfg.RateLimitPerMinute > 0 {
			rateLimit = cfg.RateLimitPerMinute
		}
		tokens = cfg.Tokens
		schedStore = cfg.Schedules
	}

	s := &Server{
		manager:   manager,
		orch:      orch,
		history:   history,
		schedules: schedStore,
		tokens:    auth.NewTokenSet(tokens),
		limiter:   auth.PerMinute(rateLimit),
		registry:  NewRegistry(),
		version:   version,
	}

	// The runner calls back into the server to resolve sessions and
	// submit prompts
	if schedStore != nil {
		s.runner = schedule.NewRunner(schedStore, s.executeSchedule)
	}

	s.registerAllTools(s.registry)

	return s
}

// GetRegistry returns the tool registry for external access
func (s *Server) GetRegistry() *Registry {
	return s.registry
}

// Close shuts down the server-owned background work. The session
// manager and stores belong to the caller and stay open.
func (s *Server) Close() {
	if s.runner != nil {
		s.runner.Stop()
	}
}

// ensureMCPServer builds the underlying MCP server once
func (s *Server) ensureMCPServer() {
	if s.mcpServer != nil {
		return
	}
	s.mcpServer = mcp_sdk.NewServer(&mcp_sdk.Implementation{
		Name:    "gevulot",
		Version: s.version,
	}, nil)
	s.registry.RegisterWithMCPServer(s.mcpServer)
}

// Handler returns the complete HTTP handler: MCP endpoints behind rate
// limiting and auth, health and metrics endpoints open
func (s *Server) Handler() http.Handler {
	s.ensureMCPServer()

	// Streamable transport with an event store so clients can resume
	// SSE streams after a disconnect
	mcpHandler := mcp_sdk.NewStreamableHTTPHandler(func(req *http.Request) *mcp_sdk.Server {
		return s.mcpServer
	}, &mcp_sdk.StreamableHTTPOptions{
		EventStore: mcp_sdk.NewMemoryEventStore(nil),
	})

	// Request ID and logging middleware
	loggingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), logger.ContextKeyRequestID, requestID)
		r = r.WithContext(ctx)

		logger.Info("HTTP %s %s from %s [request_id=%s]", r.Method, r.URL.Path, r.RemoteAddr, requestID)
		mcpHandler.ServeHTTP(w, r)
	})

	// Auth inside, rate limit outside: the limiter is keyed by remote
	// host and throttles token probing before auth sees it
	authedHandler := auth.Middleware(s.tokens)(loggingHandler)
	rateLimitedHandler := auth.RateLimitMiddleware(s.limiter)(authedHandler)

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.HandleFunc("/health", s.handleHealthCheck)
	mux.HandleFunc("/ready", s.handleReadinessCheck)

	// Metrics endpoint - no authentication required (Prometheus scraping)
	mux.Handle("/metrics", metrics.Handler())

	// MCP endpoints - authenticated, rate limited, wrapped with metrics middleware
	mux.Handle("/mcp", metrics.Middleware(rateLimitedHandler))
	mux.Handle("/mcp/", metrics.Middleware(rateLimitedHandler))

	return mux
}

// Serve starts the MCP HTTP server
func (s *Server) Serve(addr string) error {
	if s.runner != nil {
		s.runner.Start()
	}

	handler := s.Handler()

	logger.Info("🚀 Gevulot MCP server listening on %s", addr)
	logger.Info("💚 Health check: http://localhost%s/health", addr)
	logger.Info("💚 Readiness check: http://localhost%s/ready", addr)
	logger.Info("📊 Metrics: http://localhost%s/metrics", addr)
	return http.ListenAndServe(addr, handler)
}

// ServeStdio runs the MCP server over stdin/stdout for local clients.
// The schedule runner stays stopped: a stdio process lives only as long
// as its client and must not fire background schedules.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.ensureMCPServer()
	return s.mcpServer.Run(ctx, &mcp_sdk.StdioTransport{})
}

// handleHealthCheck is a basic liveness check
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","active_sessions":%d}`, s.manager.Count())
}

// handleReadinessCheck verifies the server can serve requests
func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Check history database availability
	if s.history != nil {
		if err := s.history.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready","reason":"history store unavailable"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
