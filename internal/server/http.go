package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"calbridge/internal/instrumentation"
	"calbridge/internal/mcp/oauth"
)

// HTTPServer wraps an MCP server with OAuth 2.1 resource-server
// authentication. It implements RFC 9728 Protected Resource Metadata so MCP
// clients can discover Google as the authorization server, validates Bearer
// tokens on the MCP endpoint, and exposes health endpoints for probes.
type HTTPServer struct {
	mcpServer      *mcpserver.MCPServer
	oauthHandler   *oauth.Handler
	healthChecker  *HealthChecker
	sessionTracker *SessionTracker
	metrics        *instrumentation.Metrics
	httpServer     *http.Server
}

// NewHTTPServer creates an OAuth-protected HTTP server around the MCP server.
// The oauth handler carries the token store and resource configuration; the
// health checker and session tracker are optional.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, oauthHandler *oauth.Handler, healthChecker *HealthChecker, sessionTracker *SessionTracker) (*HTTPServer, error) {
	if mcpServer == nil {
		return nil, fmt.Errorf("mcp server is required")
	}
	if oauthHandler == nil {
		return nil, fmt.Errorf("oauth handler is required")
	}

	return &HTTPServer{
		mcpServer:      mcpServer,
		oauthHandler:   oauthHandler,
		healthChecker:  healthChecker,
		sessionTracker: sessionTracker,
	}, nil
}

// Handler builds the HTTP handler: the streamable MCP endpoint behind the
// OAuth middleware, the metadata and revocation endpoints, and health probes.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Protected Resource Metadata endpoint (RFC 9728).
	// This tells MCP clients where to find the authorization server (Google).
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.oauthHandler.ServeProtectedResourceMetadata)

	// Token revocation for users who want to disconnect the bridge
	mux.HandleFunc("/oauth/revoke", s.oauthHandler.ServeRevoke)

	// The MCP endpoint. Each request is authenticated independently; the
	// validated user's token ends up in the request context and the store.
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)

	var mcpHandler http.Handler = streamable
	if s.sessionTracker != nil {
		mcpHandler = s.sessionTracker.Track(mcpHandler)
	}
	mux.Handle("/mcp", s.oauthHandler.ValidateGoogleToken(mcpHandler))

	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	return s.withRequestMetrics(mux)
}

// SetMetrics attaches a metrics recorder for per-request HTTP metrics;
// nil disables them.
func (s *HTTPServer) SetMetrics(metrics *instrumentation.Metrics) {
	s.metrics = metrics
}

// withRequestMetrics records method, path, status and duration for every
// request handled by the mux.
func (s *HTTPServer) withRequestMetrics(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// statusRecorder captures the status code written by a downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards streaming writes; the streamable MCP transport needs it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Start starts the HTTP server on addr and blocks until it stops.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.sessionTracker != nil {
		s.sessionTracker.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// OAuthHandler returns the OAuth handler for testing or direct access
func (s *HTTPServer) OAuthHandler() *oauth.Handler {
	return s.oauthHandler
}
