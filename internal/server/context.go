package server

import (
	"context"
	"sync"

	"calbridge/internal/calendar"
	"calbridge/internal/google"
	"calbridge/internal/instrumentation"
)

// ServerContext holds the shared state of the MCP server: the token
// provider, per-account calendar clients, and instrumentation.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokenProvider   google.TokenProvider
	calendarClients map[string]*calendar.Client

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. Calendar clients are
// lazily created per account on first use.
func NewServerContext(ctx context.Context, tokenProvider google.TokenProvider) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		tokenProvider:   tokenProvider,
		calendarClients: make(map[string]*calendar.Client),
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// TokenProvider returns the configured token provider.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.tokenProvider
}

// SetMetrics attaches a metrics recorder; nil disables metric recording.
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// Metrics returns the metrics recorder, or nil when none is configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger attaches an audit logger; nil disables audit logging.
func (sc *ServerContext) SetAuditLogger(auditLogger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = auditLogger
}

// AuditLogger returns the audit logger, or nil when none is configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// CalendarClientForAccount returns the cached Calendar client for an account,
// or nil when none has been created yet.
//
// Clients for HTTP transports are created per request (each request may carry
// a different user's token), so only the stdio transport caches here.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.calendarClients[account]
}

// SetCalendarClientForAccount caches the Calendar client for an account.
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
