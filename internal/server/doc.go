// Package server provides the MCP server context, HTTP wiring, and
// operational endpoints for the calbridge server.
//
// # Key Components
//
// ServerContext holds shared state: the token provider behind the calendar
// clients, per-account client caching for the stdio transport, and the
// instrumentation hooks tool handlers record through.
//
// HTTPServer wraps the MCP server for the streamable-http transport:
//   - Protected Resource Metadata (RFC 9728) advertising Google as the
//     authorization server
//   - Bearer token validation on the /mcp endpoint
//   - Token revocation (POST /oauth/revoke)
//   - Health endpoints for Kubernetes probes
//
// MetricsServer serves Prometheus metrics on a dedicated port, keeping
// operational data off the application port.
//
// SessionTracker counts distinct authenticated users per instance for the
// active-sessions gauge.
package server
