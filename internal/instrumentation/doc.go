// Package instrumentation provides OpenTelemetry instrumentation for the
// calbridge MCP server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth operations, and Calendar API calls
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active user sessions
//
// Calendar API Metrics:
//   - calendar_api_operations_total: Counter of Calendar API operations by operation, status
//   - calendar_api_operation_duration_seconds: Histogram of Calendar API operation durations
//
// OAuth Metrics:
//   - oauth_token_validations_total: Counter of Bearer token validations by result
//
// Token Store Metrics:
//   - token_store_operations_total: Counter of store operations by backend, operation, status
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Configuration
//
// Instrumentation is configured from the environment; see DefaultConfig.
// Set INSTRUMENTATION_ENABLED=false to disable all telemetry, in which case
// the Provider hands out a no-op Metrics recorder.
//
// # Audit Logging
//
// Tool invocations are additionally written to a structured audit log.
// By default audit entries carry only low-cardinality, anonymized user
// identifiers; full email addresses require AUDIT_LOGGING_INCLUDE_PII=true.
package instrumentation
