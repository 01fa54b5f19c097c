// Package common provides shared helpers for MCP tool handlers: account
// resolution from the OAuth context and instrumentation wrappers.
package common
