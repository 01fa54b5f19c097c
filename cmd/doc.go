// Package cmd implements the command-line interface for calbridge.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing Google Calendar tools
//   - chat: Chat with your calendar through an LLM client
//   - version: Display version information
package cmd
