package calendar_tools

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"calbridge/internal/calendar"
	"calbridge/internal/mcp/oauth"
	"calbridge/internal/server"
)

// getCalendarClient retrieves or creates a calendar client for the specified account.
//
// Requests authenticated by the OAuth middleware carry their own token in the
// context, so they always get a fresh client; caching one user's client would
// serve it to the next. Only stdio requests, which all act for the same local
// account, use the cache.
func getCalendarClient(ctx context.Context, account string, sc *server.ServerContext) (*calendar.Client, error) {
	if _, ok := oauth.GetUserFromContext(ctx); ok {
		return calendar.NewClientForAccountWithProvider(ctx, account, sc.TokenProvider())
	}

	if client := sc.CalendarClientForAccount(account); client != nil {
		return client, nil
	}

	client, err := calendar.NewClientForAccountWithProvider(ctx, account, sc.TokenProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
	}
	sc.SetCalendarClientForAccount(account, client)
	return client, nil
}

// RegisterCalendarTools registers all Calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterEventTools(s, sc); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	return nil
}
