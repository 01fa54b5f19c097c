package chat

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient wraps the MCP client connection to the calendar bridge server.
// Every request carries the user's Google access token as a Bearer
// credential; the server validates it against Google per request.
type MCPClient struct {
	client *mcpclient.Client
	tools  []mcp.Tool
}

// ConnectMCP connects to the MCP server at serverURL, authenticating with
// accessToken, and performs the protocol handshake.
func ConnectMCP(ctx context.Context, serverURL, accessToken string) (*MCPClient, error) {
	endpoint := strings.TrimRight(serverURL, "/") + "/mcp"

	c, err := mcpclient.NewStreamableHttpClient(endpoint,
		transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + accessToken,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "calbridge-chat",
		Version: "1.0.0",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	return &MCPClient{client: c}, nil
}

// ListTools fetches the server's tool catalog. The result is cached for
// Tools().
func (m *MCPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	m.tools = result.Tools
	return m.tools, nil
}

// Tools returns the cached tool catalog from the last ListTools call.
func (m *MCPClient) Tools() []mcp.Tool {
	return m.tools
}

// CallTool invokes a tool and returns its text content. Tool-level errors
// (IsError results) come back as Go errors so the chat loop can report them
// to the model.
func (m *MCPClient) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := m.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("tool %s failed: %w", name, err)
	}

	text := textContent(result)
	if result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

// Close shuts down the MCP connection.
func (m *MCPClient) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// textContent concatenates the text parts of a tool result.
func textContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// isAuthError reports whether an error looks like a rejected or expired
// credential, the one failure the chat loop retries after re-authenticating.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "invalid_token") ||
		strings.Contains(msg, "Unauthorized") ||
		strings.Contains(msg, "missing_token")
}
