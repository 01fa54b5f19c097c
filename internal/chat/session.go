package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"calbridge/internal/logging"
)

// DefaultModel is the chat model used when the user names none.
const DefaultModel = "gpt-4o"

// maxToolRounds bounds how many tool-call rounds one prompt may trigger
// before the session gives up, so a confused model cannot loop forever.
const maxToolRounds = 10

// SessionConfig configures a chat session.
type SessionConfig struct {
	// ServerURL is the base URL of the calendar bridge MCP server.
	ServerURL string

	// Model is the chat model (default: gpt-4o).
	Model string

	// Profile selects which stored Google credential to use.
	Profile string

	// Profiles is the credential store.
	Profiles *ProfileStore

	// OpenAI is the chat completion client.
	OpenAI *openai.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session drives a chat conversation: it sends prompts to the chat model
// together with the bridge's tool catalog, executes the tool calls the model
// makes against the MCP server, and feeds the results back until the model
// produces a final answer.
type Session struct {
	config   SessionConfig
	logger   *slog.Logger
	mcp      *MCPClient
	tools    []openai.Tool
	messages []openai.ChatCompletionMessage
}

// NewSession creates a chat session. Connect must be called before Run.
func NewSession(config SessionConfig) (*Session, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if config.Profiles == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if config.OpenAI == nil {
		return nil, fmt.Errorf("chat completion client is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Profile == "" {
		config.Profile = DefaultProfile
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		config: config,
		logger: logger,
	}, nil
}

// Connect authenticates with the stored Google credential, connects to the
// MCP server, and fetches the tool catalog.
func (s *Session) Connect(ctx context.Context) error {
	mcpClient, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.mcp = mcpClient

	mcpTools, err := s.mcp.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover tools: %w", err)
	}

	s.tools, err = TranslateTools(mcpTools)
	if err != nil {
		return fmt.Errorf("failed to translate tools: %w", err)
	}

	s.logger.Info("connected to calendar bridge",
		logging.Operation("chat_connect"),
		slog.String(logging.KeyModel, s.config.Model),
		slog.String(logging.KeyProfile, s.config.Profile),
		slog.Int("tools", len(s.tools)))
	return nil
}

// dial obtains an access token for the profile and opens the MCP connection.
func (s *Session) dial(ctx context.Context) (*MCPClient, error) {
	ts, err := s.config.Profiles.TokenSource(ctx, s.config.Profile)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Google access token: %w", err)
	}

	return ConnectMCP(ctx, s.config.ServerURL, token.AccessToken)
}

// Close shuts down the MCP connection.
func (s *Session) Close() error {
	if s.mcp == nil {
		return nil
	}
	return s.mcp.Close()
}

// Run sends a user prompt through the chat loop and returns the model's
// final answer.
func (s *Session) Run(ctx context.Context, prompt string) (string, error) {
	if s.mcp == nil {
		return "", fmt.Errorf("session is not connected")
	}

	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.config.OpenAI.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.config.Model,
			Messages: s.messages,
			Tools:    s.tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}

		message := resp.Choices[0].Message
		s.messages = append(s.messages, message)

		if len(message.ToolCalls) == 0 {
			return message.Content, nil
		}

		for _, toolCall := range message.ToolCalls {
			content := s.executeToolCall(ctx, toolCall)
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: toolCall.ID,
			})
		}
	}

	return "", fmt.Errorf("conversation exceeded %d tool rounds without a final answer", maxToolRounds)
}

// executeToolCall runs one tool call and returns the content to feed back to
// the model. Failures are reported as content rather than errors; the model
// decides how to proceed.
func (s *Session) executeToolCall(ctx context.Context, toolCall openai.ToolCall) string {
	name := toolCall.Function.Name

	var args map[string]any
	if toolCall.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err)
		}
	}

	s.logger.Info("executing tool call",
		logging.Tool(name),
		slog.String(logging.KeyProfile, s.config.Profile))

	result, err := s.callToolWithReauth(ctx, name, args)
	if err != nil {
		s.logger.Warn("tool call failed", logging.Tool(name), logging.Err(err))
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// callToolWithReauth invokes a tool, retrying exactly once after
// re-authenticating when the server rejects the credential. More than one
// retry only hides a credential that cannot be fixed by refreshing.
func (s *Session) callToolWithReauth(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := s.mcp.CallTool(ctx, name, args)
	if err == nil || !isAuthError(err) {
		return result, err
	}

	s.logger.Info("credential rejected, re-authenticating once",
		logging.Tool(name),
		slog.String(logging.KeyProfile, s.config.Profile))

	if reauthErr := s.reauthenticate(ctx); reauthErr != nil {
		return "", fmt.Errorf("re-authentication failed: %w (after %v)", reauthErr, err)
	}

	return s.mcp.CallTool(ctx, name, args)
}

// reauthenticate discards the stored access token (the refresh token stays),
// forces a refresh, and reconnects the MCP session with the new credential.
func (s *Session) reauthenticate(ctx context.Context) error {
	token, err := s.config.Profiles.LoadToken(s.config.Profile)
	if err == nil {
		// Expiring the access token makes the next Token() call refresh
		token.AccessToken = ""
		token.Expiry = time.Unix(1, 0)
		if err := s.config.Profiles.SaveToken(s.config.Profile, token); err != nil {
			return err
		}
	}

	if s.mcp != nil {
		_ = s.mcp.Close()
	}

	mcpClient, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.mcp = mcpClient

	// Re-initialize the tool catalog on the new connection
	if _, err := s.mcp.ListTools(ctx); err != nil {
		return fmt.Errorf("failed to rediscover tools: %w", err)
	}
	return nil
}
