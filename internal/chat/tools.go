package chat

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	openai "github.com/sashabaranov/go-openai"
)

// TranslateTools converts the MCP tool catalog into the function-calling
// format the chat completion API expects. The MCP input schema is already
// JSON Schema, so it passes through unchanged.
func TranslateTools(tools []mcp.Tool) ([]openai.Tool, error) {
	translated := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, err
		}

		translated = append(translated, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(schema),
			},
		})
	}
	return translated, nil
}
