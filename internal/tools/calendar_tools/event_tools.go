package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"calbridge/internal/calendar"
	"calbridge/internal/server"
	"calbridge/internal/tools/common"
)

// RegisterEventTools registers event-related tools with the MCP server
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listEventsTool := mcp.NewTool("list_upcoming_events",
		mcp.WithDescription("List upcoming events from the user's primary Google Calendar"),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of events to return (default: 10)"),
		),
		mcp.WithString("time_min",
			mcp.Description("Earliest event start time to include (RFC3339 format, e.g., '2026-09-01T00:00:00Z'). Defaults to the current time."),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithOperation(
		"list_upcoming_events", "events.list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUpcomingEvents(ctx, request, sc)
		},
	))

	createEventTool := mcp.NewTool("create_event",
		mcp.WithDescription("Create a new event on the user's primary Google Calendar"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("start_time",
			mcp.Required(),
			mcp.Description("Start time (RFC3339 format, e.g., '2026-09-01T14:00:00Z')"),
		),
		mcp.WithString("end_time",
			mcp.Required(),
			mcp.Description("End time (RFC3339 format, e.g., '2026-09-01T15:00:00Z')"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithOperation(
		"create_event", "events.insert", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		},
	))

	return nil
}

func handleListUpcomingEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	input := calendar.ListEventsInput{}

	if v, ok := args["max_results"].(float64); ok && v > 0 {
		input.MaxResults = int64(v)
	}

	if v, ok := args["time_min"].(string); ok && v != "" {
		timeMin, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid time_min: %v", err)), nil
		}
		input.TimeMin = timeMin
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := client.ListUpcomingEvents(ctx, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Google Calendar API Error: %v", err)), nil
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No upcoming events found."), nil
	}

	return mcp.NewToolResultText(formatEventList(events)), nil
}

// formatEventList renders events as one line per event. Google Calendar
// allows events without a summary; those render as "No Title".
func formatEventList(events []calendar.EventSummary) string {
	var sb strings.Builder
	sb.WriteString("Upcoming events:")
	for _, event := range events {
		summary := event.Summary
		if summary == "" {
			summary = "No Title"
		}
		sb.WriteString(fmt.Sprintf("\n- %s: %s", event.StartRaw, summary))
	}
	return sb.String()
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	startStr, ok := args["start_time"].(string)
	if !ok || startStr == "" {
		return mcp.NewToolResultError("start_time is required"), nil
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start_time: %v", err)), nil
	}

	endStr, ok := args["end_time"].(string)
	if !ok || endStr == "" {
		return mcp.NewToolResultError("end_time is required"), nil
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end_time: %v", err)), nil
	}

	description, _ := args["description"].(string)

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := client.CreateEvent(ctx, calendar.EventInput{
		Summary:     summary,
		Description: description,
		Start:       start,
		End:         end,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event created successfully. Link: %s", created.HTMLLink)), nil
}
