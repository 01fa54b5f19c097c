// Package calendar_tools registers the Google Calendar MCP tools:
// list_upcoming_events and create_event. Both act on the primary calendar
// of the authenticated account.
package calendar_tools
