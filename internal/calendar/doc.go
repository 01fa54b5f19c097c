// Package calendar provides a client for the Google Calendar API.
//
// The client acts on the primary calendar of a single account and covers the
// two operations the MCP tools expose: listing upcoming events and creating
// events. Authentication is delegated to a google.TokenProvider, so the same
// client works behind the OAuth middleware (HTTP transports) and with cached
// token files (stdio).
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := calendar.NewClientForAccount(ctx, "user@example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	events, err := client.ListUpcomingEvents(ctx, calendar.ListEventsInput{MaxResults: 10})
//	if err != nil {
//	    log.Fatal(err)
//	}
package calendar
