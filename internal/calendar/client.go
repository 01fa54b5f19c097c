package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calbridge/internal/google"
)

// DefaultMaxResults is how many upcoming events are listed when the caller
// does not say otherwise.
const DefaultMaxResults = 10

// Client wraps the Google Calendar service for a single account.
type Client struct {
	svc           *calendar.Service
	account       string
	tokenProvider google.TokenProvider
}

// Account returns the account this client acts for.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccountWithProvider checks if a valid OAuth token exists for the specified account
func HasTokenForAccountWithProvider(account string, provider google.TokenProvider) bool {
	if provider == nil {
		return false
	}
	return provider.HasTokenForAccount(account)
}

// NewClientForAccountWithProvider creates a Calendar client for a specific
// account. The OAuth token comes from the provider: the OAuth store for HTTP
// transports, token files for stdio. The token is wrapped in a refreshing
// token source so long chat sessions survive token expiry.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	client := google.HTTPClientForTokenSource(ctx, tokenSourceFor(ctx, token))

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:           svc,
		account:       account,
		tokenProvider: tokenProvider,
	}, nil
}

// NewClientForAccount creates a Calendar client using the file-based token
// provider. Used by the stdio transport.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	provider := google.NewFileTokenProvider()
	return NewClientForAccountWithProvider(ctx, account, provider)
}

// tokenSourceFor wraps the token in a refreshing source when OAuth client
// credentials are configured, falling back to a static source.
func tokenSourceFor(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	if conf, err := google.OAuthConfigFromEnv(); err == nil {
		return conf.TokenSource(ctx, token)
	}
	return oauth2.StaticTokenSource(token)
}

// ListUpcomingEvents lists events from the primary calendar starting at
// input.TimeMin (default: now), ordered by start time.
func (c *Client) ListUpcomingEvents(ctx context.Context, input ListEventsInput) ([]EventSummary, error) {
	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	timeMin := input.TimeMin
	if timeMin.IsZero() {
		timeMin = time.Now().UTC()
	}

	events, err := c.svc.Events.List("primary").
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}

	return summaries, nil
}

// CreateEvent creates an event on the primary calendar and returns it,
// including the htmlLink Google assigns.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*EventSummary, error) {
	if input.Summary == "" {
		return nil, fmt.Errorf("event summary cannot be empty")
	}
	if input.Start.IsZero() || input.End.IsZero() {
		return nil, fmt.Errorf("event start and end times are required")
	}

	timeZone := input.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: timeZone,
		},
	}

	created, err := c.svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}
