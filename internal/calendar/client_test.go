package calendar

import (
	"context"
	"testing"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"

	"calbridge/internal/google"
)

func TestToEventSummary_TimedEvent(t *testing.T) {
	event := &calendar.Event{
		Id:       "event-123",
		Summary:  "Team Sync",
		Status:   "confirmed",
		HtmlLink: "https://www.google.com/calendar/event?eid=abc",
		Start: &calendar.EventDateTime{
			DateTime: "2026-09-01T10:00:00Z",
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: "2026-09-01T11:00:00Z",
			TimeZone: "UTC",
		},
	}

	summary := toEventSummary(event)

	if summary.ID != "event-123" {
		t.Errorf("ID = %q, want event-123", summary.ID)
	}
	if summary.StartRaw != "2026-09-01T10:00:00Z" {
		t.Errorf("StartRaw = %q, want the RFC3339 dateTime", summary.StartRaw)
	}
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if !summary.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", summary.Start, want)
	}
	if summary.End.Sub(summary.Start) != time.Hour {
		t.Errorf("End-Start = %v, want 1h", summary.End.Sub(summary.Start))
	}
	if summary.HTMLLink == "" {
		t.Error("HTMLLink is empty")
	}
}

func TestToEventSummary_AllDayEvent(t *testing.T) {
	event := &calendar.Event{
		Id:      "event-456",
		Summary: "Company Holiday",
		Start:   &calendar.EventDateTime{Date: "2026-09-07"},
		End:     &calendar.EventDateTime{Date: "2026-09-08"},
	}

	summary := toEventSummary(event)

	if summary.StartRaw != "2026-09-07" {
		t.Errorf("StartRaw = %q, want the plain date", summary.StartRaw)
	}
	want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if !summary.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", summary.Start, want)
	}
}

func TestToEventSummary_MissingTimes(t *testing.T) {
	summary := toEventSummary(&calendar.Event{Id: "bare"})

	if !summary.Start.IsZero() || !summary.End.IsZero() {
		t.Error("events without start/end should produce zero times")
	}
	if summary.StartRaw != "" {
		t.Errorf("StartRaw = %q, want empty", summary.StartRaw)
	}
}

type fakeTokenProvider struct {
	token *oauth2.Token
	err   error
}

func (p *fakeTokenProvider) GetTokenForAccount(_ context.Context, _ string) (*oauth2.Token, error) {
	return p.token, p.err
}

func (p *fakeTokenProvider) HasTokenForAccount(_ string) bool {
	return p.token != nil
}

func TestNewClientForAccountWithProvider_NilProvider(t *testing.T) {
	if _, err := NewClientForAccountWithProvider(context.Background(), "user@example.com", nil); err == nil {
		t.Error("NewClientForAccountWithProvider() with nil provider should return error")
	}
}

func TestNewClientForAccountWithProvider(t *testing.T) {
	provider := &fakeTokenProvider{
		token: &oauth2.Token{
			AccessToken: "access_token",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		},
	}

	client, err := NewClientForAccountWithProvider(context.Background(), "user@example.com", provider)
	if err != nil {
		t.Fatalf("NewClientForAccountWithProvider() error = %v", err)
	}

	if client.Account() != "user@example.com" {
		t.Errorf("Account() = %q, want user@example.com", client.Account())
	}
}

func TestHasTokenForAccountWithProvider(t *testing.T) {
	if HasTokenForAccountWithProvider("user@example.com", nil) {
		t.Error("HasTokenForAccountWithProvider() with nil provider should be false")
	}

	if !HasTokenForAccountWithProvider("user@example.com", &fakeTokenProvider{token: &oauth2.Token{}}) {
		t.Error("HasTokenForAccountWithProvider() = false with a token present")
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	provider := &fakeTokenProvider{
		token: &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)},
	}
	client, err := NewClientForAccountWithProvider(context.Background(), "user@example.com", provider)
	if err != nil {
		t.Fatalf("NewClientForAccountWithProvider() error = %v", err)
	}

	now := time.Now()
	tests := []struct {
		name  string
		input EventInput
	}{
		{"missing summary", EventInput{Start: now, End: now.Add(time.Hour)}},
		{"missing start", EventInput{Summary: "Meeting", End: now.Add(time.Hour)}},
		{"missing end", EventInput{Summary: "Meeting", Start: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.CreateEvent(context.Background(), tt.input); err == nil {
				t.Error("CreateEvent() with invalid input should return error")
			}
		})
	}
}

var _ google.TokenProvider = (*fakeTokenProvider)(nil)
