package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// ListEventsInput represents the input for listing upcoming events.
type ListEventsInput struct {
	// MaxResults limits how many events are returned. Defaults to 10.
	MaxResults int64

	// TimeMin is the lower bound for event start times. Defaults to now.
	TimeMin time.Time
}

// EventInput represents the input for creating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// EventSummary represents a simplified calendar event.
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time

	// StartRaw is the start as Google returns it: an RFC3339 dateTime for
	// timed events, a plain date for all-day events.
	StartRaw string

	Status   string
	HTMLLink string
}

// toEventSummary converts a Google Calendar event to an EventSummary
func toEventSummary(event *calendar.Event) EventSummary {
	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			summary.StartRaw = event.Start.DateTime
			if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
				summary.Start = t
			}
		} else if event.Start.Date != "" {
			summary.StartRaw = event.Start.Date
			if t, err := time.Parse("2006-01-02", event.Start.Date); err == nil {
				summary.Start = t
			}
		}
	}

	if event.End != nil {
		if event.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
				summary.End = t
			}
		} else if event.End.Date != "" {
			if t, err := time.Parse("2006-01-02", event.End.Date); err == nil {
				summary.End = t
			}
		}
	}

	return summary
}
