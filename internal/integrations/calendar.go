package integrations

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

// CalendarEvent is a simplified Google Calendar event.
type CalendarEvent struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	Location string    `json:"location,omitempty"`
	Link     string    `json:"html_link,omitempty"`
}

// CalendarClient talks to the user's primary Google Calendar.
type CalendarClient struct {
	events *calendar.EventsService
}

// NewCalendarClient creates a CalendarClient on an HTTP client carrying the
// user's OAuth token. Extra options are for endpoint overrides.
func NewCalendarClient(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*CalendarClient, error) {
	svc, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{events: svc.Events}, nil
}

func toCalendarEvent(e *calendar.Event, loc *time.Location) CalendarEvent {
	ev := CalendarEvent{
		ID:       e.Id,
		Summary:  e.Summary,
		Location: e.Location,
		Link:     e.HtmlLink,
	}
	if ev.Summary == "" {
		ev.Summary = "Untitled Event"
	}
	start, end := e.Start, e.End
	if start == nil {
		start = &calendar.EventDateTime{}
	}
	if end == nil {
		end = &calendar.EventDateTime{}
	}
	if start.DateTime != "" {
		ev.Start, _ = time.Parse(time.RFC3339, start.DateTime)
		ev.End, _ = time.Parse(time.RFC3339, end.DateTime)
	} else {
		ev.AllDay = true
		ev.Start, _ = time.ParseInLocation("2006-01-02", start.Date, loc)
		ev.End, _ = time.ParseInLocation("2006-01-02", end.Date, loc)
	}
	return ev
}

func eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

// ListEvents returns single events overlapping [from, to), ordered by start.
func (c *CalendarClient) ListEvents(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	out, err := c.events.List(primaryCalendar).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(50).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("calendar", err)
	}

	events := make([]CalendarEvent, 0, len(out.Items))
	for _, item := range out.Items {
		events = append(events, toCalendarEvent(item, from.Location()))
	}
	return events, nil
}

// CreateEvent inserts a timed event.
func (c *CalendarClient) CreateEvent(ctx context.Context, summary, location string, start, end time.Time) (*CalendarEvent, error) {
	out, err := c.events.Insert(primaryCalendar, &calendar.Event{
		Summary:  summary,
		Location: location,
		Start:    eventTime(start),
		End:      eventTime(end),
	}).Context(ctx).Do()
	if err != nil {
		return nil, apiError("calendar", err)
	}
	ev := toCalendarEvent(out, start.Location())
	return &ev, nil
}

// UpdateEvent patches an event. An empty summary or zero times leave those
// fields unchanged.
func (c *CalendarClient) UpdateEvent(ctx context.Context, eventID, summary string, start, end time.Time) (*CalendarEvent, error) {
	patch := &calendar.Event{Summary: summary}
	loc := time.UTC
	if !start.IsZero() && !end.IsZero() {
		patch.Start = eventTime(start)
		patch.End = eventTime(end)
		loc = start.Location()
	}
	out, err := c.events.Patch(primaryCalendar, eventID, patch).Context(ctx).Do()
	if err != nil {
		return nil, apiError("calendar", err)
	}
	ev := toCalendarEvent(out, loc)
	return &ev, nil
}

// DeleteEvent removes an event.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.events.Delete(primaryCalendar, eventID).Context(ctx).Do(); err != nil {
		return apiError("calendar", err)
	}
	return nil
}
