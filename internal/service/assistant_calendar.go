package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/windoze95/manas-api/internal/integrations"
)

const defaultEventDuration = time.Hour

// DateRange is a span of whole days in the user's time zone.
type DateRange struct {
	Start time.Time
	End   time.Time
	Label string
}

// ParseDateRange finds the day a request talks about: "today", "tomorrow" or
// a weekday name (the next one, a week out if it names today). Anything else
// covers the next seven days.
func ParseDateRange(transcript string, now time.Time) DateRange {
	t := strings.ToLower(transcript)
	day := func(d time.Time) (time.Time, time.Time) {
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if strings.Contains(t, "today") || strings.Contains(t, "tonight") {
		start, end := day(now)
		return DateRange{Start: start, End: end, Label: "today"}
	}
	if strings.Contains(t, "tomorrow") {
		start, end := day(now.AddDate(0, 0, 1))
		return DateRange{Start: start, End: end, Label: "tomorrow"}
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if !strings.Contains(t, strings.ToLower(wd.String())) {
			continue
		}
		ahead := (int(wd) - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		target := now.AddDate(0, 0, ahead)
		start, end := day(target)
		return DateRange{Start: start, End: end, Label: "on " + target.Format(spokenDateLayout)}
	}

	start, _ := day(now)
	_, end := day(now.AddDate(0, 0, 7))
	return DateRange{Start: start, End: end, Label: "in the next 7 days"}
}

// spokenTime renders a clock time like "3:00 PM".
func spokenTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// matchEvent finds the event a spoken name refers to: a containment match
// first, then the closest title.
func matchEvent(events []integrations.CalendarEvent, name string) *integrations.CalendarEvent {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return nil
	}
	for i := range events {
		summary := strings.ToLower(events[i].Summary)
		if summary != "" && (strings.Contains(summary, n) || strings.Contains(n, summary)) {
			return &events[i]
		}
	}
	titles := make([]string, len(events))
	for i := range events {
		titles[i] = events[i].Summary
	}
	if i := bestMatch(n, titles); i >= 0 {
		return &events[i]
	}
	return nil
}

func eventNames(events []integrations.CalendarEvent) string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Summary)
	}
	return strings.Join(names, ", ")
}

// parseEventTime reads an extracted timestamp into the user's zone.
func parseEventTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *AssistantService) calendar(ctx context.Context, userID string) (CalendarAPI, error) {
	if s.Connectors == nil {
		return nil, ErrNotConnected
	}
	return s.Connectors.Calendar(ctx, userID)
}

func (s *AssistantService) handleCreateEvent(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	cal, err := s.calendar(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	now := turn.LocalNow()
	details, err := s.Text.ExtractCalendarEvent(ctx, turn.Transcript, now)
	if err != nil {
		return nil, fmt.Errorf("extract calendar event: %w", err)
	}

	summary := strings.TrimSpace(details.Summary)
	if summary == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "What should I call the event?")
	}
	start, ok := parseEventTime(details.Start, now.Location())
	if !ok {
		return nil, userErrorf(CodeNeedsMoreInfo, "When should I schedule '%s'?", summary)
	}
	end, ok := parseEventTime(details.End, now.Location())
	if !ok || !end.After(start) {
		end = start.Add(defaultEventDuration)
	}

	event, err := cal.CreateEvent(ctx, summary, strings.TrimSpace(details.Location), start, end)
	if err != nil {
		return nil, err
	}

	when := "on " + start.Format(spokenDateLayout)
	if sameDay(start, now) {
		when = "today"
	} else if sameDay(start, now.AddDate(0, 0, 1)) {
		when = "tomorrow"
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've created '%s' in your calendar %s at %s.", summary, when, spokenTime(start)),
		Data:    map[string]interface{}{"event": event},
	}, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func (s *AssistantService) handleUpdateEvent(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	cal, err := s.calendar(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	now := turn.LocalNow()
	details, err := s.Text.ExtractCalendarEvent(ctx, turn.Transcript, now)
	if err != nil {
		return nil, fmt.Errorf("extract calendar change: %w", err)
	}
	if strings.TrimSpace(details.Query) == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "I couldn't tell which event you want to update. Please specify the event name.")
	}

	r := ParseDateRange(turn.Transcript, now)
	events, err := cal.ListEvents(ctx, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	match := matchEvent(events, details.Query)
	if match == nil {
		if len(events) == 0 {
			return nil, userErrorf(CodeNotFound, "I couldn't find '%s' on your calendar %s.", details.Query, r.Label)
		}
		return nil, userErrorf(CodeNotFound, "I couldn't find '%s'. Available events: %s.", details.Query, eventNames(events))
	}

	var changes []string
	newTitle := strings.TrimSpace(details.Summary)
	if strings.EqualFold(newTitle, match.Summary) || strings.EqualFold(newTitle, details.Query) {
		newTitle = ""
	}
	if newTitle != "" {
		changes = append(changes, fmt.Sprintf("name to '%s'", newTitle))
	}
	start, hasStart := parseEventTime(details.Start, now.Location())
	var end time.Time
	if hasStart {
		duration := match.End.Sub(match.Start)
		if duration <= 0 {
			duration = defaultEventDuration
		}
		var ok bool
		end, ok = parseEventTime(details.End, now.Location())
		if !ok || !end.After(start) {
			end = start.Add(duration)
		}
		changes = append(changes, "time to "+spokenTime(start))
	}
	if len(changes) == 0 {
		return nil, userErrorf(CodeNeedsMoreInfo, "What would you like to change about '%s'?", match.Summary)
	}

	updated, err := cal.UpdateEvent(ctx, match.ID, newTitle, start, end)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've updated '%s' - changed %s.", match.Summary, strings.Join(changes, " and ")),
		Data:    map[string]interface{}{"event": updated},
	}, nil
}

func (s *AssistantService) handleDeleteEvent(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	cal, err := s.calendar(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	now := turn.LocalNow()
	details, err := s.Text.ExtractCalendarEvent(ctx, turn.Transcript, now)
	if err != nil {
		return nil, fmt.Errorf("extract calendar event: %w", err)
	}
	name := strings.TrimSpace(details.Query)
	if name == "" {
		name = strings.TrimSpace(details.Summary)
	}
	if name == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "Which event would you like to delete?")
	}

	r := ParseDateRange(turn.Transcript, now)
	events, err := cal.ListEvents(ctx, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, userErrorf(CodeNotFound, "You don't have any events %s to delete.", r.Label)
	}
	match := matchEvent(events, name)
	if match == nil {
		return nil, userErrorf(CodeNotFound, "I couldn't find '%s'. You have: %s.", name, eventNames(events))
	}

	if err := cal.DeleteEvent(ctx, match.ID); err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've deleted '%s' from your calendar.", match.Summary),
		Data:    map[string]interface{}{"deleted_event": match},
	}, nil
}

func (s *AssistantService) handleListEvents(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	cal, err := s.calendar(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	r := ParseDateRange(turn.Transcript, turn.LocalNow())
	events, err := cal.ListEvents(ctx, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: describeEvents(events, r),
		Data: map[string]interface{}{
			"events":     events,
			"range":      r.Label,
			"start_date": r.Start.Format(time.RFC3339),
			"end_date":   r.End.Format(time.RFC3339),
		},
	}, nil
}

// describeEvents renders events as one spoken sentence.
func describeEvents(events []integrations.CalendarEvent, r DateRange) string {
	if len(events) == 0 {
		if r.Label == "today" {
			return "You have no events scheduled for today."
		}
		return fmt.Sprintf("You have no events scheduled %s.", r.Label)
	}

	multiDay := r.End.Sub(r.Start) > 24*time.Hour
	parts := make([]string, 0, len(events))
	for _, e := range events {
		start := e.Start.In(r.Start.Location())
		switch {
		case e.AllDay && multiDay:
			parts = append(parts, fmt.Sprintf("%s on %s (all day)", e.Summary, start.Format("Monday")))
		case e.AllDay:
			parts = append(parts, fmt.Sprintf("%s (all day)", e.Summary))
		case multiDay:
			parts = append(parts, fmt.Sprintf("%s on %s at %s", e.Summary, start.Format("Monday"), spokenTime(start)))
		default:
			parts = append(parts, fmt.Sprintf("%s at %s", e.Summary, spokenTime(start)))
		}
	}
	return fmt.Sprintf("You have %d event%s %s: %s.", len(events), plural(len(events)), r.Label, strings.Join(parts, ", "))
}
