package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
)

const defaultDocumentPrompt = "Please summarize this document and point out anything important."

// chatRequest fills in the profile and any memories relevant to the transcript.
func (s *AssistantService) chatRequest(ctx context.Context, turn *Turn) ai.ChatRequest {
	req := ai.ChatRequest{Transcript: turn.Transcript, History: turn.History}
	if p := turn.Profile; p != nil {
		req.Name = p.Name
		req.Location = p.Location
		req.Interests = p.Interests
	}
	if s.Memories != nil && turn.Transcript != "" {
		scored, err := s.Memories.Recall(ctx, turn.UserID, turn.Transcript)
		if err != nil {
			logger.Get().Warn("memory recall failed", zap.String("user_id", turn.UserID), zap.Error(err))
		} else {
			req.Memories = Contents(scored)
		}
	}
	return req
}

func (s *AssistantService) handleGeneralChat(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	reply, err := s.Text.Chat(ctx, s.chatRequest(ctx, turn))
	if err != nil {
		return nil, err
	}
	return &HandlerResult{Message: reply}, nil
}

func (s *AssistantService) handleDocAnalysis(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	if s.Files == nil || len(turn.Attachments) == 0 {
		return nil, userErrorf(CodeInvalidInput, "I don't see a document to look at. Try attaching it again.")
	}
	docs, err := s.Files.Load(ctx, turn.Attachments)
	if err != nil {
		return nil, err
	}

	req := s.chatRequest(ctx, turn)
	if strings.TrimSpace(req.Transcript) == "" {
		req.Transcript = defaultDocumentPrompt
	}
	req.Documents = docs
	reply, err := s.Text.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Filename)
	}
	return &HandlerResult{
		Message: reply,
		Data:    map[string]interface{}{"files": names},
	}, nil
}

// handleDailySummary combines reminders, today's events, weather and activity.
// Sources that are not connected or fail are left out.
func (s *AssistantService) handleDailySummary(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	log := logger.With(zap.String("user_id", turn.UserID))
	now := turn.LocalNow()
	data := map[string]interface{}{"date": now.Format("2006-01-02")}
	var sections []string

	greeting := "Good morning"
	switch h := now.Hour(); {
	case h >= 17:
		greeting = "Good evening"
	case h >= 12:
		greeting = "Good afternoon"
	}
	if turn.Profile != nil && turn.Profile.Name != "" {
		greeting += ", " + turn.Profile.Name
	}
	sections = append(sections, fmt.Sprintf("%s! Here's your summary for %s.", greeting, now.Format(spokenDateLayout)))

	if cal, err := s.calendar(ctx, turn.UserID); err == nil {
		r := ParseDateRange("today", now)
		events, err := cal.ListEvents(ctx, r.Start, r.End)
		if err != nil {
			log.Warn("daily summary: calendar unavailable", zap.Error(err))
		} else {
			data["events"] = events
			sections = append(sections, describeEvents(events, r))
		}
	} else if !errors.Is(err, ErrNotConnected) {
		log.Warn("daily summary: calendar unavailable", zap.Error(err))
	}

	if s.Tasks != nil {
		reminders, err := s.Tasks.Reminders(turn.UserID, turn.Location())
		if err != nil {
			log.Warn("daily summary: tasks unavailable", zap.Error(err))
		} else {
			data["tasks"] = remindersData(reminders)
			sections = append(sections, summarizeTasks(reminders))
		}
	}

	if s.Weather != nil {
		place := s.resolvePlace(ctx, turn, "")
		if w, err := s.Weather.Current(ctx, place); err != nil {
			log.Warn("daily summary: weather unavailable", zap.Error(err))
		} else {
			data["weather"] = w
			sections = append(sections, describeWeather(w))
		}
	}

	if s.Connectors != nil {
		if fit, err := s.Connectors.Fitness(ctx, turn.UserID); err == nil {
			activity, err := fit.DailyActivity(ctx, now)
			if err != nil {
				log.Warn("daily summary: fitness unavailable", zap.Error(err))
			} else if line := activity.Describe(); line != "" {
				data["health"] = activity
				sections = append(sections, line)
			}
		}
	}

	return &HandlerResult{Message: strings.Join(sections, " "), Data: data}, nil
}

func summarizeTasks(r *Reminders) string {
	var parts []string
	if n := len(r.Overdue); n > 0 {
		parts = append(parts, fmt.Sprintf("%d overdue task%s", n, plural(n)))
	}
	if n := len(r.DueToday); n > 0 {
		titles := make([]string, 0, n)
		for _, t := range r.DueToday {
			titles = append(titles, t.Title)
		}
		parts = append(parts, fmt.Sprintf("%d task%s due today (%s)", n, plural(n), strings.Join(titles, ", ")))
	}
	if n := len(r.DueSoon); n > 0 {
		parts = append(parts, fmt.Sprintf("%d coming up soon", n))
	}
	if len(parts) == 0 {
		if n := len(r.NoDueDate); n > 0 {
			return fmt.Sprintf("Nothing is due today, and you have %d open task%s without a due date.", n, plural(n))
		}
		return "Your task list is clear."
	}
	return "You have " + strings.Join(parts, ", ") + "."
}
