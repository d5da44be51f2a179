package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/models"
)

var (
	forgetAllPhrases = []string{"forget everything", "clear all memories", "delete all", "forget all"}
	recallAllPhrases = []string{
		"what do you know about me", "what do you remember", "everything you know",
		"all my info", "what have i told you",
	}
)

func containsAny(s string, phrases []string) bool {
	s = strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func (s *AssistantService) memories() (*MemoryService, error) {
	if s.Memories == nil {
		return nil, errors.New("memory store not configured")
	}
	return s.Memories, nil
}

func (s *AssistantService) handleRemember(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mem, err := s.memories()
	if err != nil {
		return nil, err
	}
	fact, err := s.Text.ExtractQuery(ctx, ai.QueryMemory, turn.Transcript)
	if err != nil {
		return nil, fmt.Errorf("extract memory: %w", err)
	}
	memory, err := mem.Remember(ctx, turn.UserID, fact)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: "Got it! I'll remember that.",
		Data:    map[string]interface{}{"memory": memory.Content, "action": "stored"},
	}, nil
}

func (s *AssistantService) handleRecall(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mem, err := s.memories()
	if err != nil {
		return nil, err
	}

	var contents []string
	header := "Here's what I remember about that:"
	if containsAny(turn.Transcript, recallAllPhrases) {
		all, err := mem.All(turn.UserID)
		if err != nil {
			return nil, err
		}
		for _, m := range all {
			contents = append(contents, m.Content)
		}
		header = "Here's what I remember about you:"
	} else {
		query, err := s.Text.ExtractQuery(ctx, ai.QueryMemory, turn.Transcript)
		if err != nil || strings.TrimSpace(query) == "" {
			query = turn.Transcript
		}
		scored, err := mem.Recall(ctx, turn.UserID, query)
		if err != nil {
			return nil, err
		}
		contents = Contents(scored)
	}

	data := map[string]interface{}{"memories": contents, "action": "recalled"}
	if len(contents) == 0 {
		return &HandlerResult{
			Message: "I don't have any memories stored for you yet. Tell me something to remember!",
			Data:    data,
		}, nil
	}
	var b strings.Builder
	b.WriteString(header)
	for i, c := range contents {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c)
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}

func (s *AssistantService) handleForget(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mem, err := s.memories()
	if err != nil {
		return nil, err
	}

	if containsAny(turn.Transcript, forgetAllPhrases) {
		if err := mem.ForgetAll(turn.UserID); err != nil {
			return nil, err
		}
		return &HandlerResult{
			Message: "I've forgotten everything about you. We're starting fresh!",
			Data:    map[string]interface{}{"action": "cleared"},
		}, nil
	}

	query, err := s.Text.ExtractQuery(ctx, ai.QueryMemory, turn.Transcript)
	if err != nil || strings.TrimSpace(query) == "" {
		query = turn.Transcript
	}
	var forgotten *models.Memory
	forgotten, err = mem.Forget(ctx, turn.UserID, query)
	if errors.Is(err, ErrNoMatchingMemory) {
		return nil, userErrorf(CodeNotFound, "I couldn't find any memories matching that. What would you like me to forget?")
	}
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: "Done! I've forgotten that: " + forgotten.Content,
		Data:    map[string]interface{}{"memory": forgotten.Content, "action": "forgotten"},
	}, nil
}
