package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/integrations"
)

const (
	primaryInbox      = "category:primary"
	emailListSize     = 5
	emailAnalyzeSize  = 15
	maxSpokenSubject  = 50
	maxSpokenListings = 3
)

func (s *AssistantService) mail(ctx context.Context, userID string) (MailAPI, error) {
	if s.Connectors == nil {
		return nil, ErrNotConnected
	}
	return s.Connectors.Mail(ctx, userID)
}

func shortSubject(subject string) string {
	if subject == "" {
		return "(No Subject)"
	}
	r := []rune(subject)
	if len(r) > maxSpokenSubject {
		return string(r[:maxSpokenSubject-3]) + "..."
	}
	return subject
}

func emailLine(i int, e integrations.Email) string {
	state := "read"
	if e.Unread {
		state = "unread"
	}
	return fmt.Sprintf("\n%d. '%s' from %s (%s)", i, shortSubject(e.Subject), integrations.SenderName(e.From), state)
}

func (s *AssistantService) handleCheckEmail(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mail, err := s.mail(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	unread, err := mail.UnreadCount(ctx)
	if err != nil {
		return nil, err
	}
	emails, err := mail.ListMessages(ctx, primaryInbox+" is:unread", emailListSize)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"unread_count": unread,
		"emails":       emails,
		"filter":       "unread",
		"source":       "gmail",
	}
	if len(emails) == 0 {
		return &HandlerResult{Message: "You have no unread emails. Your inbox is all caught up!", Data: data}, nil
	}

	var b strings.Builder
	if unread < len(emails) {
		unread = len(emails)
	}
	fmt.Fprintf(&b, "You have %d unread email%s. Here are the latest %d:", unread, plural(unread), len(emails))
	for i, e := range emails {
		b.WriteString(emailLine(i+1, e))
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}

func (s *AssistantService) handleSearchEmail(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mail, err := s.mail(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	query, err := s.Text.ExtractQuery(ctx, ai.QueryEmail, turn.Transcript)
	if err != nil {
		return nil, fmt.Errorf("extract email query: %w", err)
	}
	if query == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "What should I search your email for?")
	}

	results, err := mail.ListMessages(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{"query": query, "emails": results, "count": len(results)}
	if len(results) == 0 {
		return &HandlerResult{Message: fmt.Sprintf("I couldn't find any emails matching '%s'.", query), Data: data}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d email%s matching your search:", len(results), plural(len(results)))
	for i, e := range results {
		if i == maxSpokenListings {
			fmt.Fprintf(&b, "\n\n...and %d more.", len(results)-maxSpokenListings)
			break
		}
		b.WriteString(emailLine(i+1, e))
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}

func (s *AssistantService) handleReadEmail(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mail, err := s.mail(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	query, err := s.Text.ExtractQuery(ctx, ai.QueryEmail, turn.Transcript)
	if err != nil {
		return nil, fmt.Errorf("extract email query: %w", err)
	}
	if query == "" {
		query = primaryInbox
	}

	matches, err := mail.ListMessages(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, userErrorf(CodeNotFound, "I couldn't figure out which email you'd like me to read. Could you be more specific?")
	}

	thread, err := mail.GetThread(ctx, matches[0].ThreadID)
	if err != nil {
		return nil, err
	}
	if len(thread) == 0 {
		return nil, userErrorf(CodeNotFound, "That email thread is empty.")
	}

	latest := thread[len(thread)-1]
	data := map[string]interface{}{"thread_id": matches[0].ThreadID, "messages": thread}
	if len(thread) > 1 {
		return &HandlerResult{
			Message: fmt.Sprintf("I've opened the thread '%s'. It has %d messages.", shortSubject(thread[0].Subject), len(thread)),
			Data:    data,
		}, nil
	}
	return &HandlerResult{
		Message: fmt.Sprintf("Here is the email from %s.", integrations.SenderName(latest.From)),
		Data:    data,
	}, nil
}

func (s *AssistantService) handleAnalyzeEmail(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	mail, err := s.mail(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	emails, err := mail.ListMessages(ctx, primaryInbox, emailAnalyzeSize)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return &HandlerResult{Message: "You don't have any recent emails in your Primary inbox to analyze."}, nil
	}

	var content strings.Builder
	for i, e := range emails {
		state := "read"
		if e.Unread {
			state = "unread"
		}
		fmt.Fprintf(&content, "%d. From: %s | Subject: %s | Date: %s | %s\n   %s\n",
			i+1, e.From, e.Subject, e.Date, state, e.Snippet)
	}

	instruction := fmt.Sprintf("You are analyzing the user's recent emails to answer their question: %q. "+
		"Answer conversationally in a few sentences, naming senders and subjects where useful.", turn.Transcript)
	analysis, err := s.Text.Summarize(ctx, instruction, content.String())
	if err != nil {
		return nil, fmt.Errorf("analyze email: %w", err)
	}
	return &HandlerResult{
		Message: analysis,
		Data:    map[string]interface{}{"emails": emails, "count": len(emails)},
	}, nil
}
