package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// gmailUser is the API alias for the authenticated mailbox.
const gmailUser = "me"

// Email is a message summary.
type Email struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
	Unread   bool   `json:"is_unread"`
	Body     string `json:"body,omitempty"`
}

// GmailClient reads the user's mailbox.
type GmailClient struct {
	users *gmail.UsersService
}

// NewGmailClient creates a GmailClient on an HTTP client carrying the user's
// OAuth token. Extra options are for endpoint overrides.
func NewGmailClient(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*GmailClient, error) {
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailClient{users: svc.Users}, nil
}

func header(m *gmail.Message, name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func toEmail(m *gmail.Message, withBody bool) Email {
	e := Email{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Subject:  header(m, "Subject"),
		From:     header(m, "From"),
		Date:     header(m, "Date"),
		Snippet:  m.Snippet,
	}
	if e.Subject == "" {
		e.Subject = "(No Subject)"
	}
	if e.From == "" {
		e.From = "Unknown"
	}
	for _, l := range m.LabelIds {
		if l == "UNREAD" {
			e.Unread = true
		}
	}
	if withBody && m.Payload != nil {
		e.Body = extractPlainBody(m.Payload)
	}
	return e
}

func partData(p *gmail.MessagePart) string {
	if p.Body == nil {
		return ""
	}
	return p.Body.Data
}

// extractPlainBody returns the first text/plain part, searching nested
// multipart bodies.
func extractPlainBody(p *gmail.MessagePart) string {
	if p.MimeType == "text/plain" || (len(p.Parts) == 0 && partData(p) != "") {
		return decodeBase64URL(partData(p))
	}
	for _, part := range p.Parts {
		if part.MimeType == "text/plain" && partData(part) != "" {
			return decodeBase64URL(partData(part))
		}
	}
	for _, part := range p.Parts {
		if strings.HasPrefix(part.MimeType, "multipart/") {
			if body := extractPlainBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

func decodeBase64URL(s string) string {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return ""
		}
	}
	return string(b)
}

// ListMessages returns up to max messages matching a Gmail search query.
func (g *GmailClient) ListMessages(ctx context.Context, query string, max int) ([]Email, error) {
	if max <= 0 {
		max = 10
	}
	call := g.users.Messages.List(gmailUser).MaxResults(int64(max)).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	list, err := call.Do()
	if err != nil {
		return nil, apiError("gmail", err)
	}

	emails := make([]Email, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := g.users.Messages.Get(gmailUser, m.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, apiError("gmail", err)
		}
		emails = append(emails, toEmail(msg, false))
	}
	return emails, nil
}

// UnreadCount returns the number of unread messages in the inbox.
func (g *GmailClient) UnreadCount(ctx context.Context) (int, error) {
	label, err := g.users.Labels.Get(gmailUser, "INBOX").Context(ctx).Do()
	if err != nil {
		return 0, apiError("gmail", err)
	}
	return int(label.MessagesUnread), nil
}

// GetThread returns every message in a thread with plain-text bodies.
func (g *GmailClient) GetThread(ctx context.Context, threadID string) ([]Email, error) {
	thread, err := g.users.Threads.Get(gmailUser, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, apiError("gmail", err)
	}

	emails := make([]Email, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		emails = append(emails, toEmail(m, true))
	}
	return emails, nil
}

// SenderName strips the address from a From header: "Ann <a@x.com>" -> "Ann".
func SenderName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), "\"")
	}
	return from
}
