package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

// maxDocumentChars bounds how much of each attached document reaches the prompt.
const maxDocumentChars = 20000

// AnthropicProvider implements TextProvider using Claude. Routing and
// extraction calls use the cheaper Haiku model; conversation uses Sonnet.
type AnthropicProvider struct {
	client     anthropic.Client
	model      anthropic.Model
	lightModel anthropic.Model
	prompts    *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API key
// and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:     client,
		model:      anthropic.ModelClaude3_5Sonnet20241022,
		lightModel: anthropic.Model("claude-haiku-4-5-20251001"),
		prompts:    prompts,
	}
}

// --- tool definitions ---

func classifyIntentTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "classify_intent",
			Description: anthropic.String("Report the intent of the user's latest message and your confidence."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"intent": map[string]interface{}{
						"type":        "string",
						"description": "The single best matching intent",
						"enum":        intentLabels(),
					},
					"confidence": map[string]interface{}{
						"type":        "number",
						"description": "Confidence between 0.0 and 1.0",
					},
				},
			},
		},
	}
}

func extractTaskTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "extract_task",
			Description: anthropic.String("Record the task the user wants to add."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"title":    map[string]interface{}{"type": "string", "description": "Task title without command words"},
					"priority": map[string]interface{}{"type": []string{"string", "null"}, "enum": []interface{}{"high", "medium", "low", nil}},
					"due_date": map[string]interface{}{"type": []string{"string", "null"}, "description": "Due date as YYYY-MM-DD"},
				},
			},
		},
	}
}

func extractTaskChangeTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "extract_task_change",
			Description: anthropic.String("Identify an existing task and the requested changes."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"task_query":   map[string]interface{}{"type": "string", "description": "Words identifying the existing task"},
					"new_title":    map[string]interface{}{"type": "string"},
					"new_priority": map[string]interface{}{"type": "string", "enum": []string{"high", "medium", "low", ""}},
					"new_due_date": map[string]interface{}{"type": "string", "description": "YYYY-MM-DD"},
					"new_status":   map[string]interface{}{"type": "string", "enum": []string{"pending", "completed", ""}},
				},
			},
		},
	}
}

func extractCalendarEventTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "extract_calendar_event",
			Description: anthropic.String("Describe the calendar event the user is talking about."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"summary":  map[string]interface{}{"type": "string"},
					"start":    map[string]interface{}{"type": "string", "description": "RFC3339 start time"},
					"end":      map[string]interface{}{"type": "string", "description": "RFC3339 end time"},
					"location": map[string]interface{}{"type": "string"},
					"query":    map[string]interface{}{"type": "string", "description": "Words identifying an existing event"},
				},
			},
		},
	}
}

func updateProfileTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "update_profile",
			Description: anthropic.String("Record personal facts stated by the user. Leave unknown fields empty."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"name":               map[string]interface{}{"type": "string"},
					"location":           map[string]interface{}{"type": "string", "description": "City or region the user lives in"},
					"dietary_preference": map[string]interface{}{"type": "string"},
					"learning_level":     map[string]interface{}{"type": "string", "enum": []string{"beginner", "intermediate", "advanced", ""}},
					"interests":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
		},
	}
}

// forceTool builds the ToolChoice that makes Claude answer through the named tool.
func forceTool(name string) anthropic.ToolChoiceUnionParam {
	return anthropic.ToolChoiceUnionParam{
		OfToolChoiceTool: &anthropic.ToolChoiceToolParam{Name: name},
	}
}

// messagesToAnthropicParams converts our Message slice into Claude message params.
// System messages are separated out as they use a different field in the API.
func messagesToAnthropicParams(msgs []Message) (string, []anthropic.MessageParam) {
	var systemPrompt string
	var params []anthropic.MessageParam

	for _, m := range msgs {
		switch m.Role {
		case "system":
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += m.Content
		case "user":
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(m.Content),
				},
			})
		case "assistant":
			// The API requires the first turn to be the user's.
			if len(params) == 0 {
				continue
			}
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(m.Content),
				},
			})
		}
	}
	return systemPrompt, params
}

// newUserMessage creates a user message param with the given content blocks.
func newUserMessage(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	}
}

// formatHistory renders prior turns as plain text for prompt templates.
func formatHistory(history []Message) string {
	var b strings.Builder
	for _, m := range history {
		switch m.Role {
		case "user":
			b.WriteString("User: ")
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// createMessageWithRetry wraps the Claude API call with exponential backoff.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 5
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("claude API error: %w", err)
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := waitTime * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return true, 2 * time.Second
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}

// extractToolInput decodes the first tool_use block of a Claude response
// into v. A reply that answered in plain text is accepted when the text
// holds a JSON object.
func extractToolInput(msg *anthropic.Message, v interface{}) error {
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			raw, err := json.Marshal(block.Input)
			if err != nil {
				return fmt.Errorf("failed to marshal tool input: %w", err)
			}
			if err := json.Unmarshal(raw, v); err != nil {
				return fmt.Errorf("failed to parse tool input: %w", err)
			}
			return nil
		}
	}
	text, err := extractTextContent(msg)
	if err != nil {
		return errors.New("no tool_use block found in Claude response")
	}
	obj, err := util.ExtractJSONObject(text)
	if err != nil {
		return errors.New("no tool_use block found in Claude response")
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse text tool input: %w", err)
	}
	return nil
}

// extractTextContent returns the concatenated text blocks from a Claude response.
func extractTextContent(msg *anthropic.Message) (string, error) {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("no text content in Claude response")
	}
	return strings.TrimSpace(text), nil
}

// callTool renders a prompt pair and forces Claude to answer through tool.
func (p *AnthropicProvider) callTool(ctx context.Context, pair config.PromptPair, data map[string]interface{}, tool anthropic.ToolUnionParam, out interface{}) error {
	sysPrompt, err := config.RenderPrompt(pair.System, data)
	if err != nil {
		return fmt.Errorf("render system prompt: %w", err)
	}
	userPrompt, err := config.RenderPrompt(pair.User, data)
	if err != nil {
		return fmt.Errorf("render user prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.lightModel,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: forceTool(tool.OfTool.Name),
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return err
	}
	return extractToolInput(resp, out)
}

// --- TextProvider implementation ---

// ClassifyIntent labels the transcript with one intent and a confidence score.
func (p *AnthropicProvider) ClassifyIntent(ctx context.Context, transcript string, history []Message) (*IntentResult, error) {
	var raw struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	err := p.callTool(ctx, p.prompts.Intent, map[string]interface{}{
		"Intents":    intentLabels(),
		"History":    formatHistory(history),
		"Transcript": transcript,
	}, classifyIntentTool(), &raw)
	if err != nil {
		return nil, err
	}

	intent, ok := ParseIntent(raw.Intent)
	if !ok {
		logger.Get().Warn("classifier returned unknown intent", zap.String("intent", raw.Intent))
	}
	return &IntentResult{Intent: intent, Confidence: clampConfidence(raw.Confidence)}, nil
}

// ExtractTask pulls title, priority and due date out of an add-task request.
func (p *AnthropicProvider) ExtractTask(ctx context.Context, transcript string, history []Message, now time.Time) (*TaskDetails, error) {
	var details TaskDetails
	err := p.callTool(ctx, p.prompts.Extract.Task, map[string]interface{}{
		"Now":        now.Format("Monday, January 2, 2006"),
		"History":    formatHistory(history),
		"Transcript": transcript,
	}, extractTaskTool(), &details)
	if err != nil {
		return nil, err
	}
	details.Title = strings.TrimSpace(details.Title)
	return &details, nil
}

// ExtractTaskChange identifies which task the user means and what to change.
func (p *AnthropicProvider) ExtractTaskChange(ctx context.Context, transcript string, history []Message, now time.Time) (*TaskChange, error) {
	var change TaskChange
	err := p.callTool(ctx, p.prompts.Extract.TaskChange, map[string]interface{}{
		"Now":        now.Format("Monday, January 2, 2006"),
		"History":    formatHistory(history),
		"Transcript": transcript,
	}, extractTaskChangeTool(), &change)
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// ExtractCalendarEvent parses an event description relative to now, whose
// location is the user's time zone.
func (p *AnthropicProvider) ExtractCalendarEvent(ctx context.Context, transcript string, now time.Time) (*CalendarEventDetails, error) {
	var event CalendarEventDetails
	err := p.callTool(ctx, p.prompts.Extract.CalendarEvent, map[string]interface{}{
		"Now":        now.Format(time.RFC3339),
		"Timezone":   now.Location().String(),
		"Transcript": transcript,
	}, extractCalendarEventTool(), &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ExtractQuery turns a spoken request into a short search query.
func (p *AnthropicProvider) ExtractQuery(ctx context.Context, kind QueryKind, transcript string) (string, error) {
	data := map[string]interface{}{
		"Kind":       string(kind),
		"Transcript": transcript,
	}
	sysPrompt, err := config.RenderPrompt(p.prompts.Extract.Query.System, data)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	userPrompt, err := config.RenderPrompt(p.prompts.Extract.Query.User, data)
	if err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.lightModel,
		MaxTokens: 100,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}
	text, err := extractTextContent(resp)
	if err != nil {
		return "", err
	}
	return strings.Trim(text, "\"' \n"), nil
}

// ExtractProfileFacts finds durable personal facts in a message.
func (p *AnthropicProvider) ExtractProfileFacts(ctx context.Context, transcript string) (*ProfileFacts, error) {
	pair := config.PromptPair{
		System: p.prompts.Extract.ProfileFacts.System,
		User:   "{{.Transcript}}",
	}
	var facts ProfileFacts
	err := p.callTool(ctx, pair, map[string]interface{}{
		"Transcript": transcript,
	}, updateProfileTool(), &facts)
	if err != nil {
		return nil, err
	}
	return &facts, nil
}

// Chat answers a general conversation turn with profile, memory and document context.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var memories strings.Builder
	for _, m := range req.Memories {
		memories.WriteString("- ")
		memories.WriteString(m)
		memories.WriteByte('\n')
	}
	var documents strings.Builder
	blocks := []anthropic.ContentBlockParamUnion{}
	for _, d := range req.Documents {
		if d.IsImage() {
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfRequestImageBlock: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfBase64ImageSource: &anthropic.Base64ImageSourceParam{
							MediaType: anthropic.Base64ImageSourceMediaType(d.MediaType),
							Data:      base64.StdEncoding.EncodeToString(d.Data),
						},
					},
				},
			})
			fmt.Fprintf(&documents, "### %s\n(image attached)\n\n", d.Filename)
			continue
		}
		fmt.Fprintf(&documents, "### %s\n%s\n\n", d.Filename, truncateRunes(d.Content, maxDocumentChars))
	}

	sysPrompt, err := config.RenderPrompt(p.prompts.Chat.System, map[string]interface{}{
		"Name":      req.Name,
		"Location":  req.Location,
		"Interests": strings.Join(req.Interests, ", "),
		"Memories":  strings.TrimSpace(memories.String()),
		"Documents": strings.TrimSpace(documents.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	_, msgParams := messagesToAnthropicParams(req.History)
	blocks = append(blocks, anthropic.NewTextBlock(req.Transcript))
	msgParams = append(msgParams, newUserMessage(blocks...))

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 400,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: msgParams,
	}
	if len(req.Documents) > 0 {
		params.MaxTokens = 1024
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}
	return extractTextContent(resp)
}

// Beautify rewrites a handler's message so it reads naturally when spoken.
func (p *AnthropicProvider) Beautify(ctx context.Context, message string, intent Intent) (string, error) {
	data := map[string]interface{}{
		"Intent":  string(intent),
		"Message": message,
	}
	sysPrompt, err := config.RenderPrompt(p.prompts.Beautify.System, data)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	userPrompt, err := config.RenderPrompt(p.prompts.Beautify.User, data)
	if err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.lightModel,
		MaxTokens: 300,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}
	return extractTextContent(resp)
}

// Summarize condenses content following the instruction.
func (p *AnthropicProvider) Summarize(ctx context.Context, instruction string, content string) (string, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Summarize.System, map[string]interface{}{
		"Instruction": instruction,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 600,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(truncateRunes(content, maxDocumentChars))),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}
	return extractTextContent(resp)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
