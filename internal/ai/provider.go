package ai

import (
	"context"
	"strings"
	"time"
)

// TextProvider handles all text/reasoning tasks (Claude).
type TextProvider interface {
	ClassifyIntent(ctx context.Context, transcript string, history []Message) (*IntentResult, error)
	ExtractTask(ctx context.Context, transcript string, history []Message, now time.Time) (*TaskDetails, error)
	ExtractTaskChange(ctx context.Context, transcript string, history []Message, now time.Time) (*TaskChange, error)
	ExtractCalendarEvent(ctx context.Context, transcript string, now time.Time) (*CalendarEventDetails, error)
	ExtractQuery(ctx context.Context, kind QueryKind, transcript string) (string, error)
	ExtractProfileFacts(ctx context.Context, transcript string) (*ProfileFacts, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
	Beautify(ctx context.Context, message string, intent Intent) (string, error)
	Summarize(ctx context.Context, instruction string, content string) (string, error)
}

// SpeechProvider handles speech-to-text (Whisper).
type SpeechProvider interface {
	TranscribeAudio(ctx context.Context, audioData []byte, filename string) (string, error)
}

// SynthesisProvider handles text-to-speech.
type SynthesisProvider interface {
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}

// EmbeddingProvider handles vector embeddings.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SearchProvider handles web search (Brave + Google fallback).
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// QueryKind selects what ExtractQuery builds a query for.
type QueryKind string

// QueryKind values.
const (
	QueryEmail       QueryKind = "email"
	QueryNews        QueryKind = "news"
	QueryRestaurants QueryKind = "restaurants"
	QueryLearn       QueryKind = "learn"
	QueryMemory      QueryKind = "memory"
	QueryWeather     QueryKind = "weather"
	QueryCalendar    QueryKind = "calendar"
)

// TaskDetails is the structured output of task extraction.
type TaskDetails struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date"`
}

// TaskChange describes an edit to an existing task.
type TaskChange struct {
	TaskQuery   string `json:"task_query"`
	NewTitle    string `json:"new_title"`
	NewPriority string `json:"new_priority"`
	NewDueDate  string `json:"new_due_date"`
	NewStatus   string `json:"new_status"`
}

// CalendarEventDetails is the structured output of calendar extraction.
type CalendarEventDetails struct {
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location"`
	Query    string `json:"query"`
}

// ProfileFacts is a partial profile update inferred from a message.
type ProfileFacts struct {
	Name              string   `json:"name"`
	Location          string   `json:"location"`
	DietaryPreference string   `json:"dietary_preference"`
	LearningLevel     string   `json:"learning_level"`
	Interests         []string `json:"interests"`
}

// IsEmpty reports whether no fact was found.
func (f *ProfileFacts) IsEmpty() bool {
	return f == nil || (f.Name == "" && f.Location == "" && f.DietaryPreference == "" &&
		f.LearningLevel == "" && len(f.Interests) == 0)
}

// ChatRequest holds everything the general conversation prompt needs.
type ChatRequest struct {
	Transcript string
	History    []Message
	Name       string
	Location   string
	Interests  []string
	Memories   []string
	Documents  []Document
}

// Document is an uploaded file passed to the chat prompt. Text files carry
// Content; images carry Data and their MediaType.
type Document struct {
	Filename  string
	MediaType string
	Content   string
	Data      []byte
}

// IsImage reports whether the document is an image attachment.
func (d Document) IsImage() bool {
	return strings.HasPrefix(d.MediaType, "image/") && len(d.Data) > 0
}

// SearchResult is a single web search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}
