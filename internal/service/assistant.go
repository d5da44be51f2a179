package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/integrations"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/metrics"
	"github.com/windoze95/manas-api/internal/models"
	"go.uber.org/zap"
)

const (
	// minBeautifyLength is the shortest handler message worth rewriting.
	minBeautifyLength = 30

	profileExtractionTimeout = 30 * time.Second
)

// Fixed replies that do not come from a handler.
const (
	msgDidNotCatch   = "Sorry, I didn't catch that. Could you try again?"
	msgClarify       = "I'm not sure I understood. Could you rephrase that or tell me a bit more?"
	msgAudioFailed   = "Sorry, I had trouble hearing that. Please try again."
	msgHandlerFailed = "Sorry, something went wrong while handling that. Please try again."
	msgNotConfigured = "Sorry, that feature isn't available right now."
)

// WeatherAPI looks up places and current conditions.
type WeatherAPI interface {
	Geocode(ctx context.Context, name string) (*integrations.Place, error)
	Current(ctx context.Context, place integrations.Place) (*integrations.Weather, error)
}

// NewsAPI fetches headlines.
type NewsAPI interface {
	Headlines(ctx context.Context, query string) ([]integrations.Article, error)
}

// RestaurantAPI searches for places to eat.
type RestaurantAPI interface {
	Search(ctx context.Context, term, location string, near integrations.Place, limit int) ([]integrations.Business, error)
}

// Request is one assistant turn as submitted by a client.
type Request struct {
	UserID        string
	Transcript    string
	Audio         []byte
	AudioFilename string
	VoiceID       string
	AttachmentIDs []string
	WantAudio     bool
}

// Envelope is the uniform response for every assistant turn.
type Envelope struct {
	Success     bool        `json:"success"`
	Transcript  string      `json:"transcript,omitempty"`
	AIResponse  string      `json:"ai_response"`
	Intent      string      `json:"intent,omitempty"`
	Confidence  *float64    `json:"confidence,omitempty"`
	CardType    string      `json:"card_type"`
	Data        interface{} `json:"data,omitempty"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
}

// Turn carries everything a handler may need about the current request.
type Turn struct {
	UserID      string
	Transcript  string
	Intent      ai.Intent
	Confidence  float64
	Profile     *models.Profile
	History     []ai.Message
	Attachments []models.Attachment
	Now         time.Time
}

// Location is the user's time zone, or UTC when no profile was loaded.
func (t *Turn) Location() *time.Location {
	if t.Profile == nil {
		return time.UTC
	}
	return t.Profile.TimeLocation()
}

// LocalNow is the current time in the user's time zone.
func (t *Turn) LocalNow() time.Time {
	return t.Now.In(t.Location())
}

// HandlerResult is what a tool handler produces. Type overrides the intent's
// card type when set.
type HandlerResult struct {
	Type    string
	Message string
	Data    map[string]interface{}
}

type intentHandler func(ctx context.Context, turn *Turn) (*HandlerResult, error)

// AssistantDeps groups the collaborators of AssistantService. Optional
// clients may be nil; their intents then answer that the feature is not
// available.
type AssistantDeps struct {
	Text        ai.TextProvider
	Speech      ai.SpeechProvider
	Synthesis   ai.SynthesisProvider
	Search      ai.SearchProvider
	Tasks       *TaskService
	Profiles    *ProfileService
	Memories    *MemoryService
	Files       *FileService
	Connectors  Connectors
	Weather     WeatherAPI
	News        NewsAPI
	Restaurants RestaurantAPI
	History     cache.HistoryStore
	Cache       cache.Cache
}

// AssistantService turns a transcript into a response envelope: it classifies
// intent, dispatches to a tool handler and optionally synthesizes speech.
type AssistantService struct {
	AssistantDeps

	handlers map[ai.Intent]intentHandler
	now      func() time.Time
	bg       sync.WaitGroup
}

// NewAssistantService creates a new AssistantService. It fails if any intent
// in ai.AllIntents lacks a handler.
func NewAssistantService(deps AssistantDeps) (*AssistantService, error) {
	if deps.Text == nil {
		return nil, errors.New("assistant requires a text provider")
	}
	if deps.History == nil {
		deps.History = cache.NewMemoryHistory()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache()
	}
	s := &AssistantService{AssistantDeps: deps, now: time.Now}
	s.handlers = map[ai.Intent]intentHandler{
		ai.IntentGetWeather:          s.handleWeather,
		ai.IntentAddTask:             s.handleAddTask,
		ai.IntentCompleteTask:        s.handleCompleteTask,
		ai.IntentUpdateTask:          s.handleUpdateTask,
		ai.IntentDeleteTask:          s.handleDeleteTask,
		ai.IntentListTasks:           s.handleListTasks,
		ai.IntentGetTaskReminders:    s.handleTaskReminders,
		ai.IntentDailySummary:        s.handleDailySummary,
		ai.IntentCreateCalendarEvent: s.handleCreateEvent,
		ai.IntentUpdateCalendarEvent: s.handleUpdateEvent,
		ai.IntentDeleteCalendarEvent: s.handleDeleteEvent,
		ai.IntentListCalendarEvents:  s.handleListEvents,
		ai.IntentCheckEmail:          s.handleCheckEmail,
		ai.IntentSearchEmail:         s.handleSearchEmail,
		ai.IntentReadEmail:           s.handleReadEmail,
		ai.IntentAnalyzeEmail:        s.handleAnalyzeEmail,
		ai.IntentSearchRestaurants:   s.handleRestaurants,
		ai.IntentRememberThis:        s.handleRemember,
		ai.IntentRecallMemory:        s.handleRecall,
		ai.IntentForgetThis:          s.handleForget,
		ai.IntentLearn:               s.handleLearn,
		ai.IntentGetNews:             s.handleNews,
		ai.IntentDocAnalysis:         s.handleDocAnalysis,
		ai.IntentGeneralChat:         s.handleGeneralChat,
	}
	for _, intent := range ai.AllIntents {
		if _, ok := s.handlers[intent]; !ok {
			return nil, fmt.Errorf("no handler registered for intent %s", intent)
		}
	}
	return s, nil
}

// Wait blocks until background work started by earlier turns has finished.
func (s *AssistantService) Wait() {
	s.bg.Wait()
}

// Process runs one assistant turn. Failures inside the turn are reported in
// the envelope; an error is returned only when ctx is done.
func (s *AssistantService) Process(ctx context.Context, req Request) (*Envelope, error) {
	start := time.Now()
	log := logger.With(zap.String("user_id", req.UserID))

	transcript := strings.TrimSpace(req.Transcript)
	if len(req.Audio) > 0 {
		if s.Speech == nil {
			return s.finish(ctx, req, nil, fail(msgAudioFailed, ""), start), nil
		}
		text, err := s.Speech.TranscribeAudio(ctx, req.Audio, req.AudioFilename)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("transcription failed", zap.Error(err))
			return s.finish(ctx, req, nil, fail(msgAudioFailed, err.Error()), start), nil
		}
		transcript = strings.TrimSpace(text)
	}

	attachments := s.resolveAttachments(req)
	if transcript == "" && len(attachments) == 0 {
		env := &Envelope{Success: true, AIResponse: msgDidNotCatch, CardType: ai.CardClarification}
		return s.finish(ctx, req, nil, env, start), nil
	}

	turn := &Turn{
		UserID:      req.UserID,
		Transcript:  transcript,
		Attachments: attachments,
		Now:         s.now(),
	}
	if s.Profiles != nil {
		profile, err := s.Profiles.GetOrCreate(req.UserID)
		if err != nil {
			log.Warn("failed to load profile", zap.Error(err))
		}
		turn.Profile = profile
	}
	history, err := s.History.Recent(ctx, req.UserID)
	if err != nil {
		log.Warn("failed to load history", zap.Error(err))
	}
	turn.History = history

	if len(attachments) > 0 {
		turn.Intent, turn.Confidence = ai.IntentDocAnalysis, 1.0
	} else {
		result, err := s.Text.ClassifyIntent(ctx, transcript, history)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("intent classification failed, falling back to chat", zap.Error(err))
			turn.Intent, turn.Confidence = ai.IntentGeneralChat, 0
		case result.Confidence < ai.ConfidenceThreshold:
			log.Info("low confidence classification",
				zap.String("intent", result.Intent.String()),
				zap.Float64("confidence", result.Confidence))
			env := &Envelope{
				Success:    true,
				Transcript: transcript,
				AIResponse: msgClarify,
				Intent:     result.Intent.String(),
				Confidence: floatPtr(result.Confidence),
				CardType:   ai.CardClarification,
			}
			return s.finish(ctx, req, turn, env, start), nil
		default:
			turn.Intent, turn.Confidence = result.Intent, result.Confidence
		}
	}

	env := s.dispatch(ctx, turn)
	if len(attachments) > 0 && s.Files != nil {
		s.Files.Discard(context.WithoutCancel(ctx), attachments)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := s.History.Append(ctx, req.UserID,
		ai.Message{Role: "user", Content: transcript},
		ai.Message{Role: "assistant", Content: env.AIResponse},
	); err != nil {
		log.Warn("failed to append history", zap.Error(err))
	}
	s.extractProfileFacts(req.UserID, transcript)

	return s.finish(ctx, req, turn, env, start), nil
}

// dispatch runs the handler for the turn's intent and builds the envelope.
func (s *AssistantService) dispatch(ctx context.Context, turn *Turn) *Envelope {
	log := logger.With(zap.String("user_id", turn.UserID), zap.String("intent", turn.Intent.String()))
	handler, ok := s.handlers[turn.Intent]
	if !ok {
		handler = s.handlers[ai.IntentGeneralChat]
	}

	env := &Envelope{
		Transcript: turn.Transcript,
		Intent:     turn.Intent.String(),
		Confidence: floatPtr(turn.Confidence),
		CardType:   turn.Intent.CardType(),
	}

	result, err := handler(ctx, turn)
	if err != nil {
		env.Success = false
		msg := apologyFor(turn.Intent)
		code := "handler_error"
		if ue, ok := AsUserError(err); ok {
			msg, code = ue.Message, ue.Code
		} else if errors.Is(err, ErrNotConnected) {
			msg, code = notConnectedMessage(turn.Intent), CodeNotConnected
		} else if errors.Is(err, integrations.ErrNotConfigured) {
			msg, code = msgNotConfigured, "not_configured"
		} else {
			log.Error("intent handler failed", zap.Error(err))
		}
		// Internal error text stays in the logs.
		env.AIResponse = msg
		env.Data = map[string]interface{}{"error": msg, "code": code}
		return env
	}

	env.Success = true
	if result.Type != "" {
		env.CardType = result.Type
	}
	if len(result.Data) > 0 {
		env.Data = result.Data
	}
	env.AIResponse = s.beautify(ctx, turn.Intent, result.Message)
	return env
}

// beautify rewrites longer handler output for speech. The original message
// is kept on any failure.
func (s *AssistantService) beautify(ctx context.Context, intent ai.Intent, message string) string {
	if len(message) < minBeautifyLength || intent == ai.IntentGeneralChat || intent == ai.IntentDocAnalysis {
		return message
	}
	out, err := s.Text.Beautify(ctx, message, intent)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			logger.Get().Debug("beautify skipped", zap.Error(err))
		}
		return message
	}
	return out
}

// finish attaches synthesized audio when asked for and records metrics.
func (s *AssistantService) finish(ctx context.Context, req Request, turn *Turn, env *Envelope, start time.Time) *Envelope {
	if req.WantAudio && s.Synthesis != nil && env.AIResponse != "" {
		var preferred string
		if turn != nil && turn.Profile != nil {
			preferred = turn.Profile.PreferredVoice
		}
		voice := ai.ResolveVoice(req.VoiceID, preferred)
		audio, err := s.Synthesis.Synthesize(ctx, env.AIResponse, voice)
		if err != nil {
			metrics.SynthesisFailures.Inc()
			logger.Get().Warn("speech synthesis failed, returning text only",
				zap.String("user_id", req.UserID), zap.Error(err))
		} else if len(audio) > 0 {
			env.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
		}
	}

	intent := env.Intent
	if intent == "" {
		intent = "none"
	}
	metrics.ObserveTurn(intent, env.Success, time.Since(start))
	return env
}

func (s *AssistantService) resolveAttachments(req Request) []models.Attachment {
	if len(req.AttachmentIDs) == 0 || s.Files == nil {
		return nil
	}
	attachments, err := s.Files.Resolve(req.UserID, req.AttachmentIDs)
	if err != nil {
		logger.Get().Warn("failed to resolve attachments", zap.String("user_id", req.UserID), zap.Error(err))
		return nil
	}
	return attachments
}

// extractProfileFacts learns profile facts from the transcript in the
// background. It outlives the request.
func (s *AssistantService) extractProfileFacts(userID, transcript string) {
	if s.Profiles == nil || len(strings.Fields(transcript)) < 3 {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), profileExtractionTimeout)
		defer cancel()

		facts, err := s.Text.ExtractProfileFacts(ctx, transcript)
		if err != nil {
			logger.Get().Warn("profile extraction failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if _, changed, err := s.Profiles.ApplyFacts(userID, facts); err != nil {
			logger.Get().Warn("failed to apply profile facts", zap.String("user_id", userID), zap.Error(err))
		} else if changed {
			logger.Get().Info("profile updated from conversation", zap.String("user_id", userID))
		}
	}()
}

func fail(message, detail string) *Envelope {
	env := &Envelope{Success: false, AIResponse: message, CardType: ai.IntentGeneralChat.CardType()}
	if detail != "" {
		env.Data = map[string]interface{}{"error": detail}
	}
	return env
}

func floatPtr(f float64) *float64 {
	return &f
}

// apologyFor is the generic failure message for an intent.
func apologyFor(intent ai.Intent) string {
	switch intent {
	case ai.IntentGetWeather:
		return "Sorry, I couldn't get the weather right now."
	case ai.IntentAddTask:
		return "I had trouble creating that task."
	case ai.IntentCompleteTask:
		return "I had trouble completing that task."
	case ai.IntentUpdateTask:
		return "I had trouble updating that task."
	case ai.IntentDeleteTask:
		return "I had trouble deleting that task."
	case ai.IntentListTasks:
		return "I had trouble listing your tasks."
	case ai.IntentGetTaskReminders:
		return "I had trouble getting your reminders."
	case ai.IntentDailySummary:
		return "I had trouble putting together your daily summary."
	case ai.IntentCreateCalendarEvent, ai.IntentUpdateCalendarEvent,
		ai.IntentDeleteCalendarEvent, ai.IntentListCalendarEvents:
		return "I had trouble accessing your calendar."
	case ai.IntentCheckEmail, ai.IntentSearchEmail, ai.IntentReadEmail, ai.IntentAnalyzeEmail:
		return "I had trouble accessing your email."
	case ai.IntentSearchRestaurants:
		return "I had trouble finding restaurants right now."
	case ai.IntentRememberThis, ai.IntentRecallMemory, ai.IntentForgetThis:
		return "I'm having trouble with my memory right now."
	case ai.IntentLearn:
		return "I had trouble looking that up."
	case ai.IntentGetNews:
		return "I had trouble getting the news right now."
	case ai.IntentDocAnalysis:
		return "I had trouble reading that document."
	default:
		return msgHandlerFailed
	}
}

func notConnectedMessage(intent ai.Intent) string {
	switch intent.CardType() {
	case "email", "email_search", "email_thread", "email_analysis":
		return "Your email isn't connected yet. Connect Gmail in settings and try again."
	default:
		return "Your calendar isn't connected yet. Connect Google Calendar in settings and try again."
	}
}
