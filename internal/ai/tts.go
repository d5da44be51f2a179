package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

const (
	elevenLabsEndpoint     = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsModel        = "eleven_turbo_v2"
	elevenLabsOutputFormat = "mp3_44100_128"

	// maxSpeechChars caps the text sent for synthesis; longer replies are
	// cut at the last sentence boundary before the limit.
	maxSpeechChars = 2500
)

// SpeechSynthesizer implements SynthesisProvider. It prefers ElevenLabs and
// falls back to OpenAI TTS when ElevenLabs is not configured or fails.
type SpeechSynthesizer struct {
	elevenLabsKey string
	openAIKey     string
	httpClient    *http.Client
	elevenBreaker *gobreaker.CircuitBreaker
	openaiBreaker *gobreaker.CircuitBreaker
}

// NewSpeechSynthesizer creates a synthesizer. Either key may be empty.
func NewSpeechSynthesizer(elevenLabsKey, openAIKey string) *SpeechSynthesizer {
	return &SpeechSynthesizer{
		elevenLabsKey: elevenLabsKey,
		openAIKey:     openAIKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		elevenBreaker: util.NewBreaker("elevenlabs"),
		openaiBreaker: util.NewBreaker("openai-tts"),
	}
}

// Synthesize converts text to MP3 audio in the given voice.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	text = trimForSpeech(text, maxSpeechChars)
	if text == "" {
		return nil, errors.New("nothing to synthesize")
	}
	voiceID = ResolveVoice(voiceID)

	if s.elevenLabsKey != "" {
		audio, err := util.Guard(s.elevenBreaker, func() ([]byte, error) {
			return s.synthesizeElevenLabs(ctx, text, voiceID)
		})
		if err == nil {
			return audio, nil
		}
		logger.Get().Warn("elevenlabs synthesis failed, falling back to openai", zap.Error(err))
	}

	if s.openAIKey == "" {
		return nil, errors.New("no speech synthesis provider configured")
	}
	return util.Guard(s.openaiBreaker, func() ([]byte, error) {
		return s.synthesizeOpenAI(ctx, text, voiceID)
	})
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (s *SpeechSynthesizer) synthesizeElevenLabs(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?output_format=%s", elevenLabsEndpoint, voiceID, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.elevenLabsKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs API returned status %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned empty audio")
	}
	return audio, nil
}

func (s *SpeechSynthesizer) synthesizeOpenAI(ctx context.Context, text, voiceID string) ([]byte, error) {
	voice := openai.VoiceNova
	if v, ok := LookupVoice(voiceID); ok {
		voice = v.openaiVoice
	}

	client := openai.NewClient(s.openAIKey)
	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI TTS error: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAI TTS audio: %w", err)
	}
	return audio, nil
}

// trimForSpeech strips markdown symbols and cuts text to at most limit runes,
// preferring a sentence boundary.
func trimForSpeech(text string, limit int) string {
	text = strings.NewReplacer("**", "", "__", "", "#", "", "`", "").Replace(text)
	text = strings.TrimSpace(text)

	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	cut := string(r[:limit])
	if i := strings.LastIndexAny(cut, ".!?"); i > limit/2 {
		return cut[:i+1]
	}
	return cut
}
