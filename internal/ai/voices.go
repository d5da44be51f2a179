package ai

import openai "github.com/sashabaranov/go-openai"

// DefaultVoiceID is Rachel, used when neither the request nor the profile
// names a voice.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// Voice is one selectable synthesis voice.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	openaiVoice openai.SpeechVoice
}

// Voices is the catalog offered to clients, keyed by ElevenLabs voice id.
var Voices = []Voice{
	{ID: DefaultVoiceID, Name: "Rachel", Description: "Calm, natural female voice", openaiVoice: openai.VoiceNova},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Description: "Strong, confident female voice", openaiVoice: openai.VoiceShimmer},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Description: "Soft, warm female voice", openaiVoice: openai.VoiceShimmer},
	{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Description: "Well-rounded male voice", openaiVoice: openai.VoiceEcho},
	{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold", Description: "Crisp, deep male voice", openaiVoice: openai.VoiceOnyx},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Description: "Deep, narrative male voice", openaiVoice: openai.VoiceFable},
}

// LookupVoice finds a catalog voice by id.
func LookupVoice(id string) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// IsKnownVoice reports whether id is in the catalog.
func IsKnownVoice(id string) bool {
	_, ok := LookupVoice(id)
	return ok
}

// ResolveVoice picks the first known voice among the candidates, falling back
// to DefaultVoiceID.
func ResolveVoice(candidates ...string) string {
	for _, id := range candidates {
		if IsKnownVoice(id) {
			return id
		}
	}
	return DefaultVoiceID
}
