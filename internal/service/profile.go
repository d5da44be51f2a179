package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/asaskevich/govalidator"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
	"go.uber.org/zap"
)

// ProfileService is the business logic layer for user profiles.
type ProfileService struct {
	Repo         repository.ProfileRepo
	Integrations repository.IntegrationRepo
	TextProvider ai.TextProvider
}

// NewProfileService creates a new ProfileService.
func NewProfileService(repo repository.ProfileRepo, integrations repository.IntegrationRepo, textProvider ai.TextProvider) *ProfileService {
	return &ProfileService{
		Repo:         repo,
		Integrations: integrations,
		TextProvider: textProvider,
	}
}

// ProfileResponse is the response object for a profile.
type ProfileResponse struct {
	UserID            string          `json:"user_id"`
	Name              *string         `json:"name"`
	Email             *string         `json:"email"`
	Location          *string         `json:"location"`
	Timezone          string          `json:"timezone"`
	DietaryPreference *string         `json:"dietary_preference"`
	LearningLevel     *string         `json:"learning_level"`
	PreferredVoice    string          `json:"preferred_voice"`
	Interests         []string        `json:"interests"`
	Integrations      map[string]bool `json:"integrations"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProfileUpdate is a partial profile update. Nil fields are left alone.
type ProfileUpdate struct {
	Name              *string   `json:"name"`
	Email             *string   `json:"email"`
	Location          *string   `json:"location"`
	Timezone          *string   `json:"timezone"`
	DietaryPreference *string   `json:"dietary_preference"`
	LearningLevel     *string   `json:"learning_level"`
	PreferredVoice    *string   `json:"preferred_voice"`
	Interests         *[]string `json:"interests"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Location == nil && u.Timezone == nil &&
		u.DietaryPreference == nil && u.LearningLevel == nil && u.PreferredVoice == nil &&
		u.Interests == nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToProfileResponse converts a profile into its API shape. connected lists
// the providers the user has linked.
func ToProfileResponse(p *models.Profile, connected []models.IntegrationProvider) ProfileResponse {
	flags := make(map[string]bool, len(models.AllProviders))
	for _, provider := range models.AllProviders {
		flags[string(provider)] = false
	}
	for _, provider := range connected {
		flags[string(provider)] = true
	}
	interests := []string(p.Interests)
	if interests == nil {
		interests = []string{}
	}
	voice := p.PreferredVoice
	if voice == "" {
		voice = ai.DefaultVoiceID
	}
	return ProfileResponse{
		UserID:            p.UserID,
		Name:              nilIfEmpty(p.Name),
		Email:             nilIfEmpty(p.Email),
		Location:          nilIfEmpty(p.Location),
		Timezone:          p.Timezone,
		DietaryPreference: nilIfEmpty(p.DietaryPreference),
		LearningLevel:     nilIfEmpty(p.LearningLevel),
		PreferredVoice:    voice,
		Interests:         interests,
		Integrations:      flags,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// GetOrCreate returns the user's profile, creating one with defaults on first
// access.
func (s *ProfileService) GetOrCreate(userID string) (*models.Profile, error) {
	profile, err := s.Repo.GetProfile(userID)
	if err == nil {
		return profile, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	profile = &models.Profile{
		UserID:         userID,
		Timezone:       models.DefaultTimezone,
		PreferredVoice: ai.DefaultVoiceID,
	}
	if err := s.Repo.CreateProfile(profile); err != nil {
		// Another request created it first.
		if errors.Is(err, repository.ErrProfileExists) {
			return s.Repo.GetProfile(userID)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	logger.Get().Info("created profile", zap.String("user_id", userID))
	return profile, nil
}

// Response builds the API shape for the user's profile including integration flags.
func (s *ProfileService) Response(profile *models.Profile) (ProfileResponse, error) {
	var connected []models.IntegrationProvider
	if s.Integrations != nil {
		var err error
		connected, err = s.Integrations.ListConnected(profile.UserID)
		if err != nil {
			return ProfileResponse{}, fmt.Errorf("list integrations: %w", err)
		}
	}
	return ToProfileResponse(profile, connected), nil
}

// Update applies a partial update to the user's profile.
func (s *ProfileService) Update(userID string, update ProfileUpdate) (*models.Profile, error) {
	if update.IsEmpty() {
		return nil, userErrorf(CodeInvalidInput, "no fields to update")
	}
	profile, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		profile.Name = name
	}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email != "" && !govalidator.IsEmail(email) {
			return nil, userErrorf(CodeInvalidInput, "invalid email format")
		}
		profile.Email = email
	}
	if update.Location != nil {
		profile.Location = strings.TrimSpace(*update.Location)
	}
	if update.Timezone != nil {
		tz := strings.TrimSpace(*update.Timezone)
		if _, err := time.LoadLocation(tz); err != nil || tz == "" {
			return nil, userErrorf(CodeInvalidInput, "unknown timezone %q", tz)
		}
		profile.Timezone = tz
	}
	if update.DietaryPreference != nil {
		profile.DietaryPreference = strings.TrimSpace(*update.DietaryPreference)
	}
	if update.LearningLevel != nil {
		profile.LearningLevel = strings.TrimSpace(*update.LearningLevel)
	}
	if update.PreferredVoice != nil {
		voice := strings.TrimSpace(*update.PreferredVoice)
		if !ai.IsKnownVoice(voice) {
			return nil, userErrorf(CodeInvalidInput, "unknown voice id %q", voice)
		}
		profile.PreferredVoice = voice
	}
	if update.Interests != nil {
		profile.Interests = normalizeInterests(*update.Interests)
	}

	if err := s.Repo.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// ClearField resets one profile field.
func (s *ProfileService) ClearField(userID string, field string) error {
	f := models.ProfileField(strings.ToLower(strings.TrimSpace(field)))
	if !f.IsClearable() {
		return userErrorf(CodeInvalidInput, "field %q cannot be cleared", field)
	}
	if _, err := s.GetOrCreate(userID); err != nil {
		return err
	}
	return s.Repo.ClearProfileField(userID, f)
}

// ApplyFacts merges facts the assistant picked up from conversation into the
// profile. Existing interests are kept and new ones appended.
func (s *ProfileService) ApplyFacts(userID string, facts *ai.ProfileFacts) (*models.Profile, bool, error) {
	profile, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, false, err
	}
	if facts.IsEmpty() {
		return profile, false, nil
	}

	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	if name := strings.TrimSpace(facts.Name); name != "" && validateName(name) == nil {
		set(&profile.Name, name)
	}
	set(&profile.Location, facts.Location)
	set(&profile.DietaryPreference, facts.DietaryPreference)
	set(&profile.LearningLevel, facts.LearningLevel)
	for _, interest := range normalizeInterests(facts.Interests) {
		if !profile.HasInterest(interest) {
			profile.Interests = append(profile.Interests, interest)
			changed = true
		}
	}

	if !changed {
		return profile, false, nil
	}
	if err := s.Repo.SaveProfile(profile); err != nil {
		return nil, false, fmt.Errorf("save profile: %w", err)
	}
	return profile, true, nil
}

// ExtractFromText runs fact extraction over text and applies what was found.
func (s *ProfileService) ExtractFromText(ctx context.Context, userID, text string) (*models.Profile, *ai.ProfileFacts, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, userErrorf(CodeInvalidInput, "text is required")
	}
	if s.TextProvider == nil {
		return nil, nil, errors.New("AI provider is not configured")
	}
	facts, err := s.TextProvider.ExtractProfileFacts(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("extract profile facts: %w", err)
	}
	profile, _, err := s.ApplyFacts(userID, facts)
	if err != nil {
		return nil, nil, err
	}
	return profile, facts, nil
}

// Voices lists the available synthesis voices.
func (s *ProfileService) Voices() []ai.Voice {
	return ai.Voices
}

func validateName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > 100 {
		return userErrorf(CodeInvalidInput, "name must be at most 100 characters")
	}
	profanityDetector := goaway.NewProfanityDetector().WithSanitizeLeetSpeak(true).WithSanitizeSpecialCharacters(true).WithSanitizeAccents(false)
	if profanityDetector.IsProfane(name) {
		return userErrorf(CodeInvalidInput, "name contains inappropriate language")
	}
	return nil
}

func normalizeInterests(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, i := range in {
		i = strings.ToLower(strings.TrimSpace(i))
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}
