package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/integrations"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const oauthStateTTL = 10 * time.Minute

// ErrNotConnected is returned when a provider the user has not linked is used.
var ErrNotConnected = errors.New("integration not connected")

// ErrInvalidOAuthState is returned when a callback's state is unknown or expired.
var ErrInvalidOAuthState = errors.New("invalid or expired oauth state")

// CalendarAPI is the calendar surface the assistant uses.
type CalendarAPI interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]integrations.CalendarEvent, error)
	CreateEvent(ctx context.Context, summary, location string, start, end time.Time) (*integrations.CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID, summary string, start, end time.Time) (*integrations.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// MailAPI is the mailbox surface the assistant uses.
type MailAPI interface {
	ListMessages(ctx context.Context, query string, max int) ([]integrations.Email, error)
	UnreadCount(ctx context.Context) (int, error)
	GetThread(ctx context.Context, threadID string) ([]integrations.Email, error)
}

// FitnessAPI is the activity tracker surface the assistant uses.
type FitnessAPI interface {
	DailyActivity(ctx context.Context, day time.Time) (*integrations.Activity, error)
}

// Connectors hands out provider clients authorized as a given user. Each
// returns ErrNotConnected when the user has not linked the provider.
type Connectors interface {
	Calendar(ctx context.Context, userID string) (CalendarAPI, error)
	Mail(ctx context.Context, userID string) (MailAPI, error)
	Fitness(ctx context.Context, userID string) (FitnessAPI, error)
}

// IntegrationService runs the OAuth connect flow and stores sealed tokens.
type IntegrationService struct {
	Cfg   *config.Config
	Repo  repository.IntegrationRepo
	Cache cache.Cache

	oauth map[models.IntegrationProvider]*oauth2.Config
	key   []byte
}

type oauthState struct {
	UserID   string                     `json:"user_id"`
	Provider models.IntegrationProvider `json:"provider"`
	Verifier string                     `json:"verifier"`
}

// NewIntegrationService creates a new IntegrationService. Providers whose
// client credentials are missing cannot be connected.
func NewIntegrationService(cfg *config.Config, repo repository.IntegrationRepo, c cache.Cache) (*IntegrationService, error) {
	key, err := deriveTokenKey(cfg.EnvVars.JwtSecretKey)
	if err != nil {
		return nil, err
	}

	redirect := strings.TrimRight(cfg.EnvVars.PublicURL, "/") + "/v1/auth/callback"
	oauth := make(map[models.IntegrationProvider]*oauth2.Config)
	if cfg.GoogleOAuthEnabled() {
		oauth[models.ProviderCalendar] = &oauth2.Config{
			ClientID:     cfg.EnvVars.GoogleClientID,
			ClientSecret: cfg.EnvVars.GoogleClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
			Endpoint:     endpoints.Google,
		}
		oauth[models.ProviderEmail] = &oauth2.Config{
			ClientID:     cfg.EnvVars.GoogleClientID,
			ClientSecret: cfg.EnvVars.GoogleClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
			Endpoint:     endpoints.Google,
		}
	}
	if cfg.FitbitOAuthEnabled() {
		oauth[models.ProviderFitness] = &oauth2.Config{
			ClientID:     cfg.EnvVars.FitbitClientID,
			ClientSecret: cfg.EnvVars.FitbitClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"activity", "heartrate", "profile"},
			Endpoint:     endpoints.Fitbit,
		}
	}

	return &IntegrationService{
		Cfg:   cfg,
		Repo:  repo,
		Cache: c,
		oauth: oauth,
		key:   key,
	}, nil
}

// deriveTokenKey stretches the server secret into the token sealing key.
func deriveTokenKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("token encryption requires a secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("manas-api oauth tokens"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

// ParseProvider validates a provider name from a URL.
func ParseProvider(name string) (models.IntegrationProvider, error) {
	p := models.IntegrationProvider(strings.ToLower(strings.TrimSpace(name)))
	if !p.IsValid() {
		return "", userErrorf(CodeInvalidInput, "unknown provider %q", name)
	}
	return p, nil
}

func (s *IntegrationService) config(provider models.IntegrationProvider) (*oauth2.Config, error) {
	cfg, ok := s.oauth[provider]
	if !ok {
		return nil, userErrorf(CodeNotConnected, "%s integration is not configured on this server", provider)
	}
	return cfg, nil
}

// ConnectURL starts the OAuth flow and returns the provider's consent URL.
func (s *IntegrationService) ConnectURL(ctx context.Context, userID string, provider models.IntegrationProvider) (string, error) {
	cfg, err := s.config(provider)
	if err != nil {
		return "", err
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	if err := cache.SetJSON(ctx, s.Cache, oauthStateKey(state), oauthState{
		UserID:   userID,
		Provider: provider,
		Verifier: verifier,
	}, oauthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	), nil
}

func oauthStateKey(state string) string {
	return "oauth_state:" + state
}

// Callback completes the OAuth flow: it checks the state, exchanges the code
// and stores the sealed token.
func (s *IntegrationService) Callback(ctx context.Context, code, state string) (string, models.IntegrationProvider, error) {
	if code == "" || state == "" {
		return "", "", userErrorf(CodeInvalidInput, "code and state are required")
	}

	var st oauthState
	found, err := cache.GetJSON(ctx, s.Cache, oauthStateKey(state), &st)
	if err != nil {
		return "", "", fmt.Errorf("load oauth state: %w", err)
	}
	if !found {
		return "", "", ErrInvalidOAuthState
	}
	if err := s.Cache.Delete(ctx, oauthStateKey(state)); err != nil {
		logger.Get().Warn("failed to delete oauth state", zap.Error(err))
	}

	cfg, err := s.config(st.Provider)
	if err != nil {
		return "", "", err
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(st.Verifier))
	if err != nil {
		return "", "", fmt.Errorf("exchange oauth code: %w", err)
	}
	if err := s.saveToken(st.UserID, st.Provider, cfg.Scopes, token); err != nil {
		return "", "", err
	}

	logger.Get().Info("integration connected",
		zap.String("user_id", st.UserID),
		zap.String("provider", string(st.Provider)))
	return st.UserID, st.Provider, nil
}

// IsConnected reports whether the user has linked the provider.
func (s *IntegrationService) IsConnected(userID string, provider models.IntegrationProvider) (bool, error) {
	_, err := s.Repo.GetIntegration(userID, provider)
	if err == nil {
		return true, nil
	}
	if repository.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Disconnect forgets the user's token for the provider.
func (s *IntegrationService) Disconnect(userID string, provider models.IntegrationProvider) error {
	return s.Repo.DeleteIntegration(userID, provider)
}

func (s *IntegrationService) saveToken(userID string, provider models.IntegrationProvider, scopes []string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	sealed, err := s.seal(raw)
	if err != nil {
		return err
	}

	integration := &models.Integration{
		UserID:         userID,
		Provider:       provider,
		EncryptedToken: sealed,
		Scopes:         scopes,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		integration.ExpiresAt = &expiry
	}
	return s.Repo.UpsertIntegration(integration)
}

func (s *IntegrationService) loadToken(userID string, provider models.IntegrationProvider) (*oauth2.Token, error) {
	integration, err := s.Repo.GetIntegration(userID, provider)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	raw, err := s.open(integration.EncryptedToken)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}

// seal encrypts plaintext with a random nonce prefixed to the ciphertext.
func (s *IntegrationService) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *IntegrationService) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed token is too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open token: %w", err)
	}
	return plaintext, nil
}

// persistingTokenSource writes refreshed tokens back to the store.
type persistingTokenSource struct {
	base     oauth2.TokenSource
	svc      *IntegrationService
	userID   string
	provider models.IntegrationProvider
	scopes   []string
	last     string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if err := p.svc.saveToken(p.userID, p.provider, p.scopes, token); err != nil {
			logger.Get().Warn("failed to persist refreshed token",
				zap.String("user_id", p.userID),
				zap.String("provider", string(p.provider)),
				zap.Error(err))
		}
	}
	return token, nil
}

// HTTPClient returns an HTTP client that authorizes requests as the user.
func (s *IntegrationService) HTTPClient(ctx context.Context, userID string, provider models.IntegrationProvider) (*http.Client, error) {
	cfg, ok := s.oauth[provider]
	if !ok {
		return nil, ErrNotConnected
	}
	token, err := s.loadToken(userID, provider)
	if err != nil {
		return nil, err
	}
	ts := &persistingTokenSource{
		base:     cfg.TokenSource(ctx, token),
		svc:      s,
		userID:   userID,
		provider: provider,
		scopes:   cfg.Scopes,
		last:     token.AccessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, ts))
	client.Timeout = 15 * time.Second
	return client, nil
}

// Calendar returns a calendar client for the user.
func (s *IntegrationService) Calendar(ctx context.Context, userID string) (CalendarAPI, error) {
	hc, err := s.HTTPClient(ctx, userID, models.ProviderCalendar)
	if err != nil {
		return nil, err
	}
	cc, err := integrations.NewCalendarClient(ctx, hc)
	if err != nil {
		return nil, err
	}
	return cc, nil
}

// Mail returns a mailbox client for the user.
func (s *IntegrationService) Mail(ctx context.Context, userID string) (MailAPI, error) {
	hc, err := s.HTTPClient(ctx, userID, models.ProviderEmail)
	if err != nil {
		return nil, err
	}
	gc, err := integrations.NewGmailClient(ctx, hc)
	if err != nil {
		return nil, err
	}
	return gc, nil
}

// Fitness returns an activity tracker client for the user.
func (s *IntegrationService) Fitness(ctx context.Context, userID string) (FitnessAPI, error) {
	hc, err := s.HTTPClient(ctx, userID, models.ProviderFitness)
	if err != nil {
		return nil, err
	}
	return integrations.NewFitbitClient(hc), nil
}
