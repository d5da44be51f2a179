package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/testutil"
)

func newTestIntegrationService(t *testing.T) (*IntegrationService, *testutil.MockIntegrationRepo) {
	t.Helper()
	cfg := &config.Config{EnvVars: config.EnvVars{
		JwtSecretKey:       "test-secret",
		PublicURL:          "https://api.example.com/",
		GoogleClientID:     "google-id",
		GoogleClientSecret: "google-secret",
	}}
	repo := testutil.NewMockIntegrationRepo()
	svc, err := NewIntegrationService(cfg, repo, cache.NewMemoryCache())
	if err != nil {
		t.Fatalf("NewIntegrationService error: %v", err)
	}
	return svc, repo
}

func TestIntegration_RequiresSecret(t *testing.T) {
	_, err := NewIntegrationService(&config.Config{}, testutil.NewMockIntegrationRepo(), cache.NewMemoryCache())
	if err == nil {
		t.Fatal("expected error without a secret")
	}
}

func TestIntegration_SealOpenRoundTrip(t *testing.T) {
	svc, _ := newTestIntegrationService(t)
	plain := []byte(`{"access_token":"abc"}`)

	sealed, err := svc.seal(plain)
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}
	if bytes.Contains(sealed, []byte("abc")) {
		t.Error("sealed token contains plaintext")
	}
	opened, err := svc.open(sealed)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("open = %s, want %s", opened, plain)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := svc.open(sealed); err == nil {
		t.Error("tampered token should not open")
	}
}

func TestIntegration_ParseProvider(t *testing.T) {
	if p, err := ParseProvider(" Calendar "); err != nil || p != models.ProviderCalendar {
		t.Errorf("ParseProvider = %q, %v", p, err)
	}
	if _, err := ParseProvider("dropbox"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestIntegration_ConnectURL(t *testing.T) {
	svc, _ := newTestIntegrationService(t)

	raw, err := svc.ConnectURL(context.Background(), "u1", models.ProviderEmail)
	if err != nil {
		t.Fatalf("ConnectURL error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("redirect_uri") != "https://api.example.com/v1/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("access_type") != "offline" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("missing offline access or PKCE: %s", raw)
	}
	if q.Get("state") == "" {
		t.Fatal("missing state")
	}

	if _, err := svc.ConnectURL(context.Background(), "u1", models.ProviderFitness); err == nil {
		t.Error("fitness is not configured and should fail")
	}
}

func TestIntegration_CallbackStoresSealedToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "auth-code" || r.Form.Get("code_verifier") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	svc, repo := newTestIntegrationService(t)
	svc.oauth[models.ProviderCalendar].Endpoint.TokenURL = tokenServer.URL

	raw, err := svc.ConnectURL(context.Background(), "u1", models.ProviderCalendar)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	userID, provider, err := svc.Callback(context.Background(), "auth-code", state)
	if err != nil {
		t.Fatalf("Callback error: %v", err)
	}
	if userID != "u1" || provider != models.ProviderCalendar {
		t.Errorf("Callback = %s %s", userID, provider)
	}

	stored := repo.Integrations["u1/calendar"]
	if stored == nil {
		t.Fatal("integration not stored")
	}
	if bytes.Contains(stored.EncryptedToken, []byte("access-1")) {
		t.Error("token stored in clear")
	}
	token, err := svc.loadToken("u1", models.ProviderCalendar)
	if err != nil || token.AccessToken != "access-1" || token.RefreshToken != "refresh-1" {
		t.Errorf("loadToken = %+v, %v", token, err)
	}

	// State is single use.
	if _, _, err := svc.Callback(context.Background(), "auth-code", state); !errors.Is(err, ErrInvalidOAuthState) {
		t.Errorf("replayed state: got %v, want ErrInvalidOAuthState", err)
	}
}

func TestIntegration_CallbackUnknownState(t *testing.T) {
	svc, _ := newTestIntegrationService(t)
	_, _, err := svc.Callback(context.Background(), "code", "nope")
	if !errors.Is(err, ErrInvalidOAuthState) {
		t.Fatalf("got %v, want ErrInvalidOAuthState", err)
	}
	if _, _, err := svc.Callback(context.Background(), "", ""); err == nil {
		t.Error("expected error for missing code and state")
	}
}

func TestIntegration_ConnectedAndDisconnect(t *testing.T) {
	svc, repo := newTestIntegrationService(t)
	sealed, _ := svc.seal([]byte(`{"access_token":"x"}`))
	_ = repo.UpsertIntegration(&models.Integration{UserID: "u1", Provider: models.ProviderEmail, EncryptedToken: sealed})

	if ok, err := svc.IsConnected("u1", models.ProviderEmail); err != nil || !ok {
		t.Errorf("IsConnected = %v, %v", ok, err)
	}
	if _, err := svc.Mail(context.Background(), "u1"); err != nil {
		t.Errorf("Mail error: %v", err)
	}

	if err := svc.Disconnect("u1", models.ProviderEmail); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.IsConnected("u1", models.ProviderEmail); ok {
		t.Error("still connected after Disconnect")
	}
	if _, err := svc.Mail(context.Background(), "u1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Mail after disconnect: got %v, want ErrNotConnected", err)
	}
}
