package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/middleware"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/testutil"
)

func newTestProfileRouter(userID string) (*gin.Engine, *testutil.MockProfileRepo, *testutil.MockTextProvider) {
	repo := testutil.NewMockProfileRepo()
	tp := &testutil.MockTextProvider{}
	svc := service.NewProfileService(repo, testutil.NewMockIntegrationRepo(), tp)
	handler := NewProfileHandler(svc)

	r := gin.New()
	g := r.Group("/v1", withUser(userID), middleware.AttachProfileToContext(svc))
	g.GET("/profile", handler.GetProfile)
	g.PUT("/profile", handler.UpdateProfile)
	g.POST("/profile/extract", handler.ExtractProfile)
	g.DELETE("/profile/field/:field", handler.ClearField)
	r.GET("/v1/profile/voices", handler.ListVoices)
	return r, repo, tp
}

type profileBody struct {
	Profile service.ProfileResponse `json:"profile"`
}

func TestGetProfile_Handler_CreatesDefaults(t *testing.T) {
	r, repo, _ := newTestProfileRouter("new-user")

	w := serve(r, "GET", "/v1/profile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp profileBody
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Profile.UserID != "new-user" || resp.Profile.PreferredVoice != ai.DefaultVoiceID {
		t.Errorf("profile = %+v", resp.Profile)
	}
	if resp.Profile.Integrations == nil {
		t.Error("integration flags missing")
	}
	if _, ok := repo.Profiles["new-user"]; !ok {
		t.Error("profile should be persisted")
	}
}

func TestUpdateProfile_Handler(t *testing.T) {
	r, _, _ := newTestProfileRouter(testutil.TestUserID)

	w := serve(r, "PUT", "/v1/profile", `{"name": "Priya", "location": "Austin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp profileBody
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Profile.Name == nil || *resp.Profile.Name != "Priya" {
		t.Errorf("name = %v", resp.Profile.Name)
	}

	for _, body := range []string{`{}`, `{"email": "nope"}`, `{"preferred_voice": "x"}`} {
		if w := serve(r, "PUT", "/v1/profile", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestExtractProfile_Handler(t *testing.T) {
	r, _, tp := newTestProfileRouter(testutil.TestUserID)
	tp.ExtractProfileFactsFunc = func(ctx context.Context, transcript string) (*ai.ProfileFacts, error) {
		return &ai.ProfileFacts{Location: "Denver"}, nil
	}

	w := serve(r, "POST", "/v1/profile/extract", `{"text": "I just moved to Denver"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp profileBody
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Profile.Location == nil || *resp.Profile.Location != "Denver" {
		t.Errorf("location = %v", resp.Profile.Location)
	}

	if w := serve(r, "POST", "/v1/profile/extract", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing text: status = %d, want 400", w.Code)
	}
}

func TestClearField_Handler(t *testing.T) {
	r, repo, _ := newTestProfileRouter(testutil.TestUserID)
	serve(r, "PUT", "/v1/profile", `{"location": "Austin"}`)

	if w := serve(r, "DELETE", "/v1/profile/field/location", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	if repo.Profiles[testutil.TestUserID].Location != "" {
		t.Error("location should be cleared")
	}
	if w := serve(r, "DELETE", "/v1/profile/field/timezone", ""); w.Code != http.StatusBadRequest {
		t.Errorf("timezone: status = %d, want 400", w.Code)
	}
}

func TestListVoices_Handler(t *testing.T) {
	r, _, _ := newTestProfileRouter(testutil.TestUserID)

	w := serve(r, "GET", "/v1/profile/voices", "")
	var resp struct {
		Voices  []ai.Voice `json:"voices"`
		Default string     `json:"default"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Voices) != len(ai.Voices) || resp.Default != ai.DefaultVoiceID {
		t.Errorf("voices response = %+v", resp)
	}
}
