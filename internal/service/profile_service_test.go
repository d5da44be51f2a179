package service

import (
	"context"
	"testing"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/testutil"
)

func newTestProfileService() (*ProfileService, *testutil.MockProfileRepo, *testutil.MockIntegrationRepo, *testutil.MockTextProvider) {
	repo := testutil.NewMockProfileRepo()
	integrations := testutil.NewMockIntegrationRepo()
	tp := &testutil.MockTextProvider{}
	return NewProfileService(repo, integrations, tp), repo, integrations, tp
}

func strPtr(s string) *string { return &s }

func TestGetOrCreate_Defaults(t *testing.T) {
	svc, repo, _, _ := newTestProfileService()

	p, err := svc.GetOrCreate("u1")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if p.Timezone != models.DefaultTimezone {
		t.Errorf("Timezone = %q, want %q", p.Timezone, models.DefaultTimezone)
	}
	if p.PreferredVoice != ai.DefaultVoiceID {
		t.Errorf("PreferredVoice = %q, want default", p.PreferredVoice)
	}

	again, err := svc.GetOrCreate("u1")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != p.ID || len(repo.Profiles) != 1 {
		t.Error("second call should return the existing profile")
	}
}

func TestProfileUpdate_Partial(t *testing.T) {
	svc, _, _, _ := newTestProfileService()
	if _, err := svc.Update("u1", ProfileUpdate{Name: strPtr("Priya"), Location: strPtr("Austin")}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	interests := []string{" Cooking", "running", "cooking"}
	p, err := svc.Update("u1", ProfileUpdate{Interests: &interests})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if p.Name != "Priya" || p.Location != "Austin" {
		t.Errorf("untouched fields changed: %+v", p)
	}
	if len(p.Interests) != 2 || p.Interests[0] != "cooking" {
		t.Errorf("Interests = %v, want normalized [cooking running]", p.Interests)
	}
}

func TestProfileUpdate_Validation(t *testing.T) {
	svc, _, _, _ := newTestProfileService()

	tests := []struct {
		name   string
		update ProfileUpdate
	}{
		{"empty", ProfileUpdate{}},
		{"bad email", ProfileUpdate{Email: strPtr("not-an-email")}},
		{"bad timezone", ProfileUpdate{Timezone: strPtr("Mars/Olympus")}},
		{"unknown voice", ProfileUpdate{PreferredVoice: strPtr("nope")}},
		{"profane name", ProfileUpdate{Name: strPtr("shit")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update("u1", tt.update)
			if _, ok := AsUserError(err); !ok {
				t.Fatalf("expected UserError, got %v", err)
			}
		})
	}
}

func TestClearField(t *testing.T) {
	svc, repo, _, _ := newTestProfileService()
	if _, err := svc.Update("u1", ProfileUpdate{Location: strPtr("Austin")}); err != nil {
		t.Fatal(err)
	}

	if err := svc.ClearField("u1", "location"); err != nil {
		t.Fatalf("ClearField error: %v", err)
	}
	if repo.Profiles["u1"].Location != "" {
		t.Error("location should be cleared")
	}
	if err := svc.ClearField("u1", "timezone"); err == nil {
		t.Error("timezone should not be clearable")
	}
}

func TestApplyFacts(t *testing.T) {
	svc, _, _, _ := newTestProfileService()
	if _, err := svc.Update("u1", ProfileUpdate{Interests: &[]string{"cooking"}}); err != nil {
		t.Fatal(err)
	}

	p, changed, err := svc.ApplyFacts("u1", &ai.ProfileFacts{
		Name:      "Priya",
		Location:  "Austin",
		Interests: []string{"Cooking", "chess"},
	})
	if err != nil {
		t.Fatalf("ApplyFacts error: %v", err)
	}
	if !changed {
		t.Error("expected a change")
	}
	if p.Name != "Priya" || p.Location != "Austin" {
		t.Errorf("facts not applied: %+v", p)
	}
	if len(p.Interests) != 2 {
		t.Errorf("Interests = %v, want cooking and chess", p.Interests)
	}

	_, changed, err = svc.ApplyFacts("u1", &ai.ProfileFacts{Location: "Austin"})
	if err != nil || changed {
		t.Errorf("repeating a known fact should not change the profile (changed=%v err=%v)", changed, err)
	}
}

func TestExtractFromText(t *testing.T) {
	svc, _, _, tp := newTestProfileService()
	tp.ExtractProfileFactsFunc = func(ctx context.Context, transcript string) (*ai.ProfileFacts, error) {
		return &ai.ProfileFacts{DietaryPreference: "vegetarian"}, nil
	}

	p, facts, err := svc.ExtractFromText(context.Background(), "u1", "I'm vegetarian")
	if err != nil {
		t.Fatalf("ExtractFromText error: %v", err)
	}
	if facts.DietaryPreference != "vegetarian" || p.DietaryPreference != "vegetarian" {
		t.Errorf("dietary preference not applied: %+v", p)
	}

	if _, _, err := svc.ExtractFromText(context.Background(), "u1", "  "); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestProfileResponse_Integrations(t *testing.T) {
	svc, _, integrations, _ := newTestProfileService()
	p, _ := svc.GetOrCreate("u1")
	_ = integrations.UpsertIntegration(&models.Integration{UserID: "u1", Provider: models.ProviderEmail, EncryptedToken: []byte{1}})

	resp, err := svc.Response(p)
	if err != nil {
		t.Fatalf("Response error: %v", err)
	}
	if !resp.Integrations["email"] || resp.Integrations["calendar"] || resp.Integrations["fitness"] {
		t.Errorf("Integrations = %v", resp.Integrations)
	}
	if resp.Name != nil {
		t.Errorf("Name = %v, want null", *resp.Name)
	}
}
