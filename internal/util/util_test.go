package util

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Sure! {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, false},
		{"no object", "nothing here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserIDOrDefault(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := UserIDOrDefault(c); got != DefaultUserID {
		t.Errorf("expected default user, got %q", got)
	}

	c.Set("user_id", "user-7")
	if got := UserIDOrDefault(c); got != "user-7" {
		t.Errorf("expected user-7, got %q", got)
	}
}

func TestGetProfileFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, err := GetProfileFromContext(c); err == nil {
		t.Error("expected error when no profile is set")
	}

	c.Set("profile", &models.Profile{UserID: "u1"})
	p, err := GetProfileFromContext(c)
	if err != nil || p.UserID != "u1" {
		t.Errorf("expected profile u1, got %v, %v", p, err)
	}
}

func TestGuard_TripsAfterFailures(t *testing.T) {
	cb := NewBreaker("test")
	fail := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := Guard(cb, func() (int, error) { return 0, fail }); !errors.Is(err, fail) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	_, err := Guard(cb, func() (int, error) { return 1, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open breaker, got %v", err)
	}
}

func TestGuard_ReturnsValue(t *testing.T) {
	cb := NewBreaker("ok")
	got, err := Guard(cb, func() (string, error) { return "hi", nil })
	if err != nil || got != "hi" {
		t.Errorf("expected hi, got %q, %v", got, err)
	}
}
