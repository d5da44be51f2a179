package models

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// IntegrationProvider is the type for the IntegrationProvider enum.
type IntegrationProvider string

// IntegrationProvider enum values.
const (
	ProviderCalendar IntegrationProvider = "calendar"
	ProviderEmail    IntegrationProvider = "email"
	ProviderFitness  IntegrationProvider = "fitness"
)

// AllProviders lists every connectable provider.
var AllProviders = []IntegrationProvider{ProviderCalendar, ProviderEmail, ProviderFitness}

// IsValid checks if the provider is a known IntegrationProvider.
func (p IntegrationProvider) IsValid() bool {
	switch p {
	case ProviderCalendar, ProviderEmail, ProviderFitness:
		return true
	default:
		return false
	}
}

// Integration stores a user's OAuth connection to an external provider. The
// token is sealed before it reaches this struct and never stored in clear.
type Integration struct {
	gorm.Model
	UserID         string              `gorm:"uniqueIndex:idx_integrations_user_provider;not null"`
	Provider       IntegrationProvider `gorm:"type:text;uniqueIndex:idx_integrations_user_provider;not null"`
	EncryptedToken []byte              `gorm:"not null"`
	Scopes         pq.StringArray      `gorm:"type:text[]"`
	ExpiresAt      *time.Time
}

// BeforeSave is a GORM hook that runs before creating or saving an Integration.
func (i *Integration) BeforeSave(tx *gorm.DB) (err error) {
	if !i.Provider.IsValid() {
		return errors.New("invalid integration provider")
	}
	if len(i.EncryptedToken) == 0 {
		return errors.New("integration token cannot be empty")
	}
	return nil
}
