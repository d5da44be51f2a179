package repository

import (
	"fmt"

	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntegrationRepository is a repository for OAuth integrations.
type IntegrationRepository struct {
	DB *gorm.DB
}

// NewIntegrationRepository creates a new IntegrationRepository.
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{DB: db}
}

// GetIntegration retrieves the user's connection to a provider.
func (r *IntegrationRepository) GetIntegration(userID string, provider models.IntegrationProvider) (*models.Integration, error) {
	var integration models.Integration
	err := r.DB.Where("user_id = ? AND provider = ?", userID, provider).First(&integration).Error
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("%s is not connected", provider))
	}
	return &integration, nil
}

// UpsertIntegration stores a connection, replacing the token of an existing one.
func (r *IntegrationRepository) UpsertIntegration(integration *models.Integration) error {
	err := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_token", "scopes", "expires_at", "updated_at", "deleted_at"}),
	}).Create(integration).Error
	if err != nil {
		logger.Get().Error("failed to upsert integration",
			zap.String("user_id", integration.UserID),
			zap.String("provider", string(integration.Provider)),
			zap.Error(err))
		return err
	}
	return nil
}

// DeleteIntegration removes a connection permanently so a reconnect starts clean.
func (r *IntegrationRepository) DeleteIntegration(userID string, provider models.IntegrationProvider) error {
	result := r.DB.Unscoped().
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Integration{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: fmt.Sprintf("%s is not connected", provider)}
	}
	return nil
}

// ListConnected returns the providers the user has connected.
func (r *IntegrationRepository) ListConnected(userID string) ([]models.IntegrationProvider, error) {
	var providers []models.IntegrationProvider
	err := r.DB.Model(&models.Integration{}).
		Where("user_id = ?", userID).
		Pluck("provider", &providers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return providers, nil
}
