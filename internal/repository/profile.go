package repository

import (
	"errors"

	"github.com/lib/pq"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrProfileExists is returned when a profile is created for a user that
// already has one.
var ErrProfileExists = errors.New("profile already exists")

// ProfileRepository is a repository for interacting with profiles.
type ProfileRepository struct {
	DB *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// GetProfile retrieves a profile by user ID.
func (r *ProfileRepository) GetProfile(userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, notFoundOr(err, "profile not found")
	}
	return &profile, nil
}

// CreateProfile inserts a new profile.
func (r *ProfileRepository) CreateProfile(profile *models.Profile) error {
	if err := r.DB.Create(profile).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		logger.Get().Error("failed to create profile", zap.String("user_id", profile.UserID), zap.Error(err))
		return err
	}
	return nil
}

// SaveProfile writes every field of an existing profile.
func (r *ProfileRepository) SaveProfile(profile *models.Profile) error {
	if err := r.DB.Save(profile).Error; err != nil {
		logger.Get().Error("failed to save profile", zap.String("user_id", profile.UserID), zap.Error(err))
		return err
	}
	return nil
}

// ClearProfileField resets one clearable column to NULL.
func (r *ProfileRepository) ClearProfileField(userID string, field models.ProfileField) error {
	if !field.IsClearable() {
		return errors.New("field cannot be cleared")
	}
	result := r.DB.Model(&models.Profile{}).
		Where("user_id = ?", userID).
		UpdateColumn(string(field), gorm.Expr("NULL"))
	if result.Error != nil {
		logger.Get().Error("failed to clear profile field",
			zap.String("user_id", userID),
			zap.String("field", string(field)),
			zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "profile not found"}
	}
	return nil
}

// isUniqueViolation reports whether err came from a unique constraint.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
