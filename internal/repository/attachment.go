package repository

import (
	"fmt"

	"github.com/windoze95/manas-api/internal/models"
	"gorm.io/gorm"
)

// AttachmentRepository tracks files uploaded for document analysis.
type AttachmentRepository struct {
	DB *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{DB: db}
}

// CreateAttachment records an uploaded file.
func (r *AttachmentRepository) CreateAttachment(attachment *models.Attachment) error {
	if err := r.DB.Create(attachment).Error; err != nil {
		return fmt.Errorf("failed to record attachment: %w", err)
	}
	return nil
}

// GetAttachments returns the user's attachments with the given file IDs.
// Unknown IDs are skipped.
func (r *AttachmentRepository) GetAttachments(userID string, fileIDs []string) ([]models.Attachment, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var attachments []models.Attachment
	err := r.DB.Where("user_id = ? AND file_id IN ?", userID, fileIDs).Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	return attachments, nil
}

// DeleteAttachment removes the record of an uploaded file.
func (r *AttachmentRepository) DeleteAttachment(userID string, fileID string) error {
	return r.DB.Unscoped().
		Where("user_id = ? AND file_id = ?", userID, fileID).
		Delete(&models.Attachment{}).Error
}
