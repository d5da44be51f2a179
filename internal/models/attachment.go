package models

import (
	"errors"

	"gorm.io/gorm"
)

// Attachment is a file uploaded for document analysis. Attachments live in S3
// until the turn that references them has been answered.
type Attachment struct {
	gorm.Model
	FileID      string `gorm:"uniqueIndex;not null"`
	UserID      string `gorm:"index;not null"`
	Filename    string `gorm:"not null"`
	ContentType string
	Size        int64
	S3Key       string `gorm:"not null"`
}

// BeforeCreate is a GORM hook that runs before creating a new Attachment.
func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.FileID == "" || a.S3Key == "" {
		return errors.New("attachment requires a file id and storage key")
	}
	return nil
}
