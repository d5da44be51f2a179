package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Memory is a personal fact the user asked the assistant to remember.
// Embedding holds a pgvector literal and is only read through similarity
// queries.
type Memory struct {
	gorm.Model
	UserID    string  `gorm:"index;not null"`
	Content   string  `gorm:"not null"`
	Embedding *string `gorm:"type:vector(1536)" json:"-"`
}

// ScoredMemory is a Memory with its cosine distance to a query.
type ScoredMemory struct {
	Memory
	Distance float64
}

// BeforeCreate is a GORM hook that runs before creating a new Memory.
func (m *Memory) BeforeCreate(tx *gorm.DB) (err error) {
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("memory content cannot be empty")
	}
	if m.UserID == "" {
		return errors.New("memory must belong to a user")
	}
	return nil
}
