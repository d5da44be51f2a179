package repository

import (
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/models"
	"gorm.io/gorm"
)

// MemoryRepository handles stored memories and their pgvector similarity search.
type MemoryRepository struct {
	DB *gorm.DB
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{DB: db}
}

// AddMemory stores a memory along with its embedding vector.
func (r *MemoryRepository) AddMemory(memory *models.Memory, embedding []float32) error {
	if len(embedding) > 0 {
		literal := pgvectorLiteral(embedding)
		memory.Embedding = &literal
	}
	if err := r.DB.Create(memory).Error; err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}
	return nil
}

// SearchMemories finds the user's memories closest to the embedding by cosine distance.
func (r *MemoryRepository) SearchMemories(userID string, embedding []float32, limit int) ([]models.ScoredMemory, error) {
	if limit <= 0 {
		limit = 5
	}

	literal := pgvectorLiteral(embedding)
	var memories []models.ScoredMemory
	err := r.DB.Model(&models.Memory{}).
		Select("memories.*, embedding <=> ? AS distance", literal).
		Where("user_id = ? AND embedding IS NOT NULL", userID).
		Order(fmt.Sprintf("embedding <=> '%v'", literal)).
		Limit(limit).
		Find(&memories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	return memories, nil
}

// ListMemories returns all of the user's memories, newest first.
func (r *MemoryRepository) ListMemories(userID string) ([]models.Memory, error) {
	var memories []models.Memory
	err := r.DB.Omit("embedding").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&memories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return memories, nil
}

// DeleteMemory removes one memory.
func (r *MemoryRepository) DeleteMemory(userID string, memoryID uint) error {
	result := r.DB.Where("id = ? AND user_id = ?", memoryID, userID).Delete(&models.Memory{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete memory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "memory not found"}
	}
	return nil
}

// DeleteAllMemories removes every memory the user has stored.
func (r *MemoryRepository) DeleteAllMemories(userID string) error {
	if err := r.DB.Where("user_id = ?", userID).Delete(&models.Memory{}).Error; err != nil {
		return fmt.Errorf("failed to delete memories: %w", err)
	}
	return nil
}

// pgvectorLiteral formats a float32 slice as a pgvector literal string: [0.1,0.2,0.3]
func pgvectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}
