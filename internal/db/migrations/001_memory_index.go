package migrations

import (
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnsureMemoryIndex creates the HNSW cosine index used for memory recall.
// Older pgvector builds without HNSW fall back to ivfflat.
//
// This migration is idempotent.
func EnsureMemoryIndex(db *gorm.DB) error {
	err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_embedding
		ON memories USING hnsw (embedding vector_cosine_ops)`).Error
	if err == nil {
		return nil
	}

	logger.Get().Warn("hnsw index unavailable, using ivfflat", zap.Error(err))
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_embedding
		ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`).Error
}

// BackfillTaskPriority normalizes legacy priority values to the lowercase enum
// and clears anything unrecognized.
func BackfillTaskPriority(db *gorm.DB) error {
	if err := db.Exec(`UPDATE tasks SET priority = lower(priority)
		WHERE priority IS NOT NULL AND priority <> lower(priority)`).Error; err != nil {
		return err
	}
	result := db.Exec(`UPDATE tasks SET priority = NULL
		WHERE priority IS NOT NULL AND priority NOT IN ('high', 'medium', 'low')`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logger.Get().Info("cleared unrecognized task priorities", zap.Int64("count", result.RowsAffected))
	}
	return nil
}
