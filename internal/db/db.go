package db

import (
	"fmt"
	"time"

	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/db/migrations"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New creates a new database connection.
func New(cfg *config.Config) (*gorm.DB, error) {
	return connectToDatabaseWithRetry(cfg.EnvVars.DatabaseUrl)
}

// connectToDatabaseWithRetry connects to the database and retries if necessary.
func connectToDatabaseWithRetry(databaseURL string) (*gorm.DB, error) {
	logger.Get().Info("connecting to database")
	var database *gorm.DB
	var err error

	start := time.Now()
	for {
		database, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{TranslateError: true})
		if err == nil {
			break
		}
		if time.Since(start) > 1*time.Minute {
			return nil, fmt.Errorf("could not connect to database after 1 minute: %w", err)
		}
		logger.Get().Warn("could not connect to database, retrying...", zap.Error(err))
		time.Sleep(5 * time.Second)
	}

	// Enable pgvector extension for memory similarity search
	if err := database.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		logger.Get().Warn("could not enable pgvector extension", zap.Error(err))
	}

	if err := database.AutoMigrate(
		&models.Profile{},
		&models.Task{},
		&models.Integration{},
		&models.Memory{},
		&models.Attachment{},
	); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	if err := migrations.EnsureMemoryIndex(database); err != nil {
		logger.Get().Warn("could not create memory index", zap.Error(err))
	}
	if err := migrations.BackfillTaskPriority(database); err != nil {
		logger.Get().Warn("task priority backfill failed", zap.Error(err))
	}

	return database, nil
}
