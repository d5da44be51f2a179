package repository

import (
	"time"

	"github.com/windoze95/manas-api/internal/models"
)

// TaskRepo is the interface for task repository operations. Every method is
// scoped to a single user.
type TaskRepo interface {
	CreateTask(task *models.Task) error
	GetTask(userID string, taskID uint) (*models.Task, error)
	ListTasks(userID string, status models.TaskStatus) ([]models.Task, error)
	UpdateTask(task *models.Task) error
	DeleteTask(userID string, taskID uint) error
	ListDueUnreminded(before time.Time) ([]models.Task, error)
	MarkReminded(taskIDs []uint, at time.Time) error
}

// ProfileRepo is the interface for profile repository operations.
type ProfileRepo interface {
	GetProfile(userID string) (*models.Profile, error)
	CreateProfile(profile *models.Profile) error
	SaveProfile(profile *models.Profile) error
	ClearProfileField(userID string, field models.ProfileField) error
}

// IntegrationRepo is the interface for OAuth integration operations.
type IntegrationRepo interface {
	GetIntegration(userID string, provider models.IntegrationProvider) (*models.Integration, error)
	UpsertIntegration(integration *models.Integration) error
	DeleteIntegration(userID string, provider models.IntegrationProvider) error
	ListConnected(userID string) ([]models.IntegrationProvider, error)
}

// MemoryRepo is the interface for vector memory operations.
type MemoryRepo interface {
	AddMemory(memory *models.Memory, embedding []float32) error
	SearchMemories(userID string, embedding []float32, limit int) ([]models.ScoredMemory, error)
	ListMemories(userID string) ([]models.Memory, error)
	DeleteMemory(userID string, memoryID uint) error
	DeleteAllMemories(userID string) error
}

// AttachmentRepo is the interface for uploaded file bookkeeping.
type AttachmentRepo interface {
	CreateAttachment(attachment *models.Attachment) error
	GetAttachments(userID string, fileIDs []string) ([]models.Attachment, error)
	DeleteAttachment(userID string, fileID string) error
}
