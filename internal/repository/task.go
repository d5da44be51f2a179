package repository

import (
	"fmt"
	"time"

	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskRepository is a repository for interacting with tasks.
type TaskRepository struct {
	DB *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

// CreateTask inserts a new task.
func (r *TaskRepository) CreateTask(task *models.Task) error {
	if err := r.DB.Create(task).Error; err != nil {
		logger.Get().Error("failed to create task", zap.String("user_id", task.UserID), zap.Error(err))
		return err
	}
	return nil
}

// GetTask retrieves one of the user's tasks. Tasks owned by someone else are
// reported as not found.
func (r *TaskRepository) GetTask(userID string, taskID uint) (*models.Task, error) {
	var task models.Task
	err := r.DB.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	if err != nil {
		return nil, notFoundOr(err, "task not found")
	}
	return &task, nil
}

// ListTasks returns the user's tasks, newest first. An empty status lists all.
func (r *TaskRepository) ListTasks(userID string, status models.TaskStatus) ([]models.Task, error) {
	query := r.DB.Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask saves the mutable fields of a loaded task. The task itself is
// the update model so the save hook validates the values being written.
// Concurrent updates are last-write-wins.
func (r *TaskRepository) UpdateTask(task *models.Task) error {
	result := r.DB.Model(task).
		Where("user_id = ?", task.UserID).
		Select("title", "status", "priority", "due_date", "reminded_at", "updated_at").
		Updates(task)
	if result.Error != nil {
		logger.Get().Error("failed to update task", zap.Uint("task_id", task.ID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "task not found"}
	}
	return nil
}

// DeleteTask removes one of the user's tasks.
func (r *TaskRepository) DeleteTask(userID string, taskID uint) error {
	result := r.DB.Where("id = ? AND user_id = ?", taskID, userID).Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "task not found"}
	}
	return nil
}

// ListDueUnreminded returns pending tasks across all users that are due
// before the given time and have not had a reminder sent yet.
func (r *TaskRepository) ListDueUnreminded(before time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.DB.
		Where("status = ? AND due_date IS NOT NULL AND due_date <= ? AND reminded_at IS NULL", models.TaskPending, before).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return tasks, nil
}

// MarkReminded stamps reminded_at on the given tasks.
func (r *TaskRepository) MarkReminded(taskIDs []uint, at time.Time) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.DB.Model(&models.Task{}).
		Where("id IN ?", taskIDs).
		UpdateColumn("reminded_at", at).Error
}
