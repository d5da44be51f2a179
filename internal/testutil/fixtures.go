package testutil

import (
	"time"

	"github.com/lib/pq"
	"github.com/windoze95/manas-api/internal/models"
	"gorm.io/gorm"
)

// TestUserID is the user every fixture belongs to.
const TestUserID = "user-123"

// TestProfile creates a test profile with realistic fields.
func TestProfile() *models.Profile {
	return &models.Profile{
		Model:             gorm.Model{ID: 1},
		UserID:            TestUserID,
		Name:              "Priya",
		Email:             "priya@example.com",
		Location:          "Austin, TX",
		Timezone:          "America/Chicago",
		DietaryPreference: "vegetarian",
		LearningLevel:     "intermediate",
		PreferredVoice:    "21m00Tcm4TlvDq8ikWAM",
		Interests:         pq.StringArray{"cooking", "running"},
	}
}

// TestTask creates a pending task owned by TestUserID.
func TestTask(title string, priority models.TaskPriority, due *time.Time) *models.Task {
	return &models.Task{
		UserID:   TestUserID,
		Title:    title,
		Status:   models.TaskPending,
		Priority: priority,
		DueDate:  due,
	}
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// SeedTasks stores tasks in the repo and returns them with their IDs.
func SeedTasks(repo *MockTaskRepo, tasks ...*models.Task) []*models.Task {
	for _, t := range tasks {
		if err := repo.CreateTask(t); err != nil {
			panic(err)
		}
	}
	return tasks
}
