package repository_test

import (
	"testing"
	"time"

	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/testutil"
)

func newTaskRepo(t *testing.T) *repository.TaskRepository {
	t.Helper()
	return repository.NewTaskRepository(testutil.NewSQLiteDB(t, &models.Task{}))
}

func mustCreate(t *testing.T, repo *repository.TaskRepository, userID, title string) *models.Task {
	t.Helper()
	task := &models.Task{UserID: userID, Title: title}
	if err := repo.CreateTask(task); err != nil {
		t.Fatalf("CreateTask(%q): %v", title, err)
	}
	return task
}

func TestTaskRepository_CreateDefaultsToPending(t *testing.T) {
	repo := newTaskRepo(t)
	task := mustCreate(t, repo, "u1", "buy milk")

	got, err := repo.GetTask("u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "buy milk" || got.Status != models.TaskPending {
		t.Errorf("stored task = %+v", got)
	}
}

func TestTaskRepository_UpdateTask(t *testing.T) {
	repo := newTaskRepo(t)
	task := mustCreate(t, repo, "u1", "buy milk")

	loaded, err := repo.GetTask("u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC)
	loaded.Status = models.TaskCompleted
	loaded.Priority = models.PriorityHigh
	loaded.DueDate = &due
	if err := repo.UpdateTask(loaded); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	got, err := repo.GetTask("u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TaskCompleted || got.Priority != models.PriorityHigh {
		t.Errorf("stored task = %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", got.DueDate, due)
	}
	if got.Title != "buy milk" {
		t.Errorf("title changed to %q", got.Title)
	}
}

func TestTaskRepository_UpdateTaskRejectsInvalid(t *testing.T) {
	repo := newTaskRepo(t)
	task := mustCreate(t, repo, "u1", "buy milk")

	task.Title = "  "
	if err := repo.UpdateTask(task); err == nil {
		t.Fatal("expected validation error for empty title")
	}
	got, _ := repo.GetTask("u1", task.ID)
	if got.Title != "buy milk" {
		t.Errorf("title = %q, want unchanged", got.Title)
	}
}

func TestTaskRepository_UpdateTaskOtherUser(t *testing.T) {
	repo := newTaskRepo(t)
	task := mustCreate(t, repo, "u1", "buy milk")

	task.UserID = "u2"
	task.Status = models.TaskCompleted
	if err := repo.UpdateTask(task); !repository.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	got, _ := repo.GetTask("u1", task.ID)
	if got.Status != models.TaskPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestTaskRepository_ListTasksScopedAndFiltered(t *testing.T) {
	repo := newTaskRepo(t)
	milk := mustCreate(t, repo, "u1", "buy milk")
	mustCreate(t, repo, "u1", "call mom")
	mustCreate(t, repo, "u2", "walk dog")

	milk.Status = models.TaskCompleted
	if err := repo.UpdateTask(milk); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListTasks("u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("u1 tasks = %d, want 2", len(all))
	}
	for _, task := range all {
		if task.UserID != "u1" {
			t.Errorf("listed another user's task %+v", task)
		}
	}

	pending, _ := repo.ListTasks("u1", models.TaskPending)
	if len(pending) != 1 || pending[0].Title != "call mom" {
		t.Errorf("pending = %+v", pending)
	}
	completed, _ := repo.ListTasks("u1", models.TaskCompleted)
	if len(completed) != 1 || completed[0].ID != milk.ID {
		t.Errorf("completed = %+v", completed)
	}
}

func TestTaskRepository_DeleteTaskScoped(t *testing.T) {
	repo := newTaskRepo(t)
	mine := mustCreate(t, repo, "u1", "buy milk")
	theirs := mustCreate(t, repo, "u2", "walk dog")

	if err := repo.DeleteTask("u1", theirs.ID); !repository.IsNotFound(err) {
		t.Fatalf("deleting another user's task: err = %v, want not found", err)
	}
	if err := repo.DeleteTask("u1", mine.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := repo.GetTask("u1", mine.ID); !repository.IsNotFound(err) {
		t.Errorf("deleted task still readable: %v", err)
	}
	if err := repo.DeleteTask("u1", mine.ID); !repository.IsNotFound(err) {
		t.Errorf("second delete: err = %v, want not found", err)
	}

	left, _ := repo.ListTasks("u2", "")
	if len(left) != 1 || left[0].ID != theirs.ID {
		t.Errorf("u2 tasks = %+v", left)
	}
}

func TestTaskRepository_RemindersRoundTrip(t *testing.T) {
	repo := newTaskRepo(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	soon := now.Add(30 * time.Minute)
	later := now.Add(5 * time.Hour)

	a := &models.Task{UserID: "u1", Title: "dentist", DueDate: &soon}
	b := &models.Task{UserID: "u1", Title: "taxes", DueDate: &later}
	for _, task := range []*models.Task{a, b} {
		if err := repo.CreateTask(task); err != nil {
			t.Fatal(err)
		}
	}

	due, err := repo.ListDueUnreminded(now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != a.ID {
		t.Fatalf("due = %+v", due)
	}
	if err := repo.MarkReminded([]uint{a.ID}, now); err != nil {
		t.Fatal(err)
	}
	due, _ = repo.ListDueUnreminded(now.Add(time.Hour))
	if len(due) != 0 {
		t.Errorf("reminded task listed again: %+v", due)
	}
}
