package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
)

// TaskMatchThreshold is the minimum similarity for a spoken task reference to
// match a stored title.
const TaskMatchThreshold = 0.6

// reminderHorizonDays is how far ahead "due soon" looks.
const reminderHorizonDays = 3

// TaskService is the business logic layer for task operations.
type TaskService struct {
	Repo repository.TaskRepo
	now  func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(repo repository.TaskRepo) *TaskService {
	return &TaskService{Repo: repo, now: time.Now}
}

// TaskResponse is the response object for a task.
type TaskResponse struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Priority  *string    `json:"priority"`
	DueDate   *string    `json:"due_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Reminded  *time.Time `json:"reminded_at,omitempty"`
}

// ToTaskResponse converts a task model into its API shape.
func ToTaskResponse(t *models.Task) TaskResponse {
	resp := TaskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Reminded:  t.RemindedAt,
	}
	if t.Priority != models.PriorityNone {
		p := string(t.Priority)
		resp.Priority = &p
	}
	if t.DueDate != nil {
		d := formatDueDate(*t.DueDate)
		resp.DueDate = &d
	}
	return resp
}

// ToTaskResponses converts a slice of tasks.
func ToTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, ToTaskResponse(&tasks[i]))
	}
	return out
}

// TaskInput is the payload for creating a task.
type TaskInput struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date"`
}

// TaskPatch is a partial task update. Nil fields are left alone; an empty
// Priority or DueDate clears the value.
type TaskPatch struct {
	Title    *string `json:"title"`
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
	DueDate  *string `json:"due_date"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Status == nil && p.Priority == nil && p.DueDate == nil
}

// CreateTask validates the input and stores a new pending task.
func (s *TaskService) CreateTask(userID string, in TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, userErrorf(CodeInvalidInput, "task title is required")
	}
	priority, ok := models.ParseTaskPriority(in.Priority)
	if !ok {
		return nil, userErrorf(CodeInvalidInput, "priority must be one of low, medium or high")
	}
	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		UserID:   userID,
		Title:    title,
		Status:   models.TaskPending,
		Priority: priority,
		DueDate:  due,
	}
	if err := s.Repo.CreateTask(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// GetTask returns one of the user's tasks.
func (s *TaskService) GetTask(userID string, taskID uint) (*models.Task, error) {
	return s.Repo.GetTask(userID, taskID)
}

// ListTasks lists the user's tasks, optionally filtered by status.
func (s *TaskService) ListTasks(userID string, status string) ([]models.Task, error) {
	st := models.TaskStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !models.IsValidTaskStatus(st) {
		return nil, userErrorf(CodeInvalidInput, "status must be pending or completed")
	}
	return s.Repo.ListTasks(userID, st)
}

// PendingTasks returns the user's pending tasks ordered by priority, keeping
// newest first within a priority.
func (s *TaskService) PendingTasks(userID string) ([]models.Task, error) {
	tasks, err := s.Repo.ListTasks(userID, models.TaskPending)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
	return tasks, nil
}

// UpdateTask applies a partial update to one of the user's tasks.
func (s *TaskService) UpdateTask(userID string, taskID uint, patch TaskPatch) (*models.Task, error) {
	if patch.IsEmpty() {
		return nil, userErrorf(CodeInvalidInput, "no fields to update")
	}
	task, err := s.Repo.GetTask(userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := applyTaskPatch(task, patch); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask marks one of the user's tasks as completed.
func (s *TaskService) CompleteTask(userID string, taskID uint) (*models.Task, error) {
	status := string(models.TaskCompleted)
	return s.UpdateTask(userID, taskID, TaskPatch{Status: &status})
}

// DeleteTask removes one of the user's tasks.
func (s *TaskService) DeleteTask(userID string, taskID uint) error {
	return s.Repo.DeleteTask(userID, taskID)
}

func applyTaskPatch(task *models.Task, patch TaskPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return userErrorf(CodeInvalidInput, "task title cannot be empty")
		}
		task.Title = title
	}
	if patch.Status != nil {
		st := models.TaskStatus(strings.ToLower(strings.TrimSpace(*patch.Status)))
		if !models.IsValidTaskStatus(st) {
			return userErrorf(CodeInvalidInput, "status must be pending or completed")
		}
		task.Status = st
	}
	if patch.Priority != nil {
		p, ok := models.ParseTaskPriority(*patch.Priority)
		if !ok {
			return userErrorf(CodeInvalidInput, "priority must be one of low, medium or high")
		}
		task.Priority = p
	}
	if patch.DueDate != nil {
		due, err := parseDueDate(*patch.DueDate)
		if err != nil {
			return err
		}
		task.DueDate = due
		task.RemindedAt = nil
	}
	return nil
}

// parseDueDate accepts YYYY-MM-DD or RFC 3339. Empty input means no due date.
func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, userErrorf(CodeInvalidInput, "due_date must be an ISO date (YYYY-MM-DD)")
}

func formatDueDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// FindTask returns the task whose title best matches the query, or nil when
// nothing scores above TaskMatchThreshold.
func FindTask(tasks []models.Task, query string) *models.Task {
	titles := make([]string, len(tasks))
	for i := range tasks {
		titles[i] = tasks[i].Title
	}
	if i := bestMatch(query, titles); i >= 0 {
		return &tasks[i]
	}
	return nil
}

// bestMatch returns the index of the candidate most similar to query, or -1
// when none scores above TaskMatchThreshold. Comparison ignores case.
func bestMatch(query string, candidates []string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return -1
	}
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := similarity(q, strings.ToLower(strings.TrimSpace(c)))
		if score > bestScore && score > TaskMatchThreshold {
			best, bestScore = i, score
		}
	}
	return best
}

// similarity is the character-level SequenceMatcher ratio of a and b.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Reminders groups the user's pending tasks by urgency.
type Reminders struct {
	Overdue   []models.Task
	DueToday  []models.Task
	DueSoon   []models.Task
	NoDueDate []models.Task
	Today     time.Time
}

// IsEmpty reports whether nothing has a due date coming up.
func (r *Reminders) IsEmpty() bool {
	return len(r.Overdue) == 0 && len(r.DueToday) == 0 && len(r.DueSoon) == 0
}

// DaysOverdue returns how many whole days the task is past due.
func (r *Reminders) DaysOverdue(t *models.Task) int {
	if t.DueDate == nil {
		return 0
	}
	return daysBetween(civilDate(*t.DueDate), r.Today)
}

// Reminders buckets pending tasks into overdue, due today, due within the
// next few days and without a due date. Dates are compared in loc.
func (s *TaskService) Reminders(userID string, loc *time.Location) (*Reminders, error) {
	tasks, err := s.Repo.ListTasks(userID, models.TaskPending)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	local := s.now().In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	r := &Reminders{Today: today}
	for _, t := range tasks {
		if t.DueDate == nil {
			r.NoDueDate = append(r.NoDueDate, t)
			continue
		}
		days := daysBetween(today, civilDate(*t.DueDate))
		switch {
		case days < 0:
			r.Overdue = append(r.Overdue, t)
		case days == 0:
			r.DueToday = append(r.DueToday, t)
		case days <= reminderHorizonDays:
			r.DueSoon = append(r.DueSoon, t)
		}
	}

	byPriority := func(tasks []models.Task) {
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		})
	}
	byPriority(r.Overdue)
	byPriority(r.DueToday)
	sort.SliceStable(r.DueSoon, func(i, j int) bool {
		a, b := r.DueSoon[i].DueDate, r.DueSoon[j].DueDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return r.DueSoon[i].Priority.Rank() < r.DueSoon[j].Priority.Rank()
	})
	return r, nil
}

// civilDate drops the clock so due dates compare as calendar days.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// plural returns "s" unless n is one.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
