package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/testutil"
)

// withUser stands in for the auth middleware.
func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func newTestTaskRouter() (*gin.Engine, *testutil.MockTaskRepo) {
	repo := testutil.NewMockTaskRepo()
	handler := NewTaskHandler(service.NewTaskService(repo))

	r := gin.New()
	g := r.Group("/v1", withUser(testutil.TestUserID))
	g.GET("/tasks", handler.ListTasks)
	g.GET("/tasks/:task_id", handler.GetTask)
	g.POST("/tasks", handler.CreateTask)
	g.PATCH("/tasks/:task_id", handler.UpdateTask)
	g.DELETE("/tasks/:task_id", handler.DeleteTask)
	return r, repo
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTask_Handler_Success(t *testing.T) {
	r, repo := newTestTaskRouter()

	w := serve(r, "POST", "/v1/tasks", `{"title": "Buy milk", "priority": "high", "due_date": "2025-03-14"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d. body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp struct {
		Task service.TaskResponse `json:"task"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Task.Title != "Buy milk" || resp.Task.Status != "pending" {
		t.Errorf("task = %+v", resp.Task)
	}
	if resp.Task.Priority == nil || *resp.Task.Priority != "high" {
		t.Errorf("priority = %v, want high", resp.Task.Priority)
	}
	if len(repo.Tasks) != 1 {
		t.Errorf("stored %d tasks, want 1", len(repo.Tasks))
	}
}

func TestCreateTask_Handler_Validation(t *testing.T) {
	r, _ := newTestTaskRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"priority": "high"}`},
		{"bad priority", `{"title": "x", "priority": "urgent"}`},
		{"bad date", `{"title": "x", "due_date": "soon"}`},
		{"not json", `title=x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, "POST", "/v1/tasks", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

func TestListTasks_Handler_StatusFilter(t *testing.T) {
	r, repo := newTestTaskRouter()
	done := testutil.TestTask("Done already", models.PriorityNone, nil)
	done.Status = models.TaskCompleted
	testutil.SeedTasks(repo, testutil.TestTask("Buy milk", models.PriorityNone, nil), done)

	w := serve(r, "GET", "/v1/tasks?status=pending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Tasks []service.TaskResponse `json:"tasks"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Buy milk" {
		t.Errorf("tasks = %+v", resp.Tasks)
	}

	if w := serve(r, "GET", "/v1/tasks?status=archived", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad status: code = %d, want 400", w.Code)
	}
}

func TestGetTask_Handler_NotFound(t *testing.T) {
	r, repo := newTestTaskRouter()
	other := testutil.TestTask("Someone else's", models.PriorityNone, nil)
	other.UserID = "someone-else"
	seeded := testutil.SeedTasks(repo, other)

	if w := serve(r, "GET", "/v1/tasks/999", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing task: code = %d, want 404", w.Code)
	}
	path := "/v1/tasks/" + itoa(seeded[0].ID)
	if w := serve(r, "GET", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("other user's task: code = %d, want 404", w.Code)
	}
	if w := serve(r, "GET", "/v1/tasks/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d, want 400", w.Code)
	}
}

func TestUpdateTask_Handler(t *testing.T) {
	r, repo := newTestTaskRouter()
	seeded := testutil.SeedTasks(repo, testutil.TestTask("Buy milk", models.PriorityNone, nil))
	path := "/v1/tasks/" + itoa(seeded[0].ID)

	w := serve(r, "PATCH", path, `{"status": "completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	if repo.Tasks[seeded[0].ID].Status != models.TaskCompleted {
		t.Errorf("task status = %q, want completed", repo.Tasks[seeded[0].ID].Status)
	}

	if w := serve(r, "PATCH", path, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch: code = %d, want 400", w.Code)
	}
}

func TestDeleteTask_Handler(t *testing.T) {
	r, repo := newTestTaskRouter()
	seeded := testutil.SeedTasks(repo, testutil.TestTask("Buy milk", models.PriorityNone, nil))
	path := "/v1/tasks/" + itoa(seeded[0].ID)

	if w := serve(r, "DELETE", path, ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(repo.Tasks) != 0 {
		t.Error("task should be deleted")
	}
	if w := serve(r, "DELETE", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: code = %d, want 404", w.Code)
	}
}

func TestListTasks_Handler_RepoError(t *testing.T) {
	r, repo := newTestTaskRouter()
	repo.ListTasksErr = errTest

	if w := serve(r, "GET", "/v1/tasks", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
