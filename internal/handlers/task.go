package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
)

// TaskHandler is the handler for task CRUD requests.
type TaskHandler struct {
	Service *service.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{Service: taskService}
}

func (h *TaskHandler) taskID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return 0, false
	}
	return id, true
}

// ListTasks handles GET /v1/tasks with an optional status filter.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	tasks, err := h.Service.ListTasks(userID, c.Query("status"))
	if err != nil {
		respondError(c, err, "Failed to list tasks")
		return
	}

	out := make([]service.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, service.ToTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// GetTask handles GET /v1/tasks/:task_id.
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.Service.GetTask(userID, id)
	if err != nil {
		respondError(c, err, "Failed to get task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": service.ToTaskResponse(task)})
}

// CreateTask handles POST /v1/tasks.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, err := h.Service.CreateTask(userID, in)
	if err != nil {
		respondError(c, err, "Failed to create task")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": service.ToTaskResponse(task)})
}

// UpdateTask handles PATCH /v1/tasks/:task_id.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, err := h.Service.UpdateTask(userID, id, patch)
	if err != nil {
		respondError(c, err, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": service.ToTaskResponse(task)})
}

// DeleteTask handles DELETE /v1/tasks/:task_id.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.Service.DeleteTask(userID, id); err != nil {
		respondError(c, err, "Failed to delete task")
		return
	}
	c.Status(http.StatusNoContent)
}
