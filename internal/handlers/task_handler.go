package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"task-notifications/internal/database"
	"task-notifications/internal/models"
)

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	ProjectID   string            `json:"projectId"`
	AssigneeID  string            `json:"assigneeId"`
}

// UpdateTaskStatusRequest represents a minimal request to change status
type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

func senderOf(userID string) *string { return &userID }

// notifyUser creates a notification unless the recipient is the actor or
// unknown. Failures are logged; the triggering request still succeeds.
func notifyUser(ctx context.Context, recipientID, actorID, title string, meta models.NotificationMetadata) {
	if recipientID == "" || recipientID == actorID {
		return
	}
	var count int64
	if err := database.GetDB().Model(&models.User{}).Where("id = ?", recipientID).Count(&count).Error; err != nil || count == 0 {
		log.Warn().Err(err).Str("recipient_id", recipientID).Msg("notification recipient not found")
		return
	}
	if _, err := notifications().Create(ctx, recipientID, senderOf(actorID), title, meta); err != nil {
		log.Error().Err(err).Str("recipient_id", recipientID).Msg("create notification")
	}
}

func findTask(c *gin.Context, taskID string) (models.Task, bool) {
	var task models.Task
	err := database.GetDB().Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return task, false
	}
	return task, true
}

// GetTasks handles GET /api/tasks
// Lists tasks the caller created or is assigned to, newest first.
func GetTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", 20), 100)

	query := database.GetDB().Model(&models.Task{}).
		Where("creator_id = ? OR assignee_id = ?", userID, userID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count tasks"})
		return
	}
	tasks := []models.Task{}
	if err := query.Order("created_at desc").Limit(limit).Offset((page - 1) * limit).Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// CreateTask handles POST /api/tasks
// Assigning the task to someone else notifies the assignee.
func CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	task := models.Task{
		ID:          "task-" + uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      status,
		ProjectID:   strings.TrimSpace(req.ProjectID),
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
		CreatorID:   userID,
	}
	if err := database.GetDB().Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	notifyUser(c.Request.Context(), task.AssigneeID, userID,
		fmt.Sprintf("You were assigned to %q", task.Title),
		models.NotificationMetadata{TaskID: task.ID, TaskName: task.Title, ProjectID: task.ProjectID})

	c.JSON(http.StatusCreated, task)
}

// GetTaskByID handles GET /api/tasks/:id
func GetTaskByID(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	task, ok := findTask(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus handles PATCH /api/tasks/:id/status
// The creator and the assignee may move a task; the other one is notified.
func UpdateTaskStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	task, ok := findTask(c, c.Param("id"))
	if !ok {
		return
	}
	if task.CreatorID != userID && task.AssigneeID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator or assignee can change the status"})
		return
	}
	if task.Status == req.Status {
		c.JSON(http.StatusOK, task)
		return
	}

	if err := database.GetDB().Model(&task).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	task.Status = req.Status

	meta := models.NotificationMetadata{TaskID: task.ID, TaskName: task.Title, ProjectID: task.ProjectID}
	title := fmt.Sprintf("%q moved to %s", task.Title, task.Status)
	notifyUser(c.Request.Context(), task.CreatorID, userID, title, meta)
	notifyUser(c.Request.Context(), task.AssigneeID, userID, title, meta)

	c.JSON(http.StatusOK, task)
}
