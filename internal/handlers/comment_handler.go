package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"task-notifications/internal/database"
	"task-notifications/internal/ids"
	"task-notifications/internal/models"
)

const excerptLen = 80

// CreateCommentRequest is the body of POST /api/tasks/:id/comments.
type CreateCommentRequest struct {
	Content  string   `json:"content" binding:"required"`
	Mentions []string `json:"mentions"`
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen-1]) + "…"
}

// CreateComment handles POST /api/tasks/:id/comments
// The comment is pushed to the task room; mentioned users and the assignee
// get a notification, never the author.
func CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment must not be blank"})
		return
	}
	task, ok := findTask(c, c.Param("id"))
	if !ok {
		return
	}

	mentions := slices.Compact(slices.Sorted(slices.Values(req.Mentions)))
	mentions = slices.DeleteFunc(mentions, func(id string) bool { return strings.TrimSpace(id) == "" })

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        ids.New(now),
		TaskID:    task.ID,
		AuthorID:  userID,
		Content:   req.Content,
		Mentions:  mentions,
		CreatedAt: now,
	}
	if err := database.GetDB().Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	n := notifications()
	n.PublishComment(comment)

	meta := models.NotificationMetadata{
		TaskID:         task.ID,
		TaskName:       task.Title,
		ProjectID:      task.ProjectID,
		CommentID:      comment.ID,
		CommentExcerpt: excerpt(comment.Content),
		Mentions:       mentions,
	}
	ctx := c.Request.Context()
	for _, id := range mentions {
		notifyUser(ctx, id, userID, fmt.Sprintf("You were mentioned on %q", task.Title), meta)
	}
	if !slices.Contains(mentions, task.AssigneeID) {
		notifyUser(ctx, task.AssigneeID, userID, fmt.Sprintf("New comment on %q", task.Title), meta)
	}

	c.JSON(http.StatusCreated, comment)
}

// GetComments handles GET /api/tasks/:id/comments
// Comments come back oldest first.
func GetComments(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	task, ok := findTask(c, c.Param("id"))
	if !ok {
		return
	}
	comments := []models.Comment{}
	if err := database.GetDB().Where("task_id = ?", task.ID).Order("created_at asc").Order("id asc").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"count":    len(comments),
	})
}
