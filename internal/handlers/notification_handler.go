package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-notifications/internal/notifier"
)

// MarkReadRequest is the body of PATCH /api/notifications/:id/read.
type MarkReadRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
}

// ownRecipient checks that the path or body recipient is the caller.
func ownRecipient(c *gin.Context, userID, recipientID string) bool {
	if recipientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot access another user's notifications"})
		return false
	}
	return true
}

// ListNotifications handles GET /api/notifications/:recipientId
// Query: page, limit, isArchived (default false), isRead (optional).
func ListNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipientID := c.Param("recipientId")
	if !ownRecipient(c, userID, recipientID) {
		return
	}

	isRead, ok := queryBool(c, "isRead")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isRead must be true or false"})
		return
	}
	isArchived, ok := queryBool(c, "isArchived")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isArchived must be true or false"})
		return
	}

	q := notifier.ListQuery{
		RecipientID: recipientID,
		Page:        queryInt(c, "page", 1),
		Limit:       queryInt(c, "limit", 20),
		IsRead:      isRead,
	}
	if isArchived != nil {
		q.IsArchived = *isArchived
	}

	page, err := notifications().List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetNotificationStats handles GET /api/notifications/:recipientId/stats
func GetNotificationStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipientID := c.Param("recipientId")
	if !ownRecipient(c, userID, recipientID) {
		return
	}

	stats, err := notifications().Stats(c.Request.Context(), recipientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MarkNotificationRead handles PATCH /api/notifications/:id/read
// Re-marking a read notification succeeds and returns it unchanged.
func MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ownRecipient(c, userID, req.RecipientID) {
		return
	}

	rec, err := notifications().MarkRead(c.Request.Context(), c.Param("id"), req.RecipientID)
	if err != nil {
		writeNotifierError(c, err, "Failed to mark notification read")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// MarkAllNotificationsRead handles PATCH /api/notifications/read-all
// It acts on every notification of the caller's identity created up to the
// returned readAt.
func MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	updated, readAt, err := notifications().MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"updated": updated,
		"readAt":  readAt,
	})
}

// ArchiveNotification handles PATCH /api/notifications/:id/archive
func ArchiveNotification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	rec, err := notifications().Archive(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeNotifierError(c, err, "Failed to archive notification")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func writeNotifierError(c *gin.Context, err error, msg string) {
	if errors.Is(err, notifier.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
