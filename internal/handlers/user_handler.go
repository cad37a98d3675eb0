package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"task-notifications/internal/database"
	"task-notifications/internal/models"
)

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GetAllUsers lists users so clients can resolve mentions and comment
// authors. ?username=a,b narrows the list to exact usernames.
// GET /api/users
func GetAllUsers(c *gin.Context) {
	tx := database.GetDB().Order("username")
	if raw := c.Query("username"); raw != "" {
		var names []string
		for name := range strings.SplitSeq(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username filter is empty"})
			return
		}
		tx = tx.Where("username IN ?", names)
	}

	var users []models.User
	if err := tx.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{ID: u.ID, Username: u.Username})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}
