package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"task-notifications/internal/database"
	"task-notifications/internal/middleware"
	"task-notifications/internal/notifier"
	"task-notifications/internal/realtime"
)

// notifications binds the notifier to the current database and hub.
func notifications() *notifier.Notifier {
	return notifier.New(database.GetDB(), realtime.GetHub(), log.Logger)
}

// currentUser returns the authenticated user id or writes 401.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return "", false
	}
	return userID, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// queryBool parses an optional boolean filter. ok is false if the parameter
// is present but malformed.
func queryBool(c *gin.Context, key string) (value *bool, ok bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}
