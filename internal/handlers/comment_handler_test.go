package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
	"task-notifications/internal/realtime"
)

func TestCreateComment_PushesToRoomAndNotifies(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "u-1", "alice")
	seedUser(t, db, "u-2", "bob")
	seedUser(t, db, "u-3", "carol")
	require.NoError(t, db.Create(&models.Task{
		ID: "t-1", Title: "ship", Status: models.StatusTodo, CreatorID: "u-1", AssigneeID: "u-2",
	}).Error)

	viewer := &liveClient{}
	hub := realtime.GetHub()
	hub.JoinRoom(events.TaskRoom("t-1"), viewer)
	t.Cleanup(func() { hub.LeaveRoom(events.TaskRoom("t-1"), viewer) })

	r := protected()
	r.POST("/api/tasks/:id/comments", CreateComment)

	w := doJSON(t, r, http.MethodPost, "/api/tasks/t-1/comments", "u-1", map[string]any{
		"content":  "looks good @carol",
		"mentions": []string{"u-3", "u-3", "u-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var comment models.Comment
	decode(t, w, &comment)
	require.Equal(t, []string{"u-1", "u-3"}, comment.Mentions)

	got := viewer.received()
	require.Len(t, got, 1)
	pushed, ok := got[0].(events.NewComment)
	require.True(t, ok)
	require.Equal(t, comment.ID, pushed.Comment.ID)

	var notes []models.Notification
	require.NoError(t, db.Order("recipient_id").Find(&notes).Error)
	require.Len(t, notes, 2, "mentioned user and assignee, never the author")
	require.Equal(t, "u-2", notes[0].RecipientID)
	require.Equal(t, "u-3", notes[1].RecipientID)
	require.Equal(t, comment.ID, notes[1].Metadata.CommentID)
}

func TestCreateComment_Validation(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Task{ID: "t-1", Title: "ship", Status: models.StatusTodo, CreatorID: "u-1"}).Error)

	r := protected()
	r.POST("/api/tasks/:id/comments", CreateComment)

	w := doJSON(t, r, http.MethodPost, "/api/tasks/t-1/comments", "u-1", map[string]any{"content": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/tasks/nope/comments", "u-1", map[string]any{"content": "hi"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetComments_OldestFirst(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Task{ID: "t-1", Title: "ship", Status: models.StatusTodo, CreatorID: "u-1"}).Error)

	r := protected()
	r.POST("/api/tasks/:id/comments", CreateComment)
	r.GET("/api/tasks/:id/comments", GetComments)

	for _, text := range []string{"first", "second"} {
		w := doJSON(t, r, http.MethodPost, "/api/tasks/t-1/comments", "u-1", map[string]any{"content": text})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/tasks/t-1/comments", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Comments []models.Comment `json:"comments"`
		Count    int              `json:"count"`
	}
	decode(t, w, &resp)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "first", resp.Comments[0].Content)
	require.Equal(t, "second", resp.Comments[1].Content)
}

func TestExcerpt(t *testing.T) {
	require.Equal(t, "short", excerpt("  short "))
	long := strings.Repeat("é", 100)
	got := []rune(excerpt(long))
	require.Len(t, got, excerptLen)
	require.Equal(t, '…', got[len(got)-1])
}
