package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
)

func TestCreateTask_NotifiesAssignee(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "u-1", "alice")
	seedUser(t, db, "u-2", "bob")
	bob := watch(t, "u-2")

	r := protected()
	r.POST("/api/tasks", CreateTask)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", "u-1", map[string]any{
		"title":      "Test Task",
		"projectId":  "p-1",
		"assigneeId": "u-2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	decode(t, w, &task)
	require.Equal(t, models.StatusTodo, task.Status)
	require.Equal(t, "u-1", task.CreatorID)

	var notes []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", "u-2").Find(&notes).Error)
	require.Len(t, notes, 1)
	require.Equal(t, task.ID, notes[0].Metadata.TaskID)
	require.Equal(t, "u-1", *notes[0].SenderID)

	require.Equal(t, []events.Kind{events.KindNewNotification, events.KindStatsUpdated}, bob.kinds())
}

func TestCreateTask_SelfAssignDoesNotNotify(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "u-1", "alice")

	r := protected()
	r.POST("/api/tasks", CreateTask)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", "u-1", map[string]any{
		"title":      "Mine",
		"assigneeId": "u-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateTask_InvalidStatus(t *testing.T) {
	setupDB(t)
	r := protected()
	r.POST("/api/tasks", CreateTask)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", "u-1", map[string]any{
		"title":  "Bad",
		"status": "archived",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTask_Unauthorized(t *testing.T) {
	setupDB(t)
	r := protected()
	r.POST("/api/tasks", CreateTask)

	w := doJSON(t, r, http.MethodPost, "/api/tasks", "", map[string]any{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTasks_OnlyOwnOrAssigned(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&[]models.Task{
		{ID: "t-1", Title: "created", Status: models.StatusTodo, CreatorID: "u-1"},
		{ID: "t-2", Title: "assigned", Status: models.StatusTodo, CreatorID: "u-3", AssigneeID: "u-1"},
		{ID: "t-3", Title: "other", Status: models.StatusTodo, CreatorID: "u-3"},
	}).Error)

	r := protected()
	r.GET("/api/tasks", GetTasks)

	w := doJSON(t, r, http.MethodGet, "/api/tasks", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []models.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	decode(t, w, &resp)
	require.EqualValues(t, 2, resp.Total)
	ids := []string{resp.Tasks[0].ID, resp.Tasks[1].ID}
	require.ElementsMatch(t, []string{"t-1", "t-2"}, ids)
}

func TestGetTaskByID_NotFound(t *testing.T) {
	setupDB(t)
	r := protected()
	r.GET("/api/tasks/:id", GetTaskByID)

	w := doJSON(t, r, http.MethodGet, "/api/tasks/missing", "u-1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTaskStatus(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "u-1", "alice")
	seedUser(t, db, "u-2", "bob")
	require.NoError(t, db.Create(&models.Task{
		ID: "t-1", Title: "ship", Status: models.StatusTodo, CreatorID: "u-1", AssigneeID: "u-2",
	}).Error)

	r := protected()
	r.PATCH("/api/tasks/:id/status", UpdateTaskStatus)

	t.Run("stranger is forbidden", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPatch, "/api/tasks/t-1/status", "u-9", map[string]string{"status": "done"})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("assignee moves it and the creator is notified", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPatch, "/api/tasks/t-1/status", "u-2", map[string]string{"status": "inProgress"})
		require.Equal(t, http.StatusOK, w.Code)

		var task models.Task
		require.NoError(t, db.First(&task, "id = ?", "t-1").Error)
		require.Equal(t, models.StatusInProgress, task.Status)

		var notes []models.Notification
		require.NoError(t, db.Find(&notes).Error)
		require.Len(t, notes, 1)
		require.Equal(t, "u-1", notes[0].RecipientID)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPatch, "/api/tasks/t-1/status", "u-2", map[string]string{"status": "inProgress"})
		require.Equal(t, http.StatusOK, w.Code)

		var count int64
		require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
		require.EqualValues(t, 1, count)
	})

	t.Run("invalid status", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPatch, "/api/tasks/t-1/status", "u-2", map[string]string{"status": "nope"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
