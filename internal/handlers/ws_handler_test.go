package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
	"task-notifications/internal/realtime"
)

func TestHandleCommand(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Task{ID: "t-1", Title: "ship", Status: models.StatusTodo, CreatorID: "u-1"}).Error)

	hub := realtime.NewHub()
	client := &liveClient{}
	hub.Register("u-1", client)

	join, err := events.EncodeCommand(events.CommandJoinTaskRoom, "t-1")
	require.NoError(t, err)
	handleCommand(hub, client, "u-1", join)
	handleCommand(hub, client, "u-1", join)
	require.Equal(t, 1, hub.RoomSize(events.TaskRoom("t-1")))

	unknown, err := events.EncodeCommand(events.CommandJoinTaskRoom, "t-404")
	require.NoError(t, err)
	handleCommand(hub, client, "u-1", unknown)
	require.Zero(t, hub.RoomSize(events.TaskRoom("t-404")))

	handleCommand(hub, client, "u-1", []byte("{not json"))
	require.Equal(t, 1, hub.RoomSize(events.TaskRoom("t-1")))

	leave, err := events.EncodeCommand(events.CommandLeaveTaskRoom, "t-1")
	require.NoError(t, err)
	handleCommand(hub, client, "u-1", leave)
	require.Zero(t, hub.RoomSize(events.TaskRoom("t-1")))
}
