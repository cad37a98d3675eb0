package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"task-notifications/internal/database"
	"task-notifications/internal/events"
	"task-notifications/internal/models"
	"task-notifications/internal/realtime"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 1024
)

// wsClient implements realtime.Client by wrapping a websocket connection.
// gorilla allows one concurrent writer, so data frames go through mu.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(message []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, message) == nil
}

func (c *wsClient) Close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled at the gin level.
		return true
	},
}

// handleCommand applies one client command to the hub. Joins for unknown
// tasks are ignored.
func handleCommand(hub *realtime.Hub, client realtime.Client, userID string, raw []byte) {
	cmd, payload, err := events.ParseCommand(raw)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("ignoring client frame")
		return
	}
	room := events.TaskRoom(payload.TaskID)
	switch cmd {
	case events.CommandJoinTaskRoom:
		var count int64
		if err := database.GetDB().Model(&models.Task{}).Where("id = ?", payload.TaskID).Count(&count).Error; err != nil || count == 0 {
			log.Debug().Err(err).Str("task_id", payload.TaskID).Msg("join for unknown task")
			return
		}
		hub.JoinRoom(room, client)
	case events.CommandLeaveTaskRoom:
		hub.LeaveRoom(room, client)
	}
}

// WebSocketHandler upgrades the connection and registers the client to the hub.
// It requires JWT middleware to have set "user_id" in context.
func WebSocketHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := &wsClient{conn: conn}
	hub := realtime.GetHub()
	hub.Register(userID, client)
	log.Debug().Str("user_id", userID).Int("sessions", hub.Sessions(userID)).Msg("live session opened")

	pingTicker := time.NewTicker(wsPingPeriod)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		pingTicker.Stop()
		hub.Unregister(userID, client)
		client.Close()
		log.Debug().Str("user_id", userID).Msg("live session closed")
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		handleCommand(hub, client, userID, data)
	}
}
