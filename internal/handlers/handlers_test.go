package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"task-notifications/internal/auth"
	"task-notifications/internal/database"
	"task-notifications/internal/events"
	"task-notifications/internal/middleware"
	"task-notifications/internal/models"
	"task-notifications/internal/realtime"
	"task-notifications/internal/testutil"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, name string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{ID: id, Username: name, Password: "x"}).Error)
}

func doJSON(t *testing.T, r http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken(userID, userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// liveClient records frames pushed through the shared hub.
type liveClient struct {
	mu     sync.Mutex
	frames []events.Event
}

func (c *liveClient) Send(message []byte) bool {
	msg, err := events.Parse(message)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, msg.Event)
	return true
}

func (c *liveClient) Close() {}

func (c *liveClient) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []events.Kind{}
	for _, f := range c.frames {
		out = append(out, f.Kind())
	}
	return out
}

func (c *liveClient) received() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.frames...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// watch registers a recording client for userID on the shared hub.
func watch(t *testing.T, userID string) *liveClient {
	t.Helper()
	c := &liveClient{}
	hub := realtime.GetHub()
	hub.Register(userID, c)
	t.Cleanup(func() { hub.Unregister(userID, c) })
	return c
}

func protected() *gin.Engine {
	r := gin.New()
	r.Use(middleware.JWTAuthMiddleware())
	return r
}
