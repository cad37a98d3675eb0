package realtime

import (
	"sync"
)

// Client represents a single websocket client connection.
// The network conn itself is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub tracks every live session per user and the task rooms each session
// has joined. One user may hold several sessions at once.
type Hub struct {
	mu              sync.RWMutex
	userIdToClients map[string]map[Client]struct{}
	rooms           map[string]map[Client]struct{}
	memberships     map[Client]map[string]struct{}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns a singleton hub instance.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = NewHub()
	})
	return hubInstance
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		userIdToClients: make(map[string]map[Client]struct{}),
		rooms:           make(map[string]map[Client]struct{}),
		memberships:     make(map[Client]map[string]struct{}),
	}
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIdToClients[userID]; !ok {
		h.userIdToClients[userID] = make(map[Client]struct{})
	}
	h.userIdToClients[userID][client] = struct{}{}
}

// Unregister removes a client and every room membership it held.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIdToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIdToClients, userID)
		}
	}
	for room := range h.memberships[client] {
		h.leaveLocked(room, client)
	}
	delete(h.memberships, client)
}

// JoinRoom adds client to room. Joining twice is a no-op.
func (h *Hub) JoinRoom(room string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	if _, ok := h.memberships[client]; !ok {
		h.memberships[client] = make(map[string]struct{})
	}
	h.memberships[client][room] = struct{}{}
}

// LeaveRoom removes client from room. Leaving a room not joined is a no-op.
func (h *Hub) LeaveRoom(room string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, client)
	if m, ok := h.memberships[client]; ok {
		delete(m, room)
		if len(m) == 0 {
			delete(h.memberships, client)
		}
	}
}

func (h *Hub) leaveLocked(room string, client Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast sends a message to all clients of a user and returns how many
// accepted it. A failed client is left for its handler to clean up.
func (h *Hub) Broadcast(userID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sendAll(h.userIdToClients[userID], message)
}

// BroadcastRoom sends a message to every client joined to room.
func (h *Hub) BroadcastRoom(room string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sendAll(h.rooms[room], message)
}

func sendAll(clients map[Client]struct{}, message []byte) int {
	sent := 0
	for c := range clients {
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Sessions returns the number of live sessions for a user.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userIdToClients[userID])
}

// RoomSize returns the number of clients joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
