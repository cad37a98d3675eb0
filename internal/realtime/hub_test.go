package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu   sync.Mutex
	msgs []string
	fail bool
}

func (c *recordingClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.msgs = append(c.msgs, string(message))
	return true
}

func (c *recordingClient) Close() {}

func (c *recordingClient) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func TestBroadcast_AllSessionsOfUser(t *testing.T) {
	h := NewHub()
	tab1, tab2, other := &recordingClient{}, &recordingClient{}, &recordingClient{}
	h.Register("u-1", tab1)
	h.Register("u-1", tab2)
	h.Register("u-2", other)

	require.Equal(t, 2, h.Broadcast("u-1", []byte("hello")))
	require.Equal(t, []string{"hello"}, tab1.received())
	require.Equal(t, []string{"hello"}, tab2.received())
	require.Empty(t, other.received())
}

func TestBroadcast_FailedClientNotCounted(t *testing.T) {
	h := NewHub()
	h.Register("u-1", &recordingClient{fail: true})
	h.Register("u-1", &recordingClient{})
	require.Equal(t, 1, h.Broadcast("u-1", []byte("x")))
}

func TestRooms_JoinLeaveIdempotent(t *testing.T) {
	h := NewHub()
	c := &recordingClient{}
	h.Register("u-1", c)

	h.JoinRoom("task:1", c)
	h.JoinRoom("task:1", c)
	require.Equal(t, 1, h.RoomSize("task:1"))

	require.Equal(t, 1, h.BroadcastRoom("task:1", []byte("comment")))
	require.Equal(t, 0, h.BroadcastRoom("task:2", []byte("comment")))

	h.LeaveRoom("task:1", c)
	h.LeaveRoom("task:1", c)
	require.Equal(t, 0, h.RoomSize("task:1"))
}

func TestUnregister_DropsMemberships(t *testing.T) {
	h := NewHub()
	c := &recordingClient{}
	h.Register("u-1", c)
	h.JoinRoom("task:1", c)
	h.JoinRoom("task:2", c)

	h.Unregister("u-1", c)
	require.Equal(t, 0, h.Sessions("u-1"))
	require.Equal(t, 0, h.RoomSize("task:1"))
	require.Equal(t, 0, h.RoomSize("task:2"))
	require.Empty(t, h.memberships)
}
