package rooms

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
)

type recordingEmitter struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (r *recordingEmitter) Emit(cmd events.Command, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, fmt.Sprintf("%s:%s", cmd, taskID))
	return nil
}

func (r *recordingEmitter) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newOnlineTracker(t *testing.T) (*Tracker, *recordingEmitter) {
	t.Helper()
	tr := NewTracker(zerolog.Nop(), 4)
	em := &recordingEmitter{}
	require.NoError(t, tr.Resume(em))
	return tr, em
}

func TestJoin_ReferenceCounted(t *testing.T) {
	tr, em := newOnlineTracker(t)

	a := tr.Join("X")
	b := tr.Join("X")
	require.Equal(t, 2, tr.Count("X"))
	require.Equal(t, []string{"join-task-room:X"}, em.log(), "one logical subscription")

	a.Close()
	require.Equal(t, 1, tr.Count("X"), "one leave keeps the room joined")
	require.Equal(t, []string{"join-task-room:X"}, em.log())

	b.Close()
	require.Equal(t, 0, tr.Count("X"))
	require.Equal(t, []string{"join-task-room:X", "leave-task-room:X"}, em.log())
}

func TestLeave_Idempotent(t *testing.T) {
	tr, em := newOnlineTracker(t)
	a := tr.Join("X")
	b := tr.Join("X")

	a.Close()
	a.Close()
	require.Equal(t, 1, tr.Count("X"))
	b.Close()
	b.Close()
	require.Equal(t, []string{"join-task-room:X", "leave-task-room:X"}, em.log())
}

func TestJoin_WhileOfflineQueuedFIFO(t *testing.T) {
	tr := NewTracker(zerolog.Nop(), 4)
	tr.Join("B")
	tr.Join("A")
	tr.Join("B")
	c := tr.Join("C")
	c.Close()

	em := &recordingEmitter{}
	require.NoError(t, tr.Resume(em))
	require.Equal(t, []string{"join-task-room:B", "join-task-room:A"}, em.log())
}

func TestResume_ReplaysBeforeNewJoins(t *testing.T) {
	tr, em := newOnlineTracker(t)
	tr.Join("X")
	tr.Join("Y")
	tr.Suspend()

	em2 := &recordingEmitter{}
	require.NoError(t, tr.Resume(em2))
	tr.Join("Z")

	require.Equal(t, []string{"join-task-room:X", "join-task-room:Y"}, em.log())
	require.Equal(t, []string{"join-task-room:X", "join-task-room:Y", "join-task-room:Z"}, em2.log())
}

func TestResume_FailureKeepsTrackerOffline(t *testing.T) {
	tr := NewTracker(zerolog.Nop(), 4)
	tr.Join("X")

	err := tr.Resume(&recordingEmitter{fail: errors.New("broken pipe")})
	require.Error(t, err)

	em := &recordingEmitter{}
	tr.Join("Y")
	require.Empty(t, em.log())
	require.NoError(t, tr.Resume(em))
	require.Equal(t, []string{"join-task-room:X", "join-task-room:Y"}, em.log())
}

func TestDeliver_RoomScoped(t *testing.T) {
	tr, _ := newOnlineTracker(t)
	onY := tr.Join("Y")

	require.Equal(t, 0, tr.Deliver(models.Comment{ID: "c-1", TaskID: "X"}))
	require.Equal(t, 1, tr.Deliver(models.Comment{ID: "c-2", TaskID: "Y"}))

	got := <-onY.Comments()
	require.Equal(t, "c-2", got.ID)
	select {
	case extra := <-onY.Comments():
		t.Fatalf("unexpected comment %v", extra)
	default:
	}
}

func TestDeliver_FanOutToEveryConsumer(t *testing.T) {
	tr, _ := newOnlineTracker(t)
	a := tr.Join("X")
	b := tr.Join("X")

	require.Equal(t, 2, tr.Deliver(models.Comment{ID: "c-1", TaskID: "X"}))
	require.Equal(t, "c-1", (<-a.Comments()).ID)
	require.Equal(t, "c-1", (<-b.Comments()).ID)
}

func TestClose_EndsSubscriptions(t *testing.T) {
	tr, _ := newOnlineTracker(t)
	sub := tr.Join("X")
	tr.Close()

	_, open := <-sub.Comments()
	require.False(t, open)
	sub.Close()
	require.Empty(t, tr.Rooms())
}
