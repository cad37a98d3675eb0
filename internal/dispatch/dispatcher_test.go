package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/readstate"
	"task-notifications/internal/restclient"
	"task-notifications/internal/rooms"
	"task-notifications/internal/stats"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type gatedAPI struct {
	entered chan struct{}
	gate    chan struct{}
	readAt  time.Time
}

func (g *gatedAPI) MarkRead(_ context.Context, id, recipientID string) (models.Notification, error) {
	return models.Notification{ID: id, RecipientID: recipientID, IsRead: true}, nil
}

func (g *gatedAPI) MarkAllRead(context.Context) (restclient.MarkAllResult, error) {
	g.entered <- struct{}{}
	<-g.gate
	return restclient.MarkAllResult{Updated: 4, ReadAt: g.readAt}, nil
}

type harness struct {
	store   *notifstore.Store
	agg     *stats.Aggregator
	coord   *readstate.Coordinator
	tracker *rooms.Tracker
	d       *Dispatcher
}

func newHarness(t *testing.T, api readstate.API) harness {
	t.Helper()
	log := zerolog.Nop()
	store := notifstore.New("u-1", nil, 10)
	agg := stats.New("u-1", nil, log)
	coord := readstate.New("u-1", api, store, agg, log)
	tracker := rooms.NewTracker(log, 4)
	t.Cleanup(tracker.Close)
	return harness{
		store:   store,
		agg:     agg,
		coord:   coord,
		tracker: tracker,
		d:       New("u-1", store, agg, coord, tracker, log, Options{}),
	}
}

func frame(t *testing.T, ev events.Event) []byte {
	t.Helper()
	raw, err := events.Encode(ev)
	require.NoError(t, err)
	return raw
}

func pushed(id string, minute int) events.NewNotification {
	return events.NewNotification{Notification: models.Notification{
		ID:          id,
		RecipientID: "u-1",
		Title:       "assigned " + id,
		CreatedAt:   base.Add(time.Duration(minute) * time.Minute),
	}}
}

func snapshot(total, unread int64) events.StatsUpdated {
	return events.StatsUpdated{Stats: models.NotificationStats{RecipientID: "u-1", Total: total, Unread: unread}}
}

func TestDispatch_NoDoubleCounting(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Dispatch(frame(t, snapshot(10, 3)))

	for i := range 5 {
		h.d.Dispatch(frame(t, pushed(string(rune('a'+i)), i)))
	}
	require.Equal(t, stats.Counts{Total: 15, Unread: 8}, h.agg.Get())

	h.d.Dispatch(frame(t, snapshot(12, 4)))
	require.Equal(t, stats.Counts{Total: 12, Unread: 4}, h.agg.Get())
}

func TestDispatch_RedeliveryAppliedOnce(t *testing.T) {
	h := newHarness(t, nil)
	raw := frame(t, pushed("a", 1))

	h.d.Dispatch(raw)
	h.d.Dispatch(raw)

	require.Equal(t, 1, h.store.Len())
	require.Equal(t, stats.Counts{Total: 1, Unread: 1}, h.agg.Get())
	require.Equal(t, Counters{Applied: 1, Duplicates: 1}, h.d.Counters())
}

func TestDispatch_SameRecordNewEnvelopeNotCountedTwice(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Dispatch(frame(t, pushed("a", 1)))
	h.d.Dispatch(frame(t, pushed("a", 1)))
	require.Equal(t, stats.Counts{Total: 1, Unread: 1}, h.agg.Get())
}

func TestDispatch_OnAppliedSkipsDuplicatesAndDrops(t *testing.T) {
	h := newHarness(t, nil)
	var applied []events.Kind
	h.d = New("u-1", h.store, h.agg, h.coord, h.tracker, zerolog.Nop(), Options{
		OnApplied: func(k events.Kind) { applied = append(applied, k) },
	})

	raw := frame(t, pushed("n1", 1))
	h.d.Dispatch(raw)
	h.d.Dispatch(raw)
	h.d.Dispatch([]byte(`{"type":`))
	h.d.Dispatch(frame(t, snapshot(1, 1)))

	require.Equal(t, []events.Kind{events.KindNewNotification, events.KindStatsUpdated}, applied)
}

func TestDispatch_MalformedDropped(t *testing.T) {
	h := newHarness(t, nil)
	require.NotPanics(t, func() {
		h.d.Dispatch([]byte("not json"))
		h.d.Dispatch([]byte(`{"type":"task-deleted","payload":{}}`))
		h.d.Dispatch([]byte(`{"type":"new-notification","payload":{"title":"no id"}}`))
		h.d.Dispatch([]byte(`{"type":"notification-stats-updated","payload":{"total":1,"unread":5}}`))
	})
	require.Equal(t, int64(4), h.d.Counters().Dropped)
	require.Equal(t, 0, h.store.Len())
}

func TestDispatch_ForeignRecipientDropped(t *testing.T) {
	h := newHarness(t, nil)
	ev := pushed("a", 1)
	ev.Notification.RecipientID = "u-2"
	h.d.Dispatch(frame(t, ev))
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, int64(1), h.d.Counters().Dropped)
}

func TestDispatch_NotificationReadFromOtherSession(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Dispatch(frame(t, snapshot(3, 2)))
	h.store.ApplyPush(pushed("a", 1).Notification)

	read := events.NotificationRead{NotificationID: "a", RecipientID: "u-1", ReadAt: base}
	h.d.Dispatch(frame(t, read))
	h.d.Dispatch(frame(t, read))

	got, ok := h.store.Get("a")
	require.True(t, ok)
	require.True(t, got.IsRead)
	require.Equal(t, stats.Counts{Total: 3, Unread: 1}, h.agg.Get())
}

func TestDispatch_CommentRoomScoped(t *testing.T) {
	h := newHarness(t, nil)
	x := h.tracker.Join("task-x")
	y := h.tracker.Join("task-y")

	h.d.Dispatch(frame(t, events.NewComment{Comment: models.Comment{ID: "c1", TaskID: "task-x", AuthorID: "u-2", Content: "hi"}}))

	select {
	case c := <-x.Comments():
		require.Equal(t, "c1", c.ID)
	case <-time.After(time.Second):
		t.Fatal("comment not delivered to joined room")
	}
	select {
	case c := <-y.Comments():
		t.Fatalf("unexpected comment %s in other room", c.ID)
	default:
	}
}

func TestDispatch_EndToEndMarkAll(t *testing.T) {
	api := &gatedAPI{entered: make(chan struct{}, 1), gate: make(chan struct{}), readAt: base.Add(time.Hour)}
	h := newHarness(t, api)

	h.d.Dispatch(frame(t, snapshot(10, 3)))
	for i, id := range []string{"n1", "n2", "n3"} {
		h.store.ApplyPush(pushed(id, i).Notification)
	}

	h.d.Dispatch(frame(t, pushed("n4", 10)))
	require.Equal(t, stats.Counts{Total: 11, Unread: 4}, h.agg.Get())

	done := make(chan error, 1)
	go func() { done <- h.coord.MarkAllAsRead(context.Background()) }()
	<-api.entered
	require.Equal(t, stats.Counts{Total: 11, Unread: 0}, h.agg.Get())

	// The server's broadcasts can land before the REST response.
	h.d.Dispatch(frame(t, events.AllNotificationsRead{RecipientID: "u-1", ReadAt: api.readAt, Updated: 4}))
	h.d.Dispatch(frame(t, snapshot(11, 0)))
	close(api.gate)
	require.NoError(t, <-done)

	require.Equal(t, stats.Counts{Total: 11, Unread: 0}, h.agg.Get())
	for _, n := range h.store.Snapshot() {
		require.True(t, n.IsRead, n.ID)
	}
}
