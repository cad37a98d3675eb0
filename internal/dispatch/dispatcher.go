// Package dispatch is the single inbound entry point for push frames. Each
// frame is parsed once into a typed event and routed to exactly one handler.
package dispatch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"task-notifications/internal/cache"
	"task-notifications/internal/events"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/readstate"
	"task-notifications/internal/rooms"
	"task-notifications/internal/stats"
)

const (
	DefaultDedupTTL = 10 * time.Minute
	defaultDedupMax = 4096
)

// Options tunes redelivery detection.
type Options struct {
	DedupTTL        time.Duration
	DedupMaxEntries int
	// OnApplied, when set, is called after every applied event. It runs on
	// the read loop and must not block.
	OnApplied func(events.Kind)
}

// Counters summarise what the dispatcher did with inbound frames.
type Counters struct {
	Applied    int64
	Duplicates int64
	Dropped    int64
}

// Dispatcher routes parsed events to the store, the aggregator, the read
// coordinator and the room tracker.
type Dispatcher struct {
	recipientID string
	store       *notifstore.Store
	agg         *stats.Aggregator
	coord       *readstate.Coordinator
	rooms       *rooms.Tracker

	seen      cache.Cache[string, struct{}]
	dedupTTL  time.Duration
	onApplied func(events.Kind)

	applied    atomic.Int64
	duplicates atomic.Int64
	dropped    atomic.Int64

	log zerolog.Logger
}

// New creates a dispatcher for recipientID.
func New(recipientID string, store *notifstore.Store, agg *stats.Aggregator, coord *readstate.Coordinator, tracker *rooms.Tracker, log zerolog.Logger, opts Options) *Dispatcher {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = DefaultDedupTTL
	}
	if opts.DedupMaxEntries <= 0 {
		opts.DedupMaxEntries = defaultDedupMax
	}
	return &Dispatcher{
		recipientID: recipientID,
		store:       store,
		agg:         agg,
		coord:       coord,
		rooms:       tracker,
		seen:        cache.NewSimpleCache[string, struct{}](cache.Options{MaxEntries: opts.DedupMaxEntries}),
		dedupTTL:    opts.DedupTTL,
		onApplied:   opts.OnApplied,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch handles one raw frame. It never panics and never returns an
// error: malformed, foreign and duplicate frames are logged and dropped.
func (d *Dispatcher) Dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.log.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	msg, err := events.Parse(raw)
	if err != nil {
		d.dropped.Add(1)
		d.log.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping malformed event")
		return
	}
	if msg.ID != "" && !d.seen.Add(msg.ID, struct{}{}, d.dedupTTL) {
		d.duplicates.Add(1)
		d.log.Debug().Str("event_id", msg.ID).Stringer("kind", msg.Event.Kind()).Msg("duplicate event")
		return
	}
	if err := d.route(msg.Event); err != nil {
		d.dropped.Add(1)
		d.log.Warn().Err(err).Stringer("kind", msg.Event.Kind()).Msg("dropping event")
		return
	}
	d.applied.Add(1)
	if d.onApplied != nil {
		d.onApplied(msg.Event.Kind())
	}
}

func (d *Dispatcher) route(ev events.Event) error {
	switch e := ev.(type) {
	case events.NewNotification:
		if err := d.checkRecipient(e.Notification.RecipientID); err != nil {
			return err
		}
		if d.store.ApplyPush(e.Notification) && !e.Notification.IsRead && !e.Notification.IsArchived {
			d.agg.IncNew()
		}

	case events.NotificationRead:
		if err := d.checkRecipient(e.RecipientID); err != nil {
			return err
		}
		changed, found := d.store.MarkRead(e.NotificationID)
		switch {
		case changed:
			d.agg.DecUnread()
		case found:
			d.coord.Confirm(e.NotificationID)
		}

	case events.AllNotificationsRead:
		if err := d.checkRecipient(e.RecipientID); err != nil {
			return err
		}
		d.coord.ConfirmUpTo(e.ReadAt)
		d.store.MarkReadUpTo(e.ReadAt)
		d.agg.SetUnread(int64(d.store.CountUnreadAfter(e.ReadAt)))

	case events.StatsUpdated:
		if err := d.checkRecipient(e.Stats.RecipientID); err != nil {
			return err
		}
		d.agg.Overwrite(e.Stats)

	case events.NewComment:
		if n := d.rooms.Deliver(e.Comment); n == 0 {
			d.log.Debug().Str("task_id", e.Comment.TaskID).Msg("comment for unjoined room")
		}

	default:
		return fmt.Errorf("no route for %T", ev)
	}
	return nil
}

// checkRecipient rejects events addressed to another identity. An empty
// recipient is accepted.
func (d *Dispatcher) checkRecipient(id string) error {
	if id != "" && id != d.recipientID {
		return fmt.Errorf("event for recipient %q, session is %q", id, d.recipientID)
	}
	return nil
}

// Counters returns a snapshot of the dispatch counters.
func (d *Dispatcher) Counters() Counters {
	return Counters{
		Applied:    d.applied.Load(),
		Duplicates: d.duplicates.Load(),
		Dropped:    d.dropped.Load(),
	}
}
