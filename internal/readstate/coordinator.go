// Package readstate runs mark-read and mark-all-read as optimistic,
// rollback-capable operations over the notification store and the stats
// aggregator.
package readstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"task-notifications/internal/models"
	"task-notifications/internal/notifstore"
	"task-notifications/internal/restclient"
	"task-notifications/internal/stats"
)

// ErrStaleWrite marks a read targeting a record the store no longer holds.
// It is logged and never returned.
var ErrStaleWrite = errors.New("readstate: notification not present locally")

// State is the per-notification read state.
type State int

const (
	StateUnknown State = iota
	StateUnread
	StatePending
	StateRead
)

func (s State) String() string {
	switch s {
	case StateUnread:
		return "unread"
	case StatePending:
		return "pending"
	case StateRead:
		return "read"
	default:
		return "unknown"
	}
}

// API is the mutating half of the REST collaborator.
type API interface {
	MarkRead(ctx context.Context, notificationID, recipientID string) (models.Notification, error)
	MarkAllRead(ctx context.Context) (restclient.MarkAllResult, error)
}

// pending is one in-flight optimistic read. confirmed is set when a push
// reports the read before the REST call returns, in which case a failed
// call must not roll the record back.
type pending struct {
	confirmed bool
}

// Coordinator owns the Pending state. Store and aggregator writes happen
// only here and in the dispatcher.
type Coordinator struct {
	mu          sync.Mutex
	recipientID string
	api         API
	store       *notifstore.Store
	agg         *stats.Aggregator
	pending     map[string]*pending
	log         zerolog.Logger
}

// New creates a coordinator for recipientID.
func New(recipientID string, api API, store *notifstore.Store, agg *stats.Aggregator, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		recipientID: recipientID,
		api:         api,
		store:       store,
		agg:         agg,
		pending:     make(map[string]*pending),
		log:         log.With().Str("component", "readstate").Logger(),
	}
}

// State reports where id is in Unread → Pending → Read.
func (c *Coordinator) State(id string) State {
	c.mu.Lock()
	_, inFlight := c.pending[id]
	c.mu.Unlock()
	if inFlight {
		return StatePending
	}
	n, ok := c.store.Get(id)
	switch {
	case !ok:
		return StateUnknown
	case n.IsRead:
		return StateRead
	default:
		return StateUnread
	}
}

// MarkAsRead flips id to read locally, then confirms with the server. On a
// failed call the record and the unread counter are restored and the
// request error is returned. Calling it again while pending or after the
// record is read does nothing.
func (c *Coordinator) MarkAsRead(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, inFlight := c.pending[id]; inFlight {
		c.mu.Unlock()
		return nil
	}
	changed, found := c.store.MarkRead(id)
	if !found {
		c.mu.Unlock()
		c.log.Debug().Err(ErrStaleWrite).Str("notification_id", id).Msg("mark read skipped")
		return nil
	}
	if !changed {
		c.mu.Unlock()
		return nil
	}
	gen := c.agg.DecUnread()
	p := &pending{}
	c.pending[id] = p
	c.mu.Unlock()

	rec, err := c.api.MarkRead(ctx, id, c.recipientID)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)

	if err != nil {
		if !p.confirmed {
			c.store.RevertRead(id)
			c.agg.AddUnread(gen, 1)
		}
		c.log.Warn().Err(err).Str("notification_id", id).Bool("confirmed", p.confirmed).Msg("mark read failed")
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	c.store.ApplyPush(rec)
	return nil
}

// MarkAllAsRead flips every known unread record and zeroes unread, then
// reconciles with the server's readAt watermark. Records created after that
// watermark stay unread.
func (c *Coordinator) MarkAllAsRead(ctx context.Context) error {
	c.mu.Lock()
	flipped := c.store.MarkAllRead()
	prev, gen := c.agg.ZeroUnread()
	batch := make(map[string]*pending, len(flipped))
	for _, id := range flipped {
		p := &pending{}
		batch[id] = p
		c.pending[id] = p
	}
	c.mu.Unlock()

	res, err := c.api.MarkAllRead(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range batch {
		delete(c.pending, id)
	}

	if err != nil {
		restored := prev
		for id, p := range batch {
			if p.confirmed {
				restored--
				continue
			}
			c.store.RevertRead(id)
		}
		c.agg.AddUnread(gen, max(restored, 0))
		c.log.Warn().Err(err).Int("flipped", len(flipped)).Msg("mark all read failed")
		return fmt.Errorf("mark all notifications read: %w", err)
	}

	c.reconcileAllLocked(res.ReadAt, gen)
	c.log.Debug().Int64("updated", res.Updated).Time("read_at", res.ReadAt).Msg("mark all read acknowledged")
	return nil
}

func (c *Coordinator) reconcileAllLocked(readAt time.Time, gen stats.Generation) {
	c.store.MarkReadUpTo(readAt)
	c.agg.SetUnreadIf(gen, int64(c.store.CountUnreadAfter(readAt)))
}

// Confirm records that the server reported id as read. An in-flight call
// for id that later fails will leave the record read.
func (c *Coordinator) Confirm(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[id]; ok {
		p.confirmed = true
	}
}

// ConfirmUpTo confirms every in-flight read of a record created at or
// before readAt.
func (c *Coordinator) ConfirmUpTo(readAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		if n, ok := c.store.Get(id); ok && !n.CreatedAt.After(readAt) {
			p.confirmed = true
		}
	}
}

// Pending returns the number of in-flight reads.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
