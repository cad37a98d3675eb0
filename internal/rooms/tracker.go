// Package rooms tracks task-scoped comment room membership for one client
// session. Membership is reference-counted per task: the server is told to
// join on the first local consumer and to leave after the last one is gone.
package rooms

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"task-notifications/internal/events"
	"task-notifications/internal/models"
)

// DefaultBuffer is the per-consumer comment buffer.
const DefaultBuffer = 32

// Emitter sends a room command over the live channel.
type Emitter interface {
	Emit(cmd events.Command, taskID string) error
}

type room struct {
	consumers map[string]*Subscription
}

// Tracker owns room membership. While no Emitter is attached the tracker is
// offline: joins are recorded and replayed in first-join order by Resume.
type Tracker struct {
	mu      sync.Mutex
	rooms   map[string]*room
	order   []string
	emitter Emitter
	buffer  int
	log     zerolog.Logger
}

// NewTracker creates an offline tracker.
func NewTracker(log zerolog.Logger, buffer int) *Tracker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Tracker{
		rooms:  make(map[string]*room),
		buffer: buffer,
		log:    log.With().Str("component", "rooms").Logger(),
	}
}

// Join registers a new consumer for the task's room.
func (t *Tracker) Join(taskID string) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &Subscription{
		id:      uuid.NewString(),
		taskID:  taskID,
		ch:      make(chan models.Comment, t.buffer),
		tracker: t,
	}

	r, ok := t.rooms[taskID]
	if !ok {
		r = &room{consumers: make(map[string]*Subscription)}
		t.rooms[taskID] = r
		t.order = append(t.order, taskID)
		if t.emitter != nil {
			// A failed join is not fatal: the room stays tracked and is
			// replayed by the next Resume.
			if err := t.emitter.Emit(events.CommandJoinTaskRoom, taskID); err != nil {
				t.log.Warn().Err(err).Str("task_id", taskID).Msg("join deferred to reconnect")
			}
		}
	}
	r.consumers[sub.id] = sub
	return sub
}

func (t *Tracker) leave(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[sub.taskID]
	if !ok {
		return
	}
	if _, member := r.consumers[sub.id]; !member {
		return
	}
	delete(r.consumers, sub.id)
	close(sub.ch)
	if len(r.consumers) > 0 {
		return
	}

	delete(t.rooms, sub.taskID)
	t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == sub.taskID })
	if t.emitter != nil {
		if err := t.emitter.Emit(events.CommandLeaveTaskRoom, sub.taskID); err != nil {
			t.log.Debug().Err(err).Str("task_id", sub.taskID).Msg("leave not sent")
		}
	}
}

// Resume attaches e and re-sends a join for every tracked room in first-join
// order. Joins issued concurrently wait until the replay has finished.
func (t *Tracker) Resume(e Emitter) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, taskID := range t.order {
		if err := e.Emit(events.CommandJoinTaskRoom, taskID); err != nil {
			return fmt.Errorf("replay join %s: %w", taskID, err)
		}
	}
	t.emitter = e
	return nil
}

// Suspend detaches the emitter after the channel dropped. Server-side
// membership is gone with the connection, so nothing is sent.
func (t *Tracker) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitter = nil
}

// Deliver hands c to every consumer joined to its task and returns how many
// received it. Comments for rooms nobody joined are dropped.
func (t *Tracker) Deliver(c models.Comment) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[c.TaskID]
	if !ok {
		return 0
	}
	delivered := 0
	for _, sub := range r.consumers {
		select {
		case sub.ch <- c:
			delivered++
		default:
			t.log.Warn().Str("task_id", c.TaskID).Str("comment_id", c.ID).Msg("consumer buffer full, comment dropped")
		}
	}
	return delivered
}

// Count returns the number of local consumers joined to the task's room.
func (t *Tracker) Count(taskID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rooms[taskID]; ok {
		return len(r.consumers)
	}
	return 0
}

// Rooms returns the joined task ids in first-join order.
func (t *Tracker) Rooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.order)
}

// Close ends every subscription without notifying the server.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rooms {
		for _, sub := range r.consumers {
			close(sub.ch)
		}
	}
	t.rooms = make(map[string]*room)
	t.order = nil
	t.emitter = nil
}
