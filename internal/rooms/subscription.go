package rooms

import "task-notifications/internal/models"

// Subscription is one consumer's handle on a task room.
type Subscription struct {
	id      string
	taskID  string
	ch      chan models.Comment
	tracker *Tracker
}

// TaskID returns the task the subscription is scoped to.
func (s *Subscription) TaskID() string { return s.taskID }

// Comments yields comments that arrive while the subscription is open. The
// channel is closed by Close.
func (s *Subscription) Comments() <-chan models.Comment { return s.ch }

// Close leaves the room. Calling it more than once is a no-op.
func (s *Subscription) Close() { s.tracker.leave(s) }
