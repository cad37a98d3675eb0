// Package notifier persists notifications and pushes every change to the
// recipient's live sessions, followed by a fresh stats snapshot.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"task-notifications/internal/events"
	"task-notifications/internal/ids"
	"task-notifications/internal/models"
)

// ErrNotFound is returned when a notification does not exist for the
// recipient.
var ErrNotFound = errors.New("notification not found")

// MaxPageSize bounds one List page.
const MaxPageSize = 100

// Broadcaster delivers frames to live sessions.
type Broadcaster interface {
	Broadcast(userID string, message []byte) int
	BroadcastRoom(room string, message []byte) int
}

// Notifier owns the notification table.
type Notifier struct {
	db  *gorm.DB
	hub Broadcaster
	log zerolog.Logger
	now func() time.Time
}

// New creates a notifier.
func New(db *gorm.DB, hub Broadcaster, log zerolog.Logger) *Notifier {
	return &Notifier{
		db:  db,
		hub: hub,
		log: log.With().Str("component", "notifier").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ListQuery selects one page of a recipient's notifications.
type ListQuery struct {
	RecipientID string
	Page        int
	Limit       int
	IsArchived  bool
	IsRead      *bool
}

// Page is one page of notifications, newest first.
type Page struct {
	Items      []models.Notification `json:"items"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	Total      int64                 `json:"total"`
	TotalPages int                   `json:"totalPages"`
}

// stampers holds one stamper per database handle. Notifiers are built per
// request, so the stamper cannot live on the Notifier.
var stampers sync.Map // *gorm.DB -> *stamper

// stamper hands out strictly increasing timestamps and holds its lock until
// the write carrying the stamp commits. A create stamped at or before a
// mark-all's readAt is therefore committed before that mark-all updates.
type stamper struct {
	mu   sync.Mutex
	last time.Time
}

func (n *Notifier) stamps() *stamper {
	st, _ := stampers.LoadOrStore(n.db, &stamper{})
	return st.(*stamper)
}

// stamped runs write with the next timestamp while holding the stamp lock.
func (n *Notifier) stamped(write func(at time.Time) error) (time.Time, error) {
	st := n.stamps()
	st.mu.Lock()
	defer st.mu.Unlock()

	at := n.now()
	if !at.After(st.last) {
		at = st.last.Add(time.Nanosecond)
	}
	if err := write(at); err != nil {
		return at, err
	}
	st.last = at
	return at, nil
}

// Create stores a notification and pushes it to the recipient.
func (n *Notifier) Create(ctx context.Context, recipientID string, senderID *string, title string, meta models.NotificationMetadata) (models.Notification, error) {
	var rec models.Notification
	_, err := n.stamped(func(now time.Time) error {
		rec = models.Notification{
			ID:          ids.New(now),
			RecipientID: recipientID,
			SenderID:    senderID,
			Title:       title,
			Metadata:    meta,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return n.db.WithContext(ctx).Create(&rec).Error
	})
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.push(recipientID, events.NewNotification{Notification: rec})
	n.publishStats(ctx, recipientID)
	return rec, nil
}

// List returns one page ordered by creation time, then id, both descending.
func (n *Notifier) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	q.Limit = min(q.Limit, MaxPageSize)

	tx := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_archived = ?", q.RecipientID, q.IsArchived)
	if q.IsRead != nil {
		tx = tx.Where("is_read = ?", *q.IsRead)
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count notifications: %w", err)
	}
	items := []models.Notification{}
	if err := tx.Order("created_at DESC").Order("id DESC").
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).
		Find(&items).Error; err != nil {
		return Page{}, fmt.Errorf("list notifications: %w", err)
	}

	return Page{
		Items:      items,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

// Stats counts the recipient's non-archived notifications.
func (n *Notifier) Stats(ctx context.Context, recipientID string) (models.NotificationStats, error) {
	stats := models.NotificationStats{RecipientID: recipientID}
	base := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_archived = ?", recipientID, false)
	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count notifications: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_read = ?", false).Count(&stats.Unread).Error; err != nil {
		return stats, fmt.Errorf("count unread notifications: %w", err)
	}
	return stats, nil
}

func (n *Notifier) find(ctx context.Context, id, recipientID string) (models.Notification, error) {
	var rec models.Notification
	err := n.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	return rec, err
}

// MarkRead flips one notification to read. Marking an already read
// notification returns it unchanged and pushes nothing.
func (n *Notifier) MarkRead(ctx context.Context, id, recipientID string) (models.Notification, error) {
	rec, err := n.find(ctx, id, recipientID)
	if err != nil {
		return rec, err
	}
	if rec.IsRead {
		return rec, nil
	}

	now := n.now()
	res := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "updated_at": now})
	if res.Error != nil {
		return rec, fmt.Errorf("mark notification read: %w", res.Error)
	}
	rec.IsRead = true
	rec.UpdatedAt = now
	if res.RowsAffected == 0 {
		// Lost a race with another session; that one broadcasts.
		return rec, nil
	}

	n.push(recipientID, events.NotificationRead{NotificationID: id, RecipientID: recipientID, ReadAt: now})
	n.publishStats(ctx, recipientID)
	return rec, nil
}

// MarkAllRead flips every unread notification of the recipient created at or
// before the returned readAt.
func (n *Notifier) MarkAllRead(ctx context.Context, recipientID string) (int64, time.Time, error) {
	var updated int64
	readAt, err := n.stamped(func(at time.Time) error {
		res := n.db.WithContext(ctx).Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ? AND is_archived = ? AND created_at <= ?", recipientID, false, false, at).
			Updates(map[string]any{"is_read": true, "updated_at": at})
		updated = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("mark all notifications read: %w", err)
	}

	n.push(recipientID, events.AllNotificationsRead{RecipientID: recipientID, ReadAt: readAt, Updated: updated})
	n.publishStats(ctx, recipientID)
	return updated, readAt, nil
}

// Archive hides a notification from the default listing and the counters.
func (n *Notifier) Archive(ctx context.Context, id, recipientID string) (models.Notification, error) {
	rec, err := n.find(ctx, id, recipientID)
	if err != nil {
		return rec, err
	}
	if rec.IsArchived {
		return rec, nil
	}
	rec.IsArchived = true
	rec.UpdatedAt = n.now()
	if err := n.db.WithContext(ctx).Model(&rec).
		Updates(map[string]any{"is_archived": true, "updated_at": rec.UpdatedAt}).Error; err != nil {
		return rec, fmt.Errorf("archive notification: %w", err)
	}
	n.publishStats(ctx, recipientID)
	return rec, nil
}

// PublishComment pushes a comment to everyone joined to its task room.
func (n *Notifier) PublishComment(c models.Comment) int {
	frame, err := events.Encode(events.NewComment{Comment: c})
	if err != nil {
		n.log.Error().Err(err).Str("comment_id", c.ID).Msg("encode comment")
		return 0
	}
	return n.hub.BroadcastRoom(events.TaskRoom(c.TaskID), frame)
}

func (n *Notifier) publishStats(ctx context.Context, recipientID string) {
	stats, err := n.Stats(ctx, recipientID)
	if err != nil {
		n.log.Warn().Err(err).Str("recipient_id", recipientID).Msg("stats snapshot not pushed")
		return
	}
	n.push(recipientID, events.StatsUpdated{Stats: stats})
}

func (n *Notifier) push(recipientID string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		n.log.Error().Err(err).Stringer("kind", ev.Kind()).Msg("encode event")
		return
	}
	sent := n.hub.Broadcast(recipientID, frame)
	n.log.Debug().Stringer("kind", ev.Kind()).Str("recipient_id", recipientID).Int("sessions", sent).Msg("pushed")
}
