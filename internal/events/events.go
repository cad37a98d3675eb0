// Package events defines the live push protocol shared by the realtime hub
// and the client core: the closed set of inbound event kinds, the outbound
// room commands, and the JSON envelope both travel in.
//
// Raw wire names are only ever compared here. Everything past Parse works
// with Kind values and typed payloads.
package events

import (
	"time"

	"task-notifications/internal/models"
)

// Kind enumerates the inbound live event kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindNewNotification
	KindNotificationRead
	KindAllNotificationsRead
	KindStatsUpdated
	KindNewComment
)

var wireNames = map[Kind]string{
	KindNewNotification:      "new-notification",
	KindNotificationRead:     "notification-read",
	KindAllNotificationsRead: "all-notifications-read",
	KindStatsUpdated:         "notification-stats-updated",
	KindNewComment:           "new-comment",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(wireNames))
	for k, name := range wireNames {
		m[name] = k
	}
	return m
}()

// String returns the wire name of k.
func (k Kind) String() string {
	if name, ok := wireNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindOf maps a wire name to its Kind.
func KindOf(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// Kinds returns every routable kind.
func Kinds() []Kind {
	return []Kind{
		KindNewNotification,
		KindNotificationRead,
		KindAllNotificationsRead,
		KindStatsUpdated,
		KindNewComment,
	}
}

// Event is one decoded inbound live event. The set of implementations is
// closed to this package.
type Event interface {
	Kind() Kind
	isEvent()
}

// NewNotification announces a freshly created notification.
type NewNotification struct {
	Notification models.Notification
}

// NotificationRead announces that one notification was marked read, possibly
// from another session of the same identity.
type NotificationRead struct {
	NotificationID string    `json:"notificationId"`
	RecipientID    string    `json:"recipientId"`
	ReadAt         time.Time `json:"readAt"`
}

// AllNotificationsRead announces a mark-all. Only notifications created at or
// before ReadAt were flipped server-side.
type AllNotificationsRead struct {
	RecipientID string    `json:"recipientId"`
	ReadAt      time.Time `json:"readAt"`
	Updated     int64     `json:"updated"`
}

// StatsUpdated carries a full counter snapshot.
type StatsUpdated struct {
	Stats models.NotificationStats
}

// NewComment carries a comment posted to a task room.
type NewComment struct {
	Comment models.Comment
}

func (NewNotification) Kind() Kind      { return KindNewNotification }
func (NotificationRead) Kind() Kind     { return KindNotificationRead }
func (AllNotificationsRead) Kind() Kind { return KindAllNotificationsRead }
func (StatsUpdated) Kind() Kind         { return KindStatsUpdated }
func (NewComment) Kind() Kind           { return KindNewComment }

func (NewNotification) isEvent()      {}
func (NotificationRead) isEvent()     {}
func (AllNotificationsRead) isEvent() {}
func (StatsUpdated) isEvent()         {}
func (NewComment) isEvent()           {}

// Command is an outbound client-to-server message type.
type Command string

const (
	CommandJoinTaskRoom  Command = "join-task-room"
	CommandLeaveTaskRoom Command = "leave-task-room"
)

// RoomPayload is the body of both room commands.
type RoomPayload struct {
	TaskID string `json:"taskId"`
}

// TaskRoom returns the hub room name for a task's comment thread.
func TaskRoom(taskID string) string {
	return "task:" + taskID
}
