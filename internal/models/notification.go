package models

import "time"

// NotificationMetadata carries the structured context of a notification.
type NotificationMetadata struct {
	TaskID         string   `json:"taskId,omitempty"`
	TaskName       string   `json:"taskName,omitempty"`
	ProjectID      string   `json:"projectId,omitempty"`
	CommentID      string   `json:"commentId,omitempty"`
	CommentExcerpt string   `json:"commentExcerpt,omitempty"`
	Mentions       []string `json:"mentions,omitempty"`
}

// Notification is created server-side by a triggering domain event and is
// only ever mutated by the read and archive transitions.
type Notification struct {
	ID          string               `json:"id" gorm:"primaryKey"`
	RecipientID string               `json:"recipientId" gorm:"column:recipient_id;not null;index:idx_notifications_recipient"`
	SenderID    *string              `json:"senderId,omitempty" gorm:"column:sender_id"`
	Title       string               `json:"title" gorm:"not null"`
	Metadata    NotificationMetadata `json:"metadata" gorm:"serializer:json"`
	IsRead      bool                 `json:"isRead" gorm:"column:is_read;not null;default:false;index:idx_notifications_recipient"`
	IsArchived  bool                 `json:"isArchived" gorm:"column:is_archived;not null;default:false"`
	CreatedAt   time.Time            `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// TableName specifies the table name for Notification Model
func (Notification) TableName() string {
	return "notifications"
}

// NotificationStats is the server-authoritative counter pair of a recipient.
// Archived notifications are not counted.
type NotificationStats struct {
	RecipientID string `json:"recipientId"`
	Total       int64  `json:"total"`
	Unread      int64  `json:"unread"`
}
