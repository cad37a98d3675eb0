package models

import "time"

// Comment is one entry of a task's comment thread.
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TaskID    string    `json:"taskId" gorm:"column:task_id;not null;index"`
	AuthorID  string    `json:"authorId" gorm:"column:author_id;not null"`
	Content   string    `json:"content" gorm:"not null"`
	Mentions  []string  `json:"mentions,omitempty" gorm:"serializer:json"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Comment Model
func (Comment) TableName() string {
	return "comments"
}
