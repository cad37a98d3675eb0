package models

import "time"

// User represents a user in the system
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"unique;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// All returns every model the schema is migrated from.
func All() []any {
	return []any{&User{}, &Task{}, &Notification{}, &Comment{}}
}
