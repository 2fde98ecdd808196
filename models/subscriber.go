package models

import "time"

// Subscriber is a reader following one reporter, identified by email. A row exists at most
// once per (email, user_id); unsubscribing only clears IsActive. SubscribedAt moves
// forward on every reactivation, CreatedAt never does.
type Subscriber struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"size:255;not null;uniqueIndex:idx_subscribers_email_user" json:"email"`
	UserID            uint      `gorm:"not null;index;uniqueIndex:idx_subscribers_email_user" json:"user_id"`
	IsActive          bool      `gorm:"not null;default:false;index" json:"is_active"`
	OnesignalPlayerID *string   `gorm:"size:128" json:"onesignal_player_id,omitempty"`
	SubscribedAt      time.Time `gorm:"index" json:"subscribed_at"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
