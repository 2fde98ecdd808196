package models

import "time"

// Vuser holds the profile view counter of one reporter.
type Vuser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Viewers   int64     `gorm:"not null;default:0" json:"viewers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the historical table name.
func (Vuser) TableName() string { return "vusers" }
