package models

import "time"

// Acdetail extends a User with public profile data.
type Acdetail struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Website   string    `gorm:"size:512" json:"website"`
	Facebook  string    `gorm:"size:512" json:"facebook"`
	Twitter   string    `gorm:"size:512" json:"twitter"`
	Linkedin  string    `gorm:"size:512" json:"linkedin"`
	Instagram string    `gorm:"size:512" json:"instagram"`
	Youtube   string    `gorm:"size:512" json:"youtube"`
	Photo     string    `gorm:"size:1024" json:"photo"` // path on the storage disk
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
