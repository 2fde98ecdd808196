package models

import "time"

// Element is a publication: an external link to an article or video owned by a reporter.
// Etate is the enabled flag; elements are created disabled and never hard-deleted.
type Element struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	CategoryID   uint       `gorm:"index;not null" json:"category_id"`
	ElementypeID uint       `gorm:"index;not null" json:"elementype_id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Link         string     `gorm:"size:1024;not null" json:"link"`
	Cover        string     `gorm:"size:1024" json:"cover"` // path on the storage disk
	Description  string     `gorm:"type:text" json:"description"`
	Etate        bool       `gorm:"column:etate;index;not null;default:false" json:"etate"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Category     Category   `json:"category"`
	Elementype   Elementype `json:"elementype"`
	Velement     *Velement  `json:"velement,omitempty"`
}

// Velement holds the view counter of one Element.
type Velement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ElementID uint      `gorm:"uniqueIndex;not null" json:"element_id"`
	Viewers   int64     `gorm:"not null;default:0" json:"viewers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
