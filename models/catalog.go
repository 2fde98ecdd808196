package models

// Category is a lookup table for publication topics.
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Slug string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
}

// Elementype is a lookup table for publication kinds (article, video, ...).
type Elementype struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Slug string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
}

// TableName keeps the historical table name.
func (Elementype) TableName() string { return "elementypes" }
