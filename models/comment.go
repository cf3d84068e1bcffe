package models

import "time"

// Comment is a single entry on the board. Only Upvotes and UpdatedAt change after creation.
type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	AuthorName string    `gorm:"size:255;not null" json:"authorName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Upvotes    int       `gorm:"not null;default:0" json:"upvotes"`
	CreatedAt  time.Time `gorm:"index;not null;precision:6" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null;precision:6" json:"updatedAt"`
}
