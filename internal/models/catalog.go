package models

import "time"

// Question is a problem catalog entry. Rows are ingested from external judges
// by tooling outside this service; the API only reads them.
type Question struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"size:128;uniqueIndex" json:"slug"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Platform   string    `gorm:"size:32;index" json:"platform"`
	Link       string    `gorm:"size:512" json:"link"`
	Difficulty string    `gorm:"size:16" json:"difficulty"`
	PostedOn   time.Time `gorm:"index" json:"posted_on"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is the directory entry resolved for display names and email targets.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
