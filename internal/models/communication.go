package models

import "time"

// ChatSession groups the discussion for one catalog question. Sessions expire
// as a whole a fixed retention window after creation.
type ChatSession struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	QuestionID uint          `gorm:"uniqueIndex;not null" json:"question_id"`
	ExpiresAt  time.Time     `gorm:"index;not null" json:"expires_at"`
	Messages   []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ChatMessage is a single chat payload. Body holds the encrypted form
// (base64 nonce:ciphertext); plaintext never touches the database.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"index;not null" json:"session_id"`
	SenderID  uint      `gorm:"index;not null" json:"sender_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
