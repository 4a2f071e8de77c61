package dto

import "time"

// ChatMessageCreateRequest is the payload to post a chat message into a question's session.
type ChatMessageCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatMessageResponse is the decrypted, caller-facing form of a chat message.
// Corrupted marks messages whose stored ciphertext could not be opened; their
// content is withheld rather than surfaced raw.
type ChatMessageResponse struct {
	ID         uint      `json:"id"`
	QuestionID uint      `json:"question_id"`
	SenderID   uint      `json:"sender_id"`
	Content    string    `json:"content"`
	Corrupted  bool      `json:"corrupted,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
