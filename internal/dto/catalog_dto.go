package dto

import (
	"time"

	"github.com/algoprep/algoprep-api/internal/models"
)

// QuestionResponse is the serialized representation of a catalog question.
type QuestionResponse struct {
	ID         uint      `json:"id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Platform   string    `json:"platform"`
	Link       string    `json:"link"`
	Difficulty string    `json:"difficulty"`
	PostedOn   time.Time `json:"posted_on"`
}

// NewQuestionResponse converts a model into a DTO.
func NewQuestionResponse(question models.Question) QuestionResponse {
	return QuestionResponse{
		ID:         question.ID,
		Slug:       question.Slug,
		Title:      question.Title,
		Platform:   question.Platform,
		Link:       question.Link,
		Difficulty: question.Difficulty,
		PostedOn:   question.PostedOn,
	}
}
