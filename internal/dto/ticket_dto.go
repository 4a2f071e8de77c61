package dto

import (
	"time"

	"github.com/algoprep/algoprep-api/internal/models"
)

// TicketRaiseRequest is the payload to open a doubt ticket against a catalog question.
type TicketRaiseRequest struct {
	QuestionID uint `json:"question_id" validate:"required"`
}

// SolutionCreateRequest submits a text solution on a ticket.
type SolutionCreateRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

// VideoMeetAcceptRequest accepts a pending video-meet request. When MeetingLink
// is empty the server generates a room identifier.
type VideoMeetAcceptRequest struct {
	MeetingLink string `json:"meeting_link" validate:"omitempty,min=3,max=128"`
}

// VideoMeetResponse describes a pending or resolved video-meet request.
type VideoMeetResponse struct {
	RequestedByID uint   `json:"requested_by_id"`
	Status        string `json:"status"`
}

// SolutionResponse is the serialized representation of a ticket solution.
type SolutionResponse struct {
	ID           uint      `json:"id"`
	TicketID     uint      `json:"ticket_id"`
	ProvidedByID uint      `json:"provided_by_id"`
	Body         string    `json:"body"`
	Accepted     bool      `json:"accepted"`
	CreatedAt    time.Time `json:"created_at"`
}

// TicketResponse is the serialized representation of a doubt ticket.
type TicketResponse struct {
	ID            uint               `json:"id"`
	QuestionID    uint               `json:"question_id"`
	RaisedByID    uint               `json:"raised_by_id"`
	Status        string             `json:"status"`
	Solutions     []SolutionResponse `json:"solutions"`
	VideoMeet     *VideoMeetResponse `json:"video_meet,omitempty"`
	VideoMeetLink string             `json:"video_meet_link,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewSolutionResponse converts a model into a DTO.
func NewSolutionResponse(solution models.TicketSolution) SolutionResponse {
	return SolutionResponse{
		ID:           solution.ID,
		TicketID:     solution.TicketID,
		ProvidedByID: solution.ProvidedByID,
		Body:         solution.Body,
		Accepted:     solution.Accepted,
		CreatedAt:    solution.CreatedAt,
	}
}

// NewTicketResponse converts a model into a DTO including solutions when preloaded.
func NewTicketResponse(ticket models.Ticket) TicketResponse {
	response := TicketResponse{
		ID:            ticket.ID,
		QuestionID:    ticket.QuestionID,
		RaisedByID:    ticket.RaisedByID,
		Status:        string(ticket.Status),
		Solutions:     make([]SolutionResponse, 0, len(ticket.Solutions)),
		VideoMeetLink: ticket.VideoMeetLink,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}

	for _, solution := range ticket.Solutions {
		response.Solutions = append(response.Solutions, NewSolutionResponse(solution))
	}

	if ticket.VideoMeetRequestedByID != nil {
		response.VideoMeet = &VideoMeetResponse{
			RequestedByID: *ticket.VideoMeetRequestedByID,
			Status:        string(ticket.VideoMeetStatus),
		}
	}

	return response
}

// NewTicketResponseSlice converts a slice of models into DTOs.
func NewTicketResponseSlice(tickets []models.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, NewTicketResponse(ticket))
	}
	return out
}
