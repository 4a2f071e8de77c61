package models

import (
	"time"

	"gorm.io/datatypes"
)

// TicketStatus enumerates lifecycle states for doubt tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusSolved        TicketStatus = "solved"
	TicketStatusVideoAccepted TicketStatus = "video-accepted"
	TicketStatusVideoActive   TicketStatus = "video-active"
)

// VideoMeetStatus enumerates states of a pending video-meet request on a ticket.
type VideoMeetStatus string

const (
	VideoMeetStatusNone     VideoMeetStatus = ""
	VideoMeetStatusPending  VideoMeetStatus = "pending"
	VideoMeetStatusAccepted VideoMeetStatus = "accepted"
	VideoMeetStatusRejected VideoMeetStatus = "rejected"
)

// Ticket is a user-raised request for help on a specific catalog question.
// Closing a ticket deletes the row; there is no retained closed state.
type Ticket struct {
	ID                     uint              `gorm:"primaryKey" json:"id"`
	QuestionID             uint              `gorm:"index;not null" json:"question_id"`
	RaisedByID             uint              `gorm:"index;not null" json:"raised_by_id"`
	Status                 TicketStatus      `gorm:"size:32;not null;default:open" json:"status"`
	VideoMeetRequestedByID *uint             `json:"video_meet_requested_by_id,omitempty"`
	VideoMeetStatus        VideoMeetStatus   `gorm:"size:16;default:''" json:"video_meet_status,omitempty"`
	VideoMeetLink          string            `gorm:"size:128" json:"video_meet_link,omitempty"`
	Metadata               datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	Solutions              []TicketSolution  `gorm:"constraint:OnDelete:CASCADE" json:"solutions"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// TicketSolution is a community-submitted text answer on a ticket.
// At most one solution per ticket carries Accepted=true.
type TicketSolution struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TicketID     uint      `gorm:"index;not null" json:"ticket_id"`
	ProvidedByID uint      `gorm:"index;not null" json:"provided_by_id"`
	Body         string    `gorm:"type:text;not null" json:"body"`
	Accepted     bool      `gorm:"not null;default:false" json:"accepted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
