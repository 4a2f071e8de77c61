package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/models"
)

// TicketRepository persists doubt tickets and their solutions. Mutating
// methods are conditional updates so concurrent writers cannot race a
// read-modify-write cycle; callers inspect the affected row count.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	Get(ctx context.Context, id uint) (models.Ticket, error)
	ListAvailable(ctx context.Context, excludeUserID uint) ([]models.Ticket, error)
	ListRaisedBy(ctx context.Context, userID uint) ([]models.Ticket, error)
	AddSolution(ctx context.Context, solution *models.TicketSolution) error
	GetSolution(ctx context.Context, ticketID, solutionID uint) (models.TicketSolution, error)
	AcceptSolution(ctx context.Context, ticketID, solutionID uint) (int64, error)
	SetVideoMeetRequest(ctx context.Context, ticketID, requestedByID uint) (int64, error)
	AcceptVideoMeet(ctx context.Context, ticketID uint, link string) (int64, error)
	TransitionByMeetLink(ctx context.Context, link string, from, to models.TicketStatus) (int64, error)
	ClearVideoMeetByLink(ctx context.Context, link string) (int64, error)
	DeleteIfSolutionAccepted(ctx context.Context, ticketID uint) (int64, error)
}

type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a ticket repository backed by GORM.
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) Get(ctx context.Context, id uint) (models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).Preload("Solutions").First(&ticket, id).Error
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListAvailable(ctx context.Context, excludeUserID uint) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Solutions").
		Where("raised_by_id <> ?", excludeUserID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) ListRaisedBy(ctx context.Context, userID uint) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Solutions").
		Where("raised_by_id = ?", userID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) AddSolution(ctx context.Context, solution *models.TicketSolution) error {
	return r.db.WithContext(ctx).Create(solution).Error
}

func (r *ticketRepository) GetSolution(ctx context.Context, ticketID, solutionID uint) (models.TicketSolution, error) {
	var solution models.TicketSolution
	err := r.db.WithContext(ctx).
		Where("id = ? AND ticket_id = ?", solutionID, ticketID).
		First(&solution).Error
	if err != nil {
		return models.TicketSolution{}, err
	}
	return solution, nil
}

// AcceptSolution flips the target solution to accepted, clears every other
// solution on the ticket, and moves the ticket to solved, all in one
// transaction. The status update is conditional on the ticket still being
// open; zero affected rows means the transition lost a race or the ticket
// already advanced.
func (r *ticketRepository) AcceptSolution(ctx context.Context, ticketID, solutionID uint) (int64, error) {
	var affected int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ?", ticketID, models.TicketStatusOpen).
			Update("status", models.TicketStatusSolved)
		if result.Error != nil {
			return result.Error
		}

		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}

		if err := tx.Model(&models.TicketSolution{}).
			Where("ticket_id = ? AND id <> ?", ticketID, solutionID).
			Update("accepted", false).Error; err != nil {
			return err
		}

		return tx.Model(&models.TicketSolution{}).
			Where("ticket_id = ? AND id = ?", ticketID, solutionID).
			Update("accepted", true).Error
	})

	return affected, err
}

func (r *ticketRepository) SetVideoMeetRequest(ctx context.Context, ticketID, requestedByID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticketID, models.TicketStatusOpen).
		Updates(map[string]interface{}{
			"video_meet_requested_by_id": requestedByID,
			"video_meet_status":          models.VideoMeetStatusPending,
		})
	return result.RowsAffected, result.Error
}

func (r *ticketRepository) AcceptVideoMeet(ctx context.Context, ticketID uint, link string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND video_meet_status = ?", ticketID, models.VideoMeetStatusPending).
		Updates(map[string]interface{}{
			"video_meet_status": models.VideoMeetStatusAccepted,
			"video_meet_link":   link,
			"status":            models.TicketStatusVideoAccepted,
		})
	return result.RowsAffected, result.Error
}

func (r *ticketRepository) TransitionByMeetLink(ctx context.Context, link string, from, to models.TicketStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("video_meet_link = ? AND status = ?", link, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// ClearVideoMeetByLink returns a ticket whose call ended to the open pool.
func (r *ticketRepository) ClearVideoMeetByLink(ctx context.Context, link string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("video_meet_link = ? AND status IN ?", link, []models.TicketStatus{models.TicketStatusVideoAccepted, models.TicketStatusVideoActive}).
		Updates(map[string]interface{}{
			"status":                     models.TicketStatusOpen,
			"video_meet_requested_by_id": nil,
			"video_meet_status":          models.VideoMeetStatusNone,
			"video_meet_link":            "",
		})
	return result.RowsAffected, result.Error
}

// DeleteIfSolutionAccepted removes the ticket only when an accepted solution
// exists. Deletion is the terminal state; no closed record is retained.
func (r *ticketRepository) DeleteIfSolutionAccepted(ctx context.Context, ticketID uint) (int64, error) {
	var affected int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("id = ? AND EXISTS (SELECT 1 FROM ticket_solutions WHERE ticket_solutions.ticket_id = tickets.id AND ticket_solutions.accepted)", ticketID).
			Delete(&models.Ticket{})
		if result.Error != nil {
			return result.Error
		}

		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}

		return tx.Where("ticket_id = ?", ticketID).Delete(&models.TicketSolution{}).Error
	})

	return affected, err
}
