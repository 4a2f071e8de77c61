package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/models"
	"github.com/algoprep/algoprep-api/internal/observability"
	"github.com/algoprep/algoprep-api/internal/repository"
)

var (
	// ErrTicketNotFound indicates the ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrQuestionNotFound indicates the referenced catalog question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSolutionNotFound indicates the solution is not among the ticket's solutions.
	ErrSolutionNotFound = errors.New("solution not found")
	// ErrTicketForbidden indicates the actor lacks permission for the requested transition.
	ErrTicketForbidden = errors.New("actor not permitted for ticket operation")
	// ErrTicketConflict indicates the ticket's current state does not allow the operation.
	ErrTicketConflict = errors.New("ticket state does not allow operation")
)

// TicketEventPublisher pushes tickets-updated invalidation signals to connected clients.
type TicketEventPublisher interface {
	PublishTicketsUpdated(ctx context.Context)
}

// NotificationPublisher exposes the subset of the notification service needed by tickets.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// TicketService drives the doubt-ticket lifecycle: raise, solve, accept,
// video-meet negotiation, and terminal close-by-deletion.
type TicketService interface {
	Raise(ctx context.Context, userID uint, payload dto.TicketRaiseRequest) (dto.TicketResponse, error)
	Available(ctx context.Context, userID uint) ([]dto.TicketResponse, error)
	RaisedBy(ctx context.Context, userID uint) ([]dto.TicketResponse, error)
	ProvideSolution(ctx context.Context, ticketID, solverID uint, payload dto.SolutionCreateRequest) (dto.TicketResponse, error)
	AcceptSolution(ctx context.Context, ticketID, solutionID, actorID uint) (dto.TicketResponse, error)
	RequestVideoMeet(ctx context.Context, ticketID, solverID uint) (dto.TicketResponse, error)
	AcceptVideoMeet(ctx context.Context, ticketID, actorID uint, payload dto.VideoMeetAcceptRequest) (dto.TicketResponse, error)
	Close(ctx context.Context, ticketID, actorID uint) (dto.TicketResponse, error)
	MarkVideoActive(ctx context.Context, meetingRoom string) error
	EndVideoMeet(ctx context.Context, meetingRoom string) error
}

type ticketService struct {
	repo          repository.TicketRepository
	questions     repository.QuestionRepository
	events        TicketEventPublisher
	notifications NotificationPublisher
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewTicketService constructs the ticket lifecycle service.
func NewTicketService(repo repository.TicketRepository, questions repository.QuestionRepository, events TicketEventPublisher, notifications NotificationPublisher, validate *validator.Validate, logger zerolog.Logger) TicketService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &ticketService{
		repo:          repo,
		questions:     questions,
		events:        events,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "ticket_service").Logger(),
		tracer:        otel.Tracer("github.com/algoprep/algoprep-api/internal/service/ticket"),
		sanitizer:     policy,
	}
}

func (s *ticketService) Raise(ctx context.Context, userID uint, payload dto.TicketRaiseRequest) (dto.TicketResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TicketResponse{}, err
	}

	if _, err := s.questions.FindByID(ctx, payload.QuestionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TicketResponse{}, ErrQuestionNotFound
		}
		return dto.TicketResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.raise", trace.WithAttributes(
		attribute.Int("ticket.question_id", int(payload.QuestionID)),
	))
	defer span.End()

	// Multiple open tickets by the same user against the same question are
	// allowed: each represents a distinct doubt.
	ticket := models.Ticket{
		QuestionID: payload.QuestionID,
		RaisedByID: userID,
		Status:     models.TicketStatusOpen,
	}

	if err := s.repo.Create(spanCtx, &ticket); err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}

	s.logger.Info().Uint("ticket_id", ticket.ID).Uint("question_id", ticket.QuestionID).Msg("ticket raised")
	s.afterTransition(spanCtx, "raise")

	return dto.NewTicketResponse(ticket), nil
}

func (s *ticketService) Available(ctx context.Context, userID uint) ([]dto.TicketResponse, error) {
	tickets, err := s.repo.ListAvailable(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewTicketResponseSlice(tickets), nil
}

func (s *ticketService) RaisedBy(ctx context.Context, userID uint) ([]dto.TicketResponse, error) {
	tickets, err := s.repo.ListRaisedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewTicketResponseSlice(tickets), nil
}

func (s *ticketService) ProvideSolution(ctx context.Context, ticketID, solverID uint, payload dto.SolutionCreateRequest) (dto.TicketResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TicketResponse{}, err
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	if ticket.RaisedByID == solverID {
		return dto.TicketResponse{}, ErrTicketForbidden
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.TicketResponse{}, fmt.Errorf("solution body empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.provide_solution", trace.WithAttributes(
		attribute.Int("ticket.id", int(ticketID)),
	))
	defer span.End()

	solution := models.TicketSolution{
		TicketID:     ticketID,
		ProvidedByID: solverID,
		Body:         body,
	}

	if err := s.repo.AddSolution(spanCtx, &solution); err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}

	s.notify(spanCtx, ticket.RaisedByID, "ticket_solution", fmt.Sprintf("A new solution was posted on your ticket #%d", ticketID))
	s.afterTransition(spanCtx, "provide_solution")

	return s.reload(spanCtx, ticketID)
}

func (s *ticketService) AcceptSolution(ctx context.Context, ticketID, solutionID, actorID uint) (dto.TicketResponse, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	if ticket.RaisedByID != actorID {
		return dto.TicketResponse{}, ErrTicketForbidden
	}

	solution, err := s.repo.GetSolution(ctx, ticketID, solutionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TicketResponse{}, ErrSolutionNotFound
		}
		return dto.TicketResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.accept_solution", trace.WithAttributes(
		attribute.Int("ticket.id", int(ticketID)),
		attribute.Int("ticket.solution_id", int(solutionID)),
	))
	defer span.End()

	affected, err := s.repo.AcceptSolution(spanCtx, ticketID, solutionID)
	if err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}
	if affected == 0 {
		return dto.TicketResponse{}, ErrTicketConflict
	}

	s.notify(spanCtx, solution.ProvidedByID, "solution_accepted", fmt.Sprintf("Your solution on ticket #%d was accepted", ticketID))
	s.afterTransition(spanCtx, "accept_solution")

	return s.reload(spanCtx, ticketID)
}

func (s *ticketService) RequestVideoMeet(ctx context.Context, ticketID, solverID uint) (dto.TicketResponse, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	if ticket.RaisedByID == solverID {
		return dto.TicketResponse{}, ErrTicketForbidden
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.request_video_meet", trace.WithAttributes(
		attribute.Int("ticket.id", int(ticketID)),
	))
	defer span.End()

	affected, err := s.repo.SetVideoMeetRequest(spanCtx, ticketID, solverID)
	if err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}
	if affected == 0 {
		return dto.TicketResponse{}, ErrTicketConflict
	}

	s.notify(spanCtx, ticket.RaisedByID, "video_meet_requested", fmt.Sprintf("A video meet was requested on your ticket #%d", ticketID))
	s.afterTransition(spanCtx, "request_video_meet")

	return s.reload(spanCtx, ticketID)
}

func (s *ticketService) AcceptVideoMeet(ctx context.Context, ticketID, actorID uint, payload dto.VideoMeetAcceptRequest) (dto.TicketResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TicketResponse{}, err
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	if ticket.RaisedByID != actorID {
		return dto.TicketResponse{}, ErrTicketForbidden
	}

	link := strings.TrimSpace(payload.MeetingLink)
	if link == "" {
		link = uuid.NewString()
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.accept_video_meet", trace.WithAttributes(
		attribute.Int("ticket.id", int(ticketID)),
	))
	defer span.End()

	affected, err := s.repo.AcceptVideoMeet(spanCtx, ticketID, link)
	if err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}
	if affected == 0 {
		return dto.TicketResponse{}, ErrTicketConflict
	}

	if ticket.VideoMeetRequestedByID != nil {
		s.notify(spanCtx, *ticket.VideoMeetRequestedByID, "video_meet_accepted", fmt.Sprintf("Your video meet request on ticket #%d was accepted", ticketID))
	}
	s.afterTransition(spanCtx, "accept_video_meet")

	return s.reload(spanCtx, ticketID)
}

// Close deletes the ticket once a solution has been accepted. Deletion is the
// terminal state; the available pool and the raiser's list both stop
// returning the ticket immediately.
func (s *ticketService) Close(ctx context.Context, ticketID, actorID uint) (dto.TicketResponse, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "ticket.close", trace.WithAttributes(
		attribute.Int("ticket.id", int(ticketID)),
	))
	defer span.End()

	affected, err := s.repo.DeleteIfSolutionAccepted(spanCtx, ticketID)
	if err != nil {
		span.RecordError(err)
		return dto.TicketResponse{}, err
	}
	if affected == 0 {
		return dto.TicketResponse{}, ErrTicketConflict
	}

	s.logger.Info().Uint("ticket_id", ticketID).Uint("actor_id", actorID).Msg("ticket closed and removed")
	s.afterTransition(spanCtx, "close")

	return dto.NewTicketResponse(ticket), nil
}

// MarkVideoActive is driven by the signaling relay once both peers joined the
// meeting room.
func (s *ticketService) MarkVideoActive(ctx context.Context, meetingRoom string) error {
	affected, err := s.repo.TransitionByMeetLink(ctx, meetingRoom, models.TicketStatusVideoAccepted, models.TicketStatusVideoActive)
	if err != nil {
		return err
	}
	if affected > 0 {
		s.afterTransition(ctx, "video_active")
	}
	return nil
}

// EndVideoMeet returns the ticket to the open pool once its meeting room has
// emptied, clearing the request and link.
func (s *ticketService) EndVideoMeet(ctx context.Context, meetingRoom string) error {
	affected, err := s.repo.ClearVideoMeetByLink(ctx, meetingRoom)
	if err != nil {
		return err
	}
	if affected > 0 {
		s.afterTransition(ctx, "video_ended")
	}
	return nil
}

func (s *ticketService) getTicket(ctx context.Context, ticketID uint) (models.Ticket, error) {
	ticket, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Ticket{}, ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *ticketService) reload(ctx context.Context, ticketID uint) (dto.TicketResponse, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	return dto.NewTicketResponse(ticket), nil
}

func (s *ticketService) afterTransition(ctx context.Context, transition string) {
	observability.TicketTransitions().WithLabelValues(transition).Inc()
	if s.events != nil {
		s.events.PublishTicketsUpdated(ctx)
	}
}

func (s *ticketService) notify(ctx context.Context, userID uint, kind, message string) {
	if s.notifications == nil {
		return
	}

	payload := dto.NotificationCreateRequest{
		UserID:  userID,
		Type:    kind,
		Message: message,
	}
	if _, err := s.notifications.Publish(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Str("type", kind).Msg("failed to publish ticket notification")
	}
}
