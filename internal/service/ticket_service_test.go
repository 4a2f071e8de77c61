package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/models"
	"github.com/algoprep/algoprep-api/internal/repository"
)

type recordingTicketPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *recordingTicketPublisher) PublishTicketsUpdated(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
}

func (p *recordingTicketPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []dto.NotificationCreateRequest
}

func (n *recordingNotifier) Publish(_ context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (n *recordingNotifier) sent() []dto.NotificationCreateRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]dto.NotificationCreateRequest, len(n.payloads))
	copy(out, n.payloads)
	return out
}

type ticketServiceFixture struct {
	service   TicketService
	db        *gorm.DB
	publisher *recordingTicketPublisher
	notifier  *recordingNotifier
}

func newTicketServiceFixture(t *testing.T) *ticketServiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.Ticket{}, &models.TicketSolution{}))

	require.NoError(t, db.Create(&models.Question{Slug: "two-sum", Title: "Two Sum", Platform: "leetcode"}).Error)

	publisher := &recordingTicketPublisher{}
	notifier := &recordingNotifier{}
	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	service := NewTicketService(
		repository.NewTicketRepository(db),
		repository.NewQuestionRepository(db),
		publisher,
		notifier,
		validate,
		logger,
	)

	return &ticketServiceFixture{service: service, db: db, publisher: publisher, notifier: notifier}
}

func TestTicketServiceRaiseValidatesQuestion(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	_, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 999})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	ticket, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)
	require.Equal(t, string(models.TicketStatusOpen), ticket.Status)
	require.Equal(t, uint(10), ticket.RaisedByID)
	require.Equal(t, 1, fx.publisher.published())
}

func TestTicketServiceAllowsRepeatTicketsPerQuestion(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	first, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)
	second, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestTicketServiceSolutionLifecycle(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	ticket, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)

	_, err = fx.service.ProvideSolution(ctx, ticket.ID, 10, dto.SolutionCreateRequest{Body: "self answer"})
	require.ErrorIs(t, err, ErrTicketForbidden, "the raiser cannot solve their own ticket")

	withSolution, err := fx.service.ProvideSolution(ctx, ticket.ID, 20, dto.SolutionCreateRequest{Body: "use a hash map"})
	require.NoError(t, err)
	require.Len(t, withSolution.Solutions, 1)
	solutionID := withSolution.Solutions[0].ID

	notifications := fx.notifier.sent()
	require.Len(t, notifications, 1)
	require.Equal(t, uint(10), notifications[0].UserID)

	_, err = fx.service.AcceptSolution(ctx, ticket.ID, solutionID, 20)
	require.ErrorIs(t, err, ErrTicketForbidden, "only the raiser accepts solutions")

	solved, err := fx.service.AcceptSolution(ctx, ticket.ID, solutionID, 10)
	require.NoError(t, err)
	require.Equal(t, string(models.TicketStatusSolved), solved.Status)
	require.True(t, solved.Solutions[0].Accepted)

	notifications = fx.notifier.sent()
	require.Len(t, notifications, 2)
	require.Equal(t, uint(20), notifications[1].UserID)

	_, err = fx.service.AcceptSolution(ctx, ticket.ID, solutionID, 10)
	require.ErrorIs(t, err, ErrTicketConflict, "a solved ticket cannot accept again")

	closed, err := fx.service.Close(ctx, ticket.ID, 10)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, closed.ID)

	_, err = fx.service.AcceptSolution(ctx, ticket.ID, solutionID, 10)
	require.ErrorIs(t, err, ErrTicketNotFound, "closed tickets are deleted")
}

func TestTicketServiceCloseRequiresAcceptedSolution(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	ticket, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)

	_, err = fx.service.Close(ctx, ticket.ID, 10)
	require.ErrorIs(t, err, ErrTicketConflict)
}

func TestTicketServiceVideoMeetLifecycle(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	ticket, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)

	_, err = fx.service.RequestVideoMeet(ctx, ticket.ID, 10)
	require.ErrorIs(t, err, ErrTicketForbidden, "the raiser cannot request a meet with themselves")

	_, err = fx.service.AcceptVideoMeet(ctx, ticket.ID, 10, dto.VideoMeetAcceptRequest{})
	require.ErrorIs(t, err, ErrTicketConflict, "accept requires a pending request")

	pending, err := fx.service.RequestVideoMeet(ctx, ticket.ID, 20)
	require.NoError(t, err)
	require.NotNil(t, pending.VideoMeet)
	require.Equal(t, uint(20), pending.VideoMeet.RequestedByID)
	require.Equal(t, string(models.VideoMeetStatusPending), pending.VideoMeet.Status)

	_, err = fx.service.AcceptVideoMeet(ctx, ticket.ID, 20, dto.VideoMeetAcceptRequest{})
	require.ErrorIs(t, err, ErrTicketForbidden, "only the raiser accepts the meet")

	accepted, err := fx.service.AcceptVideoMeet(ctx, ticket.ID, 10, dto.VideoMeetAcceptRequest{})
	require.NoError(t, err)
	require.Equal(t, string(models.TicketStatusVideoAccepted), accepted.Status)
	require.NotEmpty(t, accepted.VideoMeetLink, "a room identifier is generated when none is supplied")

	require.NoError(t, fx.service.MarkVideoActive(ctx, accepted.VideoMeetLink))

	var stored models.Ticket
	require.NoError(t, fx.db.First(&stored, ticket.ID).Error)
	require.Equal(t, models.TicketStatusVideoActive, stored.Status)

	require.NoError(t, fx.service.EndVideoMeet(ctx, accepted.VideoMeetLink))

	require.NoError(t, fx.db.First(&stored, ticket.ID).Error)
	require.Equal(t, models.TicketStatusOpen, stored.Status)
	require.Equal(t, models.VideoMeetStatusNone, stored.VideoMeetStatus)
	require.Empty(t, stored.VideoMeetLink)
	require.Nil(t, stored.VideoMeetRequestedByID)
}

func TestTicketServiceListsExcludeOwnTickets(t *testing.T) {
	fx := newTicketServiceFixture(t)
	ctx := context.Background()

	mine, err := fx.service.Raise(ctx, 10, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)
	theirs, err := fx.service.Raise(ctx, 11, dto.TicketRaiseRequest{QuestionID: 1})
	require.NoError(t, err)

	available, err := fx.service.Available(ctx, 10)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, theirs.ID, available[0].ID)

	raised, err := fx.service.RaisedBy(ctx, 10)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	require.Equal(t, mine.ID, raised[0].ID)
}
