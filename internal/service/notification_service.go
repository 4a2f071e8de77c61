package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/models"
	"github.com/algoprep/algoprep-api/internal/observability"
	"github.com/algoprep/algoprep-api/internal/repository"
	"github.com/algoprep/algoprep-api/pkg/mailer"
)

// ErrNotificationNotFound indicates the notification does not exist for the user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService persists per-user notifications and mirrors them to
// email on a best-effort basis.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	mail      mailer.Sender
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewNotificationService constructs the notification service. Pass
// mailer.NewNop() when outbound email is not configured.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, mail mailer.Sender, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		users:     users,
		mail:      mail,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	notification := models.Notification{
		UserID:  payload.UserID,
		Type:    payload.Type,
		Message: payload.Message,
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		return dto.NotificationResponse{}, err
	}

	observability.NotificationsSent().WithLabelValues(payload.Type).Inc()
	s.sendEmail(ctx, notification)

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, err
	}
	return dto.NewNotificationResponse(notification), nil
}

// sendEmail mirrors the notification to the user's inbox. Failures are logged
// and never surface to the caller; the stored notification is the source of
// truth.
func (s *notificationService) sendEmail(ctx context.Context, notification models.Notification) {
	user, err := s.users.FindByID(ctx, notification.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", notification.UserID).Msg("could not resolve notification recipient")
		return
	}
	if user.Email == "" {
		return
	}

	subject := fmt.Sprintf("AlgoPrep: %s", notification.Type)
	if err := s.mail.Send(user.Email, subject, notification.Message); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", notification.UserID).Msg("notification email delivery failed")
	}
}
