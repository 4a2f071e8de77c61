package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
	"github.com/algoprep/algoprep-api/pkg/msgcrypt"
)

const chatSweepInterval = time.Hour

// ChatEventPublisher pushes persisted messages to the question's room.
type ChatEventPublisher interface {
	PublishChatMessage(ctx context.Context, message dto.ChatMessageResponse)
}

// ChatService manages per-question chat sessions with encrypted persistence.
// Sessions are created lazily on first message and expire wholesale after the
// configured retention window.
type ChatService interface {
	AddMessage(ctx context.Context, questionID, senderID uint, content string) (dto.ChatMessageResponse, error)
	Messages(ctx context.Context, questionID uint) ([]dto.ChatMessageResponse, error)
	Start(ctx context.Context)
}

type chatService struct {
	repo      repository.ChatRepository
	questions repository.QuestionRepository
	cipher    *msgcrypt.Cipher
	retention time.Duration
	publisher ChatEventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewChatService constructs the chat service.
func NewChatService(repo repository.ChatRepository, questions repository.QuestionRepository, cipher *msgcrypt.Cipher, retention time.Duration, publisher ChatEventPublisher, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	if retention <= 0 {
		retention = 36 * time.Hour
	}

	return &chatService{
		repo:      repo,
		questions: questions,
		cipher:    cipher,
		retention: retention,
		publisher: publisher,
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/algoprep/algoprep-api/internal/service/chat"),
		sanitizer: sanitizer,
	}
}

// Start launches the retention sweeper that deletes expired sessions.
func (s *chatService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(chatSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.repo.DeleteExpired(ctx, time.Now())
				if err != nil {
					s.logger.Warn().Err(err).Msg("chat retention sweep failed")
					continue
				}
				if removed > 0 {
					s.logger.Info().Int64("sessions", removed).Msg("expired chat sessions removed")
				}
			}
		}
	}()
}

func (s *chatService) AddMessage(ctx context.Context, questionID, senderID uint, content string) (dto.ChatMessageResponse, error) {
	if _, err := s.questions.FindByID(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatMessageResponse{}, ErrQuestionNotFound
		}
		return dto.ChatMessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if clean == "" {
		return dto.ChatMessageResponse{}, fmt.Errorf("message content empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.add_message", trace.WithAttributes(
		attribute.Int("chat.question_id", int(questionID)),
	))
	defer span.End()

	session, err := s.repo.GetOrCreateSession(spanCtx, questionID, time.Now().Add(s.retention))
	if err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	sealed, err := s.cipher.Encrypt(clean)
	if err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	message := models.ChatMessage{
		SessionID: session.ID,
		SenderID:  senderID,
		Body:      sealed,
	}

	if err := s.repo.AppendMessage(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	observability.ChatMessages().Inc()

	// Callers always receive the plaintext they just wrote, never ciphertext.
	response := dto.ChatMessageResponse{
		ID:         message.ID,
		QuestionID: questionID,
		SenderID:   senderID,
		Content:    clean,
		CreatedAt:  message.CreatedAt,
	}

	if s.publisher != nil {
		s.publisher.PublishChatMessage(spanCtx, response)
	}

	return response, nil
}

// Messages returns the session transcript in insertion order. A message whose
// ciphertext cannot be opened is returned with Corrupted set and no content
// rather than leaking the stored value.
func (s *chatService) Messages(ctx context.Context, questionID uint) ([]dto.ChatMessageResponse, error) {
	messages, err := s.repo.ListMessages(ctx, questionID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		response := dto.ChatMessageResponse{
			ID:         message.ID,
			QuestionID: questionID,
			SenderID:   message.SenderID,
			CreatedAt:  message.CreatedAt,
		}

		plaintext, err := s.cipher.Decrypt(message.Body)
		if err != nil {
			observability.ChatCorruptedMessages().Inc()
			s.logger.Error().Err(err).Uint("message_id", message.ID).Uint("question_id", questionID).Msg("stored chat message failed decryption")
			response.Corrupted = true
		} else {
			response.Content = plaintext
		}

		out = append(out, response)
	}

	return out, nil
}
