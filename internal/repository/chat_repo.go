package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/models"
)

// ChatRepository persists per-question chat sessions and their encrypted
// messages. Sessions expire wholesale; reads never return expired sessions.
type ChatRepository interface {
	GetOrCreateSession(ctx context.Context, questionID uint, expiresAt time.Time) (models.ChatSession, error)
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, questionID uint) ([]models.ChatMessage, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) GetOrCreateSession(ctx context.Context, questionID uint, expiresAt time.Time) (models.ChatSession, error) {
	var session models.ChatSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("question_id = ?", questionID).First(&session).Error
		if err == nil {
			if session.ExpiresAt.After(time.Now()) {
				return nil
			}
			// The retention window lapsed before the sweeper ran. The unique
			// index pins one row per question, so recycle it in place: drop
			// the stale transcript and restart the window.
			if err := tx.Where("session_id = ?", session.ID).Delete(&models.ChatMessage{}).Error; err != nil {
				return err
			}
			session.ExpiresAt = expiresAt
			return tx.Model(&models.ChatSession{}).Where("id = ?", session.ID).Update("expires_at", expiresAt).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		session = models.ChatSession{QuestionID: questionID, ExpiresAt: expiresAt}
		return tx.Create(&session).Error
	})
	if err != nil {
		// Another writer may have created the session concurrently; the
		// unique index on question_id makes the retry safe.
		var existing models.ChatSession
		if lookupErr := r.db.WithContext(ctx).Where("question_id = ? AND expires_at > ?", questionID, time.Now()).First(&existing).Error; lookupErr == nil {
			return existing, nil
		}
		return models.ChatSession{}, err
	}

	return session, nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *chatRepository) ListMessages(ctx context.Context, questionID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
		Where("chat_sessions.question_id = ? AND chat_sessions.expires_at > ?", questionID, time.Now()).
		Order("chat_messages.created_at ASC, chat_messages.id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteExpired removes sessions past their retention window along with their
// messages.
func (r *chatRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []models.ChatSession
		if err := tx.Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(expired))
		for _, session := range expired {
			ids = append(ids, session.ID)
		}

		if err := tx.Where("session_id IN ?", ids).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&models.ChatSession{})
		removed = result.RowsAffected
		return result.Error
	})

	return removed, err
}
