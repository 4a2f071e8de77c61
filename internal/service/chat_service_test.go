package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/models"
	"github.com/algoprep/algoprep-api/internal/repository"
	"github.com/algoprep/algoprep-api/pkg/msgcrypt"
)

type recordingChatPublisher struct {
	mu       sync.Mutex
	messages []dto.ChatMessageResponse
}

func (p *recordingChatPublisher) PublishChatMessage(_ context.Context, message dto.ChatMessageResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *recordingChatPublisher) delivered() []dto.ChatMessageResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.ChatMessageResponse, len(p.messages))
	copy(out, p.messages)
	return out
}

type chatServiceFixture struct {
	service   ChatService
	db        *gorm.DB
	publisher *recordingChatPublisher
}

func newChatServiceFixture(t *testing.T) *chatServiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.ChatSession{}, &models.ChatMessage{}))

	require.NoError(t, db.Create(&models.Question{Slug: "binary-search", Title: "Binary Search"}).Error)

	cipher, err := msgcrypt.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	publisher := &recordingChatPublisher{}
	service := NewChatService(
		repository.NewChatRepository(db),
		repository.NewQuestionRepository(db),
		cipher,
		36*time.Hour,
		publisher,
		zerolog.New(io.Discard),
	)

	return &chatServiceFixture{service: service, db: db, publisher: publisher}
}

func TestChatServiceAddMessageEncryptsAtRest(t *testing.T) {
	fx := newChatServiceFixture(t)
	ctx := context.Background()

	response, err := fx.service.AddMessage(ctx, 1, 10, "anyone solved this with recursion?")
	require.NoError(t, err)
	require.Equal(t, "anyone solved this with recursion?", response.Content)
	require.False(t, response.Corrupted)

	var stored models.ChatMessage
	require.NoError(t, fx.db.First(&stored, response.ID).Error)
	require.NotContains(t, stored.Body, "recursion", "plaintext must never reach the database")
	require.Contains(t, stored.Body, ":")

	delivered := fx.publisher.delivered()
	require.Len(t, delivered, 1)
	require.Equal(t, response.Content, delivered[0].Content)
	require.Equal(t, uint(10), delivered[0].SenderID)
}

func TestChatServiceMessagesRoundTrip(t *testing.T) {
	fx := newChatServiceFixture(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := fx.service.AddMessage(ctx, 1, 10, content)
		require.NoError(t, err)
	}

	messages, err := fx.service.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "first", messages[0].Content)
	require.Equal(t, "third", messages[2].Content)
}

func TestChatServiceMessageAfterExpiryStartsFreshTranscript(t *testing.T) {
	fx := newChatServiceFixture(t)
	ctx := context.Background()

	_, err := fx.service.AddMessage(ctx, 1, 10, "before the window closed")
	require.NoError(t, err)

	// Age the session past its window without running the sweeper.
	require.NoError(t, fx.db.Model(&models.ChatSession{}).
		Where("question_id = ?", 1).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	sent, err := fx.service.AddMessage(ctx, 1, 11, "hello after expiry")
	require.NoError(t, err)
	require.Equal(t, "hello after expiry", sent.Content)

	messages, err := fx.service.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1, "the new message must be readable, the old transcript gone")
	require.Equal(t, "hello after expiry", messages[0].Content)
	require.Equal(t, uint(11), messages[0].SenderID)
}

func TestChatServiceFlagsCorruptedMessages(t *testing.T) {
	fx := newChatServiceFixture(t)
	ctx := context.Background()

	response, err := fx.service.AddMessage(ctx, 1, 10, "soon to be garbled")
	require.NoError(t, err)

	require.NoError(t, fx.db.Model(&models.ChatMessage{}).
		Where("id = ?", response.ID).
		Update("body", "not-a-valid:ciphertext").Error)

	messages, err := fx.service.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.True(t, messages[0].Corrupted)
	require.Empty(t, messages[0].Content, "stored bytes must not leak on decryption failure")
}

func TestChatServiceSanitizesMarkup(t *testing.T) {
	fx := newChatServiceFixture(t)
	ctx := context.Background()

	response, err := fx.service.AddMessage(ctx, 1, 10, `<script>alert("x")</script>does DP help here?`)
	require.NoError(t, err)
	require.NotContains(t, response.Content, "<script>")
	require.True(t, strings.Contains(response.Content, "does DP help here?"))

	_, err = fx.service.AddMessage(ctx, 1, 10, "<script>only markup</script>")
	require.Error(t, err, "a message that sanitizes to nothing is rejected")
}

func TestChatServiceRejectsUnknownQuestion(t *testing.T) {
	fx := newChatServiceFixture(t)

	_, err := fx.service.AddMessage(context.Background(), 999, 10, "hello")
	require.ErrorIs(t, err, ErrQuestionNotFound)
}
