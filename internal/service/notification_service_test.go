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

type recordingMailer struct {
	mu    sync.Mutex
	sends []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, to)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sends))
	copy(out, m.sends)
	return out
}

func newNotificationFixture(t *testing.T) (NotificationService, *recordingMailer) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Notification{}))
	require.NoError(t, db.Create(&models.User{Username: "asha", Email: "asha@example.com"}).Error)

	mail := &recordingMailer{}
	service := NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		mail,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.New(io.Discard),
	)
	return service, mail
}

func TestNotificationServicePublishPersistsAndMails(t *testing.T) {
	service, mail := newNotificationFixture(t)
	ctx := context.Background()

	created, err := service.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  1,
		Type:    "ticket_solution",
		Message: "A new solution was posted on your ticket #3",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.Read)
	require.Equal(t, []string{"asha@example.com"}, mail.recipients())

	listed, err := service.List(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)
}

func TestNotificationServicePublishSurvivesUnknownRecipient(t *testing.T) {
	service, mail := newNotificationFixture(t)

	created, err := service.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  999,
		Type:    "video_meet_requested",
		Message: "A video meet was requested on your ticket #5",
	})
	require.NoError(t, err, "a missing directory entry must not block the notification")
	require.NotZero(t, created.ID)
	require.Empty(t, mail.recipients())
}

func TestNotificationServiceMarkReadScopedToOwner(t *testing.T) {
	service, _ := newNotificationFixture(t)
	ctx := context.Background()

	created, err := service.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  1,
		Type:    "solution_accepted",
		Message: "Your solution on ticket #3 was accepted",
	})
	require.NoError(t, err)

	_, err = service.MarkRead(ctx, created.ID, 2)
	require.ErrorIs(t, err, ErrNotificationNotFound, "users cannot touch another user's notifications")

	updated, err := service.MarkRead(ctx, created.ID, 1)
	require.NoError(t, err)
	require.True(t, updated.Read)
}

func TestNotificationServiceRejectsInvalidPayload(t *testing.T) {
	service, _ := newNotificationFixture(t)

	_, err := service.Publish(context.Background(), dto.NotificationCreateRequest{UserID: 1})
	require.Error(t, err)
}
