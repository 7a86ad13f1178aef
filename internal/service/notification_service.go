package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/domain"
)

// NotificationService manages the in-app inbox
type NotificationService struct {
	repo   domain.NotificationRepository
	logger *slog.Logger
}

// NewNotificationService creates a notification service
func NewNotificationService(repo domain.NotificationRepository, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// Notify writes an inbox entry. Failures are logged and never fail the
// operation that triggered them.
func (s *NotificationService) Notify(ctx context.Context, recipientID, kind, title, body string) {
	if s == nil {
		return
	}
	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Body:        body,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create notification",
			slog.String("recipient_id", recipientID),
			slog.String("type", kind),
			slog.String("error", err.Error()),
		)
	}
}

// List returns the recipient's inbox
func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	out, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one notification read
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	return s.repo.MarkRead(ctx, recipientID, id)
}

// MarkAllRead marks the whole inbox read and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one notification
func (s *NotificationService) Delete(ctx context.Context, recipientID, id string) error {
	return s.repo.Delete(ctx, recipientID, id)
}
