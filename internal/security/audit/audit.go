// Package audit records actions co-managers take on a principal's behalf.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/domain"
)

// Logger writes audit entries to the structured log and the audit store.
type Logger struct {
	repo   domain.AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger creates an audit logger. repo may be nil to log only.
func NewLogger(repo domain.AuditRepository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, logger: logger, now: time.Now}
}

// Record emits entry. The log line is always written; the store write
// error is returned to the caller.
func (al *Logger) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = al.now().UTC()
	}

	al.logger.Info("audit",
		slog.String("actor_id", entry.ActorID),
		slog.String("actor_name", entry.ActorName),
		slog.String("action", string(entry.Action)),
		slog.String("resource", string(entry.Resource)),
		slog.String("resource_id", entry.ResourceID),
		slog.String("acting_for_principal_id", entry.ActingForPrincipalID),
		slog.String("request_id", entry.RequestID),
	)

	if al.repo == nil {
		return nil
	}
	if err := al.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries recorded for principalID.
func (al *Logger) List(ctx context.Context, principalID string, limit int) ([]*domain.AuditEntry, error) {
	if al.repo == nil {
		return []*domain.AuditEntry{}, nil
	}
	entries, err := al.repo.ListByPrincipal(ctx, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
