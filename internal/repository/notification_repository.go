package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/laala/laala-api/internal/domain"
)

// PostgresNotificationRepository implements domain.NotificationRepository
type PostgresNotificationRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresNotificationRepository creates a notification repository
func NewPostgresNotificationRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresNotificationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNotificationRepository{db: db, table: table(tableName), logger: logger}
}

// Create inserts n
func (r *PostgresNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO ` + r.table + ` (id, recipient_id, type, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, n.ID, n.RecipientID, n.Type, n.Title, n.Body).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the recipient's inbox, newest first
func (r *PostgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT id, recipient_id, type, title, body, read, created_at, read_at
		FROM ` + r.table + ` WHERE recipient_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, recipientID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []*domain.Notification{}
	for rows.Next() {
		n := &domain.Notification{}
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body, &n.Read, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one of the recipient's notifications as read
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, recipientID, id string) error {
	query := `UPDATE ` + r.table + ` SET read = TRUE, read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_id = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("notification %s not found", id)
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	query := `UPDATE ` + r.table + ` SET read = TRUE, read_at = now() WHERE recipient_id = $1 AND NOT read`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes one of the recipient's notifications
func (r *PostgresNotificationRepository) Delete(ctx context.Context, recipientID, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("notification %s not found", id)
	}
	return nil
}

// PurgeRead deletes read notifications older than before
func (r *PostgresNotificationRepository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM `+r.table+` WHERE read AND read_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Info("purged read notifications", slog.Int64("count", n))
	}
	return n, nil
}
