package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/laala/laala-api/internal/domain"
)

// PostgresOutboxRepository implements domain.OutboxRepository. Claims use
// FOR UPDATE SKIP LOCKED so several dispatchers never take the same row.
type PostgresOutboxRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresOutboxRepository creates an email outbox repository
func NewPostgresOutboxRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresOutboxRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOutboxRepository{db: db, table: table(tableName), logger: logger}
}

// Enqueue inserts a pending message
func (r *PostgresOutboxRepository) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO ` + r.table + ` (id, kind, recipient, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING created_at
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, msg.ID, msg.Kind, msg.Recipient, msg.Subject, msg.Body).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	msg.Status = domain.OutboxPending
	return nil
}

// ClaimPending marks up to limit messages as sending and returns them
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*domain.OutboxMessage, error) {
	query := `
		UPDATE ` + r.table + ` SET status = 'sending', claimed_at = now()
		WHERE id IN (
			SELECT id FROM ` + r.table + `
			WHERE status = 'pending' OR (status = 'sending' AND claimed_at < $2)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, recipient, subject, body, status, attempts, last_error, created_at, claimed_at
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, limit, time.Now().Add(-staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.OutboxMessage
	for rows.Next() {
		msg := &domain.OutboxMessage{}
		var status string
		var claimedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.Kind, &msg.Recipient, &msg.Subject, &msg.Body, &status,
			&msg.Attempts, &msg.LastError, &msg.CreatedAt, &claimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Status = domain.OutboxStatus(status)
		if claimedAt.Valid {
			t := claimedAt.Time
			msg.ClaimedAt = &t
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery
func (r *PostgresOutboxRepository) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE ` + r.table + ` SET status = 'sent', sent_at = now(), attempts = attempts + 1, last_error = '' WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark email %s sent: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed attempt. The message returns to pending until
// it reaches maxAttempts, then stays failed.
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	query := `
		UPDATE ` + r.table + `
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    claimed_at = NULL
		WHERE id = $1
	`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, cause, maxAttempts); err != nil {
		return fmt.Errorf("failed to mark email %s failed: %w", id, err)
	}
	return nil
}

// PurgeSent deletes delivered messages older than before
func (r *PostgresOutboxRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM `+r.table+` WHERE status = 'sent' AND sent_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return res.RowsAffected()
}
