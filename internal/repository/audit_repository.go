package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/laala/laala-api/internal/domain"
)

// PostgresAuditRepository implements domain.AuditRepository
type PostgresAuditRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresAuditRepository creates an audit log repository
func NewPostgresAuditRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresAuditRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAuditRepository{db: db, table: table(tableName), logger: logger}
}

// Append inserts entry
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO ` + r.table + ` (id, actor_id, actor_name, action, resource, resource_id,
			acting_for_principal_id, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.ActorID, entry.ActorName, string(entry.Action), string(entry.Resource),
		entry.ResourceID, entry.ActingForPrincipalID, entry.RequestID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByPrincipal returns the newest entries recorded on behalf of principalID
func (r *PostgresAuditRepository) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*domain.AuditEntry, error) {
	query := `SELECT id, actor_id, actor_name, action, resource, resource_id, acting_for_principal_id, request_id, created_at
		FROM ` + r.table + ` WHERE acting_for_principal_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := []*domain.AuditEntry{}
	for rows.Next() {
		e := &domain.AuditEntry{}
		var action, resource string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &action, &resource, &e.ResourceID,
			&e.ActingForPrincipalID, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = domain.Action(action)
		e.Resource = domain.Resource(resource)
		out = append(out, e)
	}
	return out, rows.Err()
}
