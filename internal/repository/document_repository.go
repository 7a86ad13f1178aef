package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/laala/laala-api/internal/domain"
)

// PostgresDocumentRepository stores every owned collection in one JSONB
// table keyed by (collection, id).
type PostgresDocumentRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresDocumentRepository creates a document repository
func NewPostgresDocumentRepository(db *sql.DB, logger *slog.Logger) *PostgresDocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDocumentRepository{db: db, table: table("documents"), logger: logger}
}

// filterClause renders filter as a predicate starting at placeholder n.
// The owner field maps to its column; any other field matches inside data.
func filterClause(filter domain.DataFilter, n int) (string, []interface{}, error) {
	if filter.Field == "" || filter.Value == "" {
		return "", nil, fmt.Errorf("document query without a data filter")
	}
	if filter.Field == domain.OwnerField {
		return fmt.Sprintf("id_createur = $%d", n), []interface{}{filter.Value}, nil
	}
	return fmt.Sprintf("data->>$%d = $%d", n, n+1), []interface{}{filter.Field, filter.Value}, nil
}

// List returns the collection's documents matching filter, newest first
func (r *PostgresDocumentRepository) List(ctx context.Context, collection string, filter domain.DataFilter) ([]*domain.Document, error) {
	where, args, err := filterClause(filter, 2)
	if err != nil {
		return nil, err
	}
	query := `SELECT collection, id, id_createur, data, created_by, created_at, updated_at
		FROM ` + r.table + ` WHERE collection = $1 AND ` + where + ` ORDER BY created_at DESC`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, append([]interface{}{collection}, args...)...)
	if err != nil {
		r.logger.Error("failed to list documents",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Get returns one document when it matches filter
func (r *PostgresDocumentRepository) Get(ctx context.Context, collection, id string, filter domain.DataFilter) (*domain.Document, error) {
	where, args, err := filterClause(filter, 3)
	if err != nil {
		return nil, err
	}
	query := `SELECT collection, id, id_createur, data, created_by, created_at, updated_at
		FROM ` + r.table + ` WHERE collection = $1 AND id = $2 AND ` + where

	doc, err := scanDocument(conn(ctx, r.db).QueryRowContext(ctx, query, append([]interface{}{collection, id}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("%s %s not found", collection, id)
		}
		return nil, fmt.Errorf("failed to get %s document: %w", collection, err)
	}
	return doc, nil
}

// Create inserts doc
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	query := `
		INSERT INTO ` + r.table + ` (collection, id, id_createur, data, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		doc.Collection, doc.ID, doc.IDCreateur, data, doc.CreatedBy,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("%s %s already exists", doc.Collection, doc.ID)
		}
		return fmt.Errorf("failed to create %s document: %w", doc.Collection, err)
	}
	return nil
}

// Update replaces the data of a document matching filter
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *domain.Document, filter domain.DataFilter) error {
	where, args, err := filterClause(filter, 4)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	query := `UPDATE ` + r.table + ` SET data = $3, updated_at = now()
		WHERE collection = $1 AND id = $2 AND ` + where + ` RETURNING updated_at`

	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		append([]interface{}{doc.Collection, doc.ID, data}, args...)...,
	).Scan(&doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("%s %s not found", doc.Collection, doc.ID)
		}
		return fmt.Errorf("failed to update %s document: %w", doc.Collection, err)
	}
	return nil
}

// Delete removes a document matching filter
func (r *PostgresDocumentRepository) Delete(ctx context.Context, collection, id string, filter domain.DataFilter) error {
	where, args, err := filterClause(filter, 3)
	if err != nil {
		return err
	}
	query := `DELETE FROM ` + r.table + ` WHERE collection = $1 AND id = $2 AND ` + where
	res, err := conn(ctx, r.db).ExecContext(ctx, query, append([]interface{}{collection, id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("%s %s not found", collection, id)
	}
	return nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	doc := &domain.Document{}
	var data []byte
	if err := row.Scan(&doc.Collection, &doc.ID, &doc.IDCreateur, &data, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return doc, nil
}
