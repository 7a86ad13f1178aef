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

const coManagerColumns = `id, nom, prenom, email, telephone, pays, ville, access_level, status, permissions,
	proprietaire_id, password_hash, must_change_password, created_at, updated_at`

// PostgresCoManagerRepository implements domain.CoManagerRepository.
// Permissions are stored as a JSONB map of resource to action list.
type PostgresCoManagerRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresCoManagerRepository creates a new co-manager repository
func NewPostgresCoManagerRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresCoManagerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCoManagerRepository{db: db, table: table(tableName), logger: logger}
}

// Create inserts cm. A duplicate email is reported as a conflict.
func (r *PostgresCoManagerRepository) Create(ctx context.Context, cm *domain.CoManager) error {
	perms, err := json.Marshal(cm.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	query := `
		INSERT INTO ` + r.table + ` (id, nom, prenom, email, telephone, pays, ville, access_level, status,
			permissions, proprietaire_id, password_hash, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		cm.ID, cm.Nom, cm.Prenom, cm.Email, cm.Telephone, cm.Pays, cm.Ville,
		string(cm.AccessLevel), string(cm.Status), perms, cm.ProprietaireID,
		cm.PasswordHash, cm.MustChangePassword,
	).Scan(&cm.CreatedAt, &cm.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("a co-manager already exists for %s", cm.Email)
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound("proprietaire %s has no account", cm.ProprietaireID)
		}
		r.logger.Error("failed to create co-manager",
			slog.String("email", cm.Email),
			slog.String("proprietaire_id", cm.ProprietaireID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create co-manager: %w", err)
	}
	return nil
}

// GetByID retrieves a co-manager by ID
func (r *PostgresCoManagerRepository) GetByID(ctx context.Context, id string) (*domain.CoManager, error) {
	query := `SELECT ` + coManagerColumns + ` FROM ` + r.table + ` WHERE id = $1`
	cm, err := scanCoManager(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("co-manager %s not found", id)
		}
		return nil, fmt.Errorf("failed to get co-manager: %w", err)
	}
	return cm, nil
}

// GetByEmail retrieves a co-manager by normalized email
func (r *PostgresCoManagerRepository) GetByEmail(ctx context.Context, email string) (*domain.CoManager, error) {
	query := `SELECT ` + coManagerColumns + ` FROM ` + r.table + ` WHERE email = $1`
	cm, err := scanCoManager(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("co-manager %s not found", email)
		}
		return nil, fmt.Errorf("failed to get co-manager by email: %w", err)
	}
	return cm, nil
}

// ListByOwner returns the co-managers of one principal, oldest first
func (r *PostgresCoManagerRepository) ListByOwner(ctx context.Context, proprietaireID string) ([]*domain.CoManager, error) {
	query := `SELECT ` + coManagerColumns + ` FROM ` + r.table + ` WHERE proprietaire_id = $1 ORDER BY created_at`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, proprietaireID)
	if err != nil {
		return nil, fmt.Errorf("failed to list co-managers: %w", err)
	}
	defer rows.Close()

	var out []*domain.CoManager
	for rows.Next() {
		cm, err := scanCoManager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan co-manager: %w", err)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

// Update writes every mutable field of cm
func (r *PostgresCoManagerRepository) Update(ctx context.Context, cm *domain.CoManager) error {
	perms, err := json.Marshal(cm.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	query := `
		UPDATE ` + r.table + `
		SET nom = $2, prenom = $3, email = $4, telephone = $5, pays = $6, ville = $7,
		    access_level = $8, status = $9, permissions = $10, password_hash = $11,
		    must_change_password = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err = conn(ctx, r.db).QueryRowContext(ctx, query,
		cm.ID, cm.Nom, cm.Prenom, cm.Email, cm.Telephone, cm.Pays, cm.Ville,
		string(cm.AccessLevel), string(cm.Status), perms, cm.PasswordHash, cm.MustChangePassword,
	).Scan(&cm.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("co-manager %s not found", cm.ID)
		}
		if isUniqueViolation(err) {
			return domain.ErrConflict("a co-manager already exists for %s", cm.Email)
		}
		return fmt.Errorf("failed to update co-manager: %w", err)
	}
	return nil
}

// Delete removes a co-manager by ID
func (r *PostgresCoManagerRepository) Delete(ctx context.Context, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete co-manager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("co-manager %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoManager(row rowScanner) (*domain.CoManager, error) {
	cm := &domain.CoManager{}
	var level, status string
	var perms []byte
	err := row.Scan(
		&cm.ID, &cm.Nom, &cm.Prenom, &cm.Email, &cm.Telephone, &cm.Pays, &cm.Ville,
		&level, &status, &perms, &cm.ProprietaireID, &cm.PasswordHash,
		&cm.MustChangePassword, &cm.CreatedAt, &cm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cm.AccessLevel = domain.AccessLevel(level)
	cm.Status = domain.CoManagerStatus(status)
	if err := json.Unmarshal(perms, &cm.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions for %s: %w", cm.ID, err)
	}
	return cm, nil
}
