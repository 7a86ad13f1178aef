package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/laala/laala-api/internal/domain"
)

const accountRequestColumns = `id, email, status, admin_comment, temporary_password_hash, is_first_login,
	requested_at, processed_at, processed_by, user_id`

// PostgresAccountRequestRepository implements domain.AccountRequestRepository.
// The partial unique index on (email) WHERE status = 'pending' backs the
// one-pending-request-per-email rule.
type PostgresAccountRequestRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresAccountRequestRepository creates a new account request repository
func NewPostgresAccountRequestRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresAccountRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountRequestRepository{db: db, table: table(tableName), logger: logger}
}

// Create inserts a pending request
func (r *PostgresAccountRequestRepository) Create(ctx context.Context, req *domain.AccountRequest) error {
	query := `
		INSERT INTO ` + r.table + ` (id, email, status, requested_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, req.ID, req.Email, string(req.Status), req.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("a request is already pending for %s", req.Email)
		}
		r.logger.Error("failed to create account request",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create account request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *PostgresAccountRequestRepository) GetByID(ctx context.Context, id string) (*domain.AccountRequest, error) {
	query := `SELECT ` + accountRequestColumns + ` FROM ` + r.table + ` WHERE id = $1`
	req, err := scanAccountRequest(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("account request %s not found", id)
		}
		return nil, fmt.Errorf("failed to get account request: %w", err)
	}
	return req, nil
}

// FindPendingByEmail returns the pending request for email, if any
func (r *PostgresAccountRequestRepository) FindPendingByEmail(ctx context.Context, email string) (*domain.AccountRequest, error) {
	query := `SELECT ` + accountRequestColumns + ` FROM ` + r.table + ` WHERE email = $1 AND status = 'pending'`
	req, err := scanAccountRequest(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("no pending request for %s", email)
		}
		return nil, fmt.Errorf("failed to find pending request: %w", err)
	}
	return req, nil
}

// FindAwaitingFirstLogin returns the latest approved request for email whose
// temporary password has not been exchanged yet
func (r *PostgresAccountRequestRepository) FindAwaitingFirstLogin(ctx context.Context, email string) (*domain.AccountRequest, error) {
	query := `
		SELECT ` + accountRequestColumns + ` FROM ` + r.table + `
		WHERE email = $1 AND status = 'approved' AND is_first_login AND temporary_password_hash <> ''
		ORDER BY processed_at DESC
		LIMIT 1
	`
	req, err := scanAccountRequest(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("no approved request awaiting first login for %s", email)
		}
		return nil, fmt.Errorf("failed to find approved request: %w", err)
	}
	return req, nil
}

// List returns requests newest first, optionally filtered by status
func (r *PostgresAccountRequestRepository) List(ctx context.Context, status domain.AccountRequestStatus) ([]*domain.AccountRequest, error) {
	query := `SELECT ` + accountRequestColumns + ` FROM ` + r.table + `
		WHERE ($1 = '' OR status = $1)
		ORDER BY requested_at DESC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list account requests: %w", err)
	}
	defer rows.Close()

	out := []*domain.AccountRequest{}
	for rows.Next() {
		req, err := scanAccountRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// TransitionFromPending moves a pending request to its terminal status. The
// status guard in the WHERE clause makes concurrent transitions lose cleanly.
func (r *PostgresAccountRequestRepository) TransitionFromPending(ctx context.Context, req *domain.AccountRequest) error {
	query := `
		UPDATE ` + r.table + `
		SET status = $2, admin_comment = $3, temporary_password_hash = $4, is_first_login = $5,
		    processed_at = $6, processed_by = $7, user_id = $8
		WHERE id = $1 AND status = 'pending'
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		req.ID, string(req.Status), req.AdminComment, req.TemporaryPasswordHash,
		req.IsFirstLogin, req.ProcessedAt, req.ProcessedBy, req.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to transition account request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, req.ID); err != nil {
			return err
		}
		return domain.ErrConflict("account request %s was already processed", req.ID)
	}
	return nil
}

// Update writes the first-login fields of an already processed request
func (r *PostgresAccountRequestRepository) Update(ctx context.Context, req *domain.AccountRequest) error {
	query := `
		UPDATE ` + r.table + `
		SET admin_comment = $2, temporary_password_hash = $3, is_first_login = $4, user_id = $5
		WHERE id = $1
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		req.ID, req.AdminComment, req.TemporaryPasswordHash, req.IsFirstLogin, req.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("account request %s not found", req.ID)
	}
	return nil
}

func scanAccountRequest(row rowScanner) (*domain.AccountRequest, error) {
	req := &domain.AccountRequest{}
	var status string
	var processedAt sql.NullTime
	err := row.Scan(
		&req.ID, &req.Email, &status, &req.AdminComment, &req.TemporaryPasswordHash,
		&req.IsFirstLogin, &req.RequestedAt, &processedAt, &req.ProcessedBy, &req.UserID,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.AccountRequestStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		req.ProcessedAt = &t
	}
	return req, nil
}
