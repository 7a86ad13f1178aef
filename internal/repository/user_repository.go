package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/laala/laala-api/internal/domain"
)

const userColumns = `id, email, display_name, phone, country, city, password_hash, role, status, is_first_login, created_at, updated_at`

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository over tableName
func NewPostgresUserRepository(db *sql.DB, tableName string, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		table:  table(tableName),
		logger: logger,
	}
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO ` + r.table + ` (id, email, display_name, phone, country, city, password_hash, role, status, is_first_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Phone,
		user.Country,
		user.City,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.IsFirstLogin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("an account already exists for %s", user.Email)
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM ` + r.table + ` WHERE id = $1`
	user, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("user %s not found", id)
		}
		r.logger.Error("failed to get user by id",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM ` + r.table + ` WHERE email = $1`
	user, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("user %s not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Update writes every mutable field of user
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE ` + r.table + `
		SET display_name = $2, phone = $3, country = $4, city = $5, password_hash = $6,
		    role = $7, status = $8, is_first_login = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		user.ID,
		user.DisplayName,
		user.Phone,
		user.Country,
		user.City,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.IsFirstLogin,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("user %s not found", user.ID)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var role, status string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Phone,
		&user.Country,
		&user.City,
		&user.PasswordHash,
		&role,
		&status,
		&user.IsFirstLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = domain.UserRole(role)
	user.Status = domain.UserStatus(status)
	return user, nil
}
