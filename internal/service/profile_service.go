package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/security/auth"
)

// ProfileService reads and edits the principal's own profile
type ProfileService struct {
	users  domain.UserRepository
	logger *slog.Logger
}

// NewProfileService creates a profile service
func NewProfileService(users domain.UserRepository, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{users: users, logger: logger}
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	Phone       *string `json:"phone"`
	Country     *string `json:"country"`
	City        *string `json:"city"`
}

// Ensure returns the user row of an authenticated principal, creating it
// when the identity was issued elsewhere (an OIDC provider) and has never
// been seen. Identities without an email are returned as not found.
func (s *ProfileService) Ensure(ctx context.Context, id *auth.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id.Subject)
	if err == nil || !domain.IsNotFound(err) {
		return user, err
	}
	email := domain.NormalizeEmail(id.Email)
	if email == "" {
		return nil, domain.ErrNotFound("no account for %s", id.Subject)
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email
	}
	user = &domain.User{
		ID:          id.Subject,
		Email:       email,
		DisplayName: name,
		Role:        domain.RoleCreator,
		Status:      domain.UserActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !domain.IsConflict(err) {
			return nil, fmt.Errorf("failed to provision user %s: %w", id.Subject, err)
		}
		// a concurrent request may have won the insert
		if existing, getErr := s.users.GetByID(ctx, id.Subject); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	s.logger.Info("principal provisioned",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Get returns the principal's profile
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Update applies the supplied fields
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, domain.ErrValidation("displayName cannot be empty")
		}
		user.DisplayName = name
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Country != nil {
		user.Country = strings.TrimSpace(*in.Country)
	}
	if in.City != nil {
		user.City = strings.TrimSpace(*in.City)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.logger.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}
