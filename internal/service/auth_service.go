package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/security/auth"
)

// AuthService handles password login for principals and co-managers
type AuthService struct {
	users         domain.UserRepository
	coManagers    domain.CoManagerRepository
	tokens        *auth.TokenManager
	notifications *NotificationService
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	coManagers domain.CoManagerRepository,
	tokens *auth.TokenManager,
	notifications *NotificationService,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:         users,
		coManagers:    coManagers,
		tokens:        tokens,
		notifications: notifications,
		logger:        logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Token              string `json:"token"`
	TokenType          string `json:"tokenType"`
	ExpiresIn          int    `json:"expiresIn"` // seconds
	Kind               string `json:"kind"`
	SubjectID          string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// Login authenticates a principal, then a co-manager, by email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrValidation("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.loginPrincipal(user, password)
	case !domain.IsNotFound(err):
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	cm, err := s.coManagers.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			s.logger.Info("login attempt with unknown email", slog.String("email", email))
			return nil, domain.ErrAuthentication("invalid credentials")
		}
		return nil, fmt.Errorf("failed to load co-manager: %w", err)
	}
	return s.loginCoManager(cm, password)
}

func (s *AuthService) loginPrincipal(user *domain.User, password string) (*LoginResult, error) {
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Info("login failed with wrong password", slog.String("email", user.Email))
		return nil, domain.ErrAuthentication("invalid credentials")
	}
	switch user.Status {
	case domain.UserFirstLogin:
		return nil, domain.ErrAccessDenied("first login required: use your temporary password")
	case domain.UserDisabled:
		return nil, domain.ErrAccessDenied("account is disabled")
	}

	result, err := s.IssueForUser(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return result, nil
}

func (s *AuthService) loginCoManager(cm *domain.CoManager, password string) (*LoginResult, error) {
	if !auth.CheckPassword(cm.PasswordHash, password) {
		s.logger.Info("co-manager login failed with wrong password", slog.String("email", cm.Email))
		return nil, domain.ErrAuthentication("invalid credentials")
	}
	if !cm.Status.CanAct() {
		return nil, domain.ErrAccessDenied("co-gestionnaire account is %s", cm.Status)
	}

	id := auth.Identity{Subject: cm.ID, Email: cm.Email, Name: cm.DisplayName(), Kind: auth.KindCoManager}
	result, err := s.issue(id)
	if err != nil {
		return nil, err
	}
	result.MustChangePassword = cm.MustChangePassword

	s.logger.Info("co-manager logged in",
		slog.String("co_manager_id", cm.ID),
		slog.String("proprietaire_id", cm.ProprietaireID),
	)
	return result, nil
}

// IssueForUser signs a session token for a principal.
func (s *AuthService) IssueForUser(user *domain.User) (*LoginResult, error) {
	return s.issue(auth.Identity{
		Subject: user.ID,
		Email:   user.Email,
		Name:    user.DisplayName,
		Role:    string(user.Role),
		Kind:    auth.KindPrincipal,
	})
}

func (s *AuthService) issue(id auth.Identity) (*LoginResult, error) {
	token, err := s.tokens.GenerateToken(id)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		Kind:      id.Kind,
		SubjectID: id.Subject,
		Email:     id.Email,
		Name:      id.Name,
	}, nil
}

// ChangePassword changes a principal's password
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := domain.ValidatePassword("newPassword", newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return domain.ErrValidation("newPassword must differ from the current password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		return domain.ErrAuthentication("current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user password", slog.String("error", err.Error()))
		return fmt.Errorf("failed to change password: %w", err)
	}

	s.notifications.Notify(ctx, user.ID, domain.NotificationPasswordChanged,
		"Mot de passe modifié", "Votre mot de passe a été changé.")
	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}
