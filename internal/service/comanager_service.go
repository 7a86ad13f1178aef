package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/security/auth"
)

// CoManagerService manages the co-managers of a principal
type CoManagerService struct {
	coManagers    domain.CoManagerRepository
	users         domain.UserRepository
	requests      domain.AccountRequestRepository
	outbox        domain.OutboxRepository
	tx            domain.TxRunner
	composer      *notify.Composer
	notifications *NotificationService
	logger        *slog.Logger
}

// NewCoManagerService creates a co-manager service
func NewCoManagerService(
	coManagers domain.CoManagerRepository,
	users domain.UserRepository,
	requests domain.AccountRequestRepository,
	outbox domain.OutboxRepository,
	tx domain.TxRunner,
	composer *notify.Composer,
	notifications *NotificationService,
	logger *slog.Logger,
) *CoManagerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoManagerService{
		coManagers:    coManagers,
		users:         users,
		requests:      requests,
		outbox:        outbox,
		tx:            tx,
		composer:      composer,
		notifications: notifications,
		logger:        logger,
	}
}

// CreateCoManagerInput is the payload of a co-manager creation
type CreateCoManagerInput struct {
	Nom         string                      `json:"nom"`
	Prenom      string                      `json:"prenom"`
	Email       string                      `json:"email"`
	Telephone   string                      `json:"telephone"`
	Pays        string                      `json:"pays"`
	Ville       string                      `json:"ville"`
	AccessLevel string                      `json:"accessLevel"`
	Password    string                      `json:"password"`
	Permissions []domain.ResourcePermission `json:"permissions"`
}

// UpdateCoManagerInput carries the fields to change. Email and Password are
// decoded only to reject them.
type UpdateCoManagerInput struct {
	Nom         *string                      `json:"nom"`
	Prenom      *string                      `json:"prenom"`
	Telephone   *string                      `json:"telephone"`
	Pays        *string                      `json:"pays"`
	Ville       *string                      `json:"ville"`
	AccessLevel *string                      `json:"accessLevel"`
	Status      *string                      `json:"statut"`
	Permissions *[]domain.ResourcePermission `json:"permissions"`
	Email       *string                      `json:"email"`
	Password    *string                      `json:"password"`
}

// Create registers a co-manager for proprietaireID, notifies the principal
// and queues the welcome email.
func (s *CoManagerService) Create(ctx context.Context, proprietaireID string, in CreateCoManagerInput) (*domain.CoManager, error) {
	perms, err := domain.ParsePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	level, err := domain.ParseAccessLevel(in.AccessLevel)
	if err != nil {
		return nil, err
	}

	cm := &domain.CoManager{
		ID:                 uuid.NewString(),
		Nom:                strings.TrimSpace(in.Nom),
		Prenom:             strings.TrimSpace(in.Prenom),
		Email:              domain.NormalizeEmail(in.Email),
		Telephone:          strings.TrimSpace(in.Telephone),
		Pays:               strings.TrimSpace(in.Pays),
		Ville:              strings.TrimSpace(in.Ville),
		AccessLevel:        level,
		Status:             domain.CoManagerActive,
		Permissions:        perms,
		ProprietaireID:     proprietaireID,
		MustChangePassword: true,
	}
	if err := cm.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword("password", in.Password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, cm.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	cm.PasswordHash = hash

	ownerName := "Votre créateur"
	if owner, err := s.users.GetByID(ctx, proprietaireID); err == nil && owner.DisplayName != "" {
		ownerName = owner.DisplayName
	}
	msg, err := s.composer.Compose(notify.KindCoManagerWelcome, cm.Email, notify.EmailData{
		Name:      cm.DisplayName(),
		OwnerName: ownerName,
		Password:  in.Password,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.coManagers.Create(ctx, cm); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create co-manager: %w", err)
	}

	s.notifications.Notify(ctx, proprietaireID, domain.NotificationCoManagerCreated,
		"Nouveau co-gestionnaire", fmt.Sprintf("%s (%s) a été ajouté comme co-gestionnaire.", cm.DisplayName(), cm.Email))
	s.logger.Info("co-manager created",
		slog.String("co_manager_id", cm.ID),
		slog.String("proprietaire_id", proprietaireID),
		slog.String("access_level", string(cm.AccessLevel)),
	)
	return cm, nil
}

func (s *CoManagerService) ensureEmailFree(ctx context.Context, email string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.ErrConflict("%s already belongs to an account", email)
	} else if !domain.IsNotFound(err) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if _, err := s.coManagers.GetByEmail(ctx, email); err == nil {
		return domain.ErrConflict("%s is already a co-gestionnaire", email)
	} else if !domain.IsNotFound(err) {
		return fmt.Errorf("failed to check existing co-manager: %w", err)
	}
	// a pending request would turn into a principal sharing this email
	if _, err := s.requests.FindPendingByEmail(ctx, email); err == nil {
		return domain.ErrConflict("%s has a pending account request", email)
	} else if !domain.IsNotFound(err) {
		return fmt.Errorf("failed to check pending requests: %w", err)
	}
	return nil
}

// List returns the co-managers owned by proprietaireID
func (s *CoManagerService) List(ctx context.Context, proprietaireID string) ([]*domain.CoManager, error) {
	out, err := s.coManagers.ListByOwner(ctx, proprietaireID)
	if err != nil {
		return nil, fmt.Errorf("failed to list co-managers: %w", err)
	}
	return out, nil
}

// Get returns one of proprietaireID's co-managers. Records owned by another
// principal are reported as not found.
func (s *CoManagerService) Get(ctx context.Context, proprietaireID, id string) (*domain.CoManager, error) {
	cm, err := s.coManagers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cm.ProprietaireID != proprietaireID {
		return nil, domain.ErrNotFound("co-manager %s not found", id)
	}
	return cm, nil
}

// Update changes any field of an owned co-manager except email and password
func (s *CoManagerService) Update(ctx context.Context, proprietaireID, id string, in UpdateCoManagerInput) (*domain.CoManager, error) {
	if in.Email != nil {
		return nil, domain.ErrValidation("email cannot be changed")
	}
	if in.Password != nil {
		return nil, domain.ErrValidation("password cannot be changed here")
	}

	cm, err := s.Get(ctx, proprietaireID, id)
	if err != nil {
		return nil, err
	}

	if in.Nom != nil {
		cm.Nom = strings.TrimSpace(*in.Nom)
	}
	if in.Prenom != nil {
		cm.Prenom = strings.TrimSpace(*in.Prenom)
	}
	if in.Telephone != nil {
		cm.Telephone = strings.TrimSpace(*in.Telephone)
	}
	if in.Pays != nil {
		cm.Pays = strings.TrimSpace(*in.Pays)
	}
	if in.Ville != nil {
		cm.Ville = strings.TrimSpace(*in.Ville)
	}
	if in.AccessLevel != nil {
		if cm.AccessLevel, err = domain.ParseAccessLevel(*in.AccessLevel); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if cm.Status, err = domain.ParseCoManagerStatus(*in.Status); err != nil {
			return nil, err
		}
	}
	if in.Permissions != nil {
		if cm.Permissions, err = domain.ParsePermissions(*in.Permissions); err != nil {
			return nil, err
		}
	}
	if err := cm.Validate(); err != nil {
		return nil, err
	}

	if err := s.coManagers.Update(ctx, cm); err != nil {
		return nil, fmt.Errorf("failed to update co-manager: %w", err)
	}
	s.logger.Info("co-manager updated",
		slog.String("co_manager_id", cm.ID),
		slog.String("proprietaire_id", proprietaireID),
		slog.String("status", string(cm.Status)),
	)
	return cm, nil
}

// Delete removes an owned co-manager
func (s *CoManagerService) Delete(ctx context.Context, proprietaireID, id string) error {
	if _, err := s.Get(ctx, proprietaireID, id); err != nil {
		return err
	}
	if err := s.coManagers.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete co-manager: %w", err)
	}
	s.logger.Info("co-manager deleted",
		slog.String("co_manager_id", id),
		slog.String("proprietaire_id", proprietaireID),
	)
	return nil
}

// ChangePassword is the co-manager's own password change. It clears
// MustChangePassword.
func (s *CoManagerService) ChangePassword(ctx context.Context, coManagerID, currentPassword, newPassword string) error {
	if err := domain.ValidatePassword("newPassword", newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return domain.ErrValidation("newPassword must differ from the current password")
	}

	cm, err := s.coManagers.GetByID(ctx, coManagerID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(cm.PasswordHash, currentPassword) {
		return domain.ErrAuthentication("current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	cm.PasswordHash = hash
	cm.MustChangePassword = false
	if err := s.coManagers.Update(ctx, cm); err != nil {
		return fmt.Errorf("failed to change co-manager password: %w", err)
	}

	s.notifications.Notify(ctx, cm.ID, domain.NotificationPasswordChanged,
		"Mot de passe modifié", "Votre mot de passe a été changé.")
	s.logger.Info("co-manager changed password", slog.String("co_manager_id", cm.ID))
	return nil
}
