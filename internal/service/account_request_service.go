package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/observability/metrics"
	"github.com/laala/laala-api/internal/security/auth"
)

var tracer = otel.Tracer("github.com/laala/laala-api/internal/service")

// AccountRequestService runs the pending → approved | rejected workflow and
// the first login that completes an approval.
type AccountRequestService struct {
	requests      domain.AccountRequestRepository
	users         domain.UserRepository
	coManagers    domain.CoManagerRepository
	outbox        domain.OutboxRepository
	tx            domain.TxRunner
	composer      *notify.Composer
	auth          *AuthService
	notifications *NotificationService
	logger        *slog.Logger
	now           func() time.Time
}

// AccountRequestDeps groups the collaborators of AccountRequestService.
type AccountRequestDeps struct {
	Requests      domain.AccountRequestRepository
	Users         domain.UserRepository
	CoManagers    domain.CoManagerRepository
	Outbox        domain.OutboxRepository
	Tx            domain.TxRunner
	Composer      *notify.Composer
	Auth          *AuthService
	Notifications *NotificationService
}

// NewAccountRequestService creates the account request workflow
func NewAccountRequestService(deps AccountRequestDeps, logger *slog.Logger) *AccountRequestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRequestService{
		requests:      deps.Requests,
		users:         deps.Users,
		coManagers:    deps.CoManagers,
		outbox:        deps.Outbox,
		tx:            deps.Tx,
		composer:      deps.Composer,
		auth:          deps.Auth,
		notifications: deps.Notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// Process actions accepted by the admin endpoint.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ProcessInput is an admin decision on a request.
type ProcessInput struct {
	RequestID         string `json:"requestId"`
	Action            string `json:"action"`
	Comment           string `json:"comment,omitempty"`
	TemporaryPassword string `json:"temporaryPassword,omitempty"`
}

// ProcessResult is returned to the admin. TemporaryPassword is only set on
// approval and is never stored in clear.
type ProcessResult struct {
	Request           *domain.AccountRequest `json:"request"`
	TemporaryPassword string                 `json:"temporaryPassword,omitempty"`
}

// Submit queues a new pending request for email
func (s *AccountRequestService) Submit(ctx context.Context, email string) (*domain.AccountRequest, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrConflict("an account already exists for %s", email)
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if _, err := s.coManagers.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrConflict("%s is already registered as a co-gestionnaire", email)
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check existing co-manager: %w", err)
	}
	if _, err := s.requests.FindPendingByEmail(ctx, email); err == nil {
		return nil, domain.ErrConflict("a request is already pending for %s", email)
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}

	req := &domain.AccountRequest{
		ID:          uuid.NewString(),
		Email:       email,
		Status:      domain.RequestPending,
		RequestedAt: s.now().UTC(),
	}
	// the unique index still wins a concurrent race and reports a conflict
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	metrics.ObserveAccountRequest("submitted")
	s.logger.Info("account request submitted",
		slog.String("request_id", req.ID),
		slog.String("email", email),
	)
	return req, nil
}

// Process dispatches an admin decision to Approve or Reject
func (s *AccountRequestService) Process(ctx context.Context, adminID string, in ProcessInput) (*ProcessResult, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, domain.ErrValidation("requestId is required")
	}
	switch in.Action {
	case ActionApprove:
		return s.Approve(ctx, adminID, in.RequestID, in.Comment, in.TemporaryPassword)
	case ActionReject:
		req, err := s.Reject(ctx, adminID, in.RequestID, in.Comment)
		if err != nil {
			return nil, err
		}
		return &ProcessResult{Request: req}, nil
	default:
		return nil, domain.ErrValidation("action must be approve or reject")
	}
}

// Approve moves a pending request to approved, creates the user in
// first_login status and queues the approval email, all in one transaction.
func (s *AccountRequestService) Approve(ctx context.Context, adminID, requestID, comment, tempPassword string) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "AccountRequestService.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("laala.request_id", requestID))

	req, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if tempPassword == "" {
		if tempPassword, err = auth.GenerateTemporaryPassword(); err != nil {
			return nil, err
		}
	} else if err := domain.ValidatePassword("temporaryPassword", tempPassword); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleCreator,
		Status:       domain.UserFirstLogin,
		IsFirstLogin: true,
	}
	req.Status = domain.RequestApproved
	req.AdminComment = strings.TrimSpace(comment)
	req.TemporaryPasswordHash = hash
	req.IsFirstLogin = true
	req.ProcessedAt = &now
	req.ProcessedBy = adminID
	req.UserID = user.ID

	msg, err := s.composer.Compose(notify.KindAccountApproved, req.Email, notify.EmailData{
		Password: tempPassword,
		Comment:  req.AdminComment,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// the resolver tells roles apart by email, so it must stay unique across both
		if _, err := s.coManagers.GetByEmail(ctx, req.Email); err == nil {
			return domain.ErrConflict("%s is already registered as a co-gestionnaire", req.Email)
		} else if !domain.IsNotFound(err) {
			return fmt.Errorf("failed to check existing co-manager: %w", err)
		}
		if err := s.requests.TransitionFromPending(ctx, req); err != nil {
			return err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, msg)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to approve request %s: %w", requestID, err)
	}

	s.notifications.Notify(ctx, user.ID, domain.NotificationAccountApproved,
		"Bienvenue sur La-à-La", "Votre compte a été approuvé.")
	metrics.ObserveAccountRequest("approved")
	s.logger.Info("account request approved",
		slog.String("request_id", req.ID),
		slog.String("email", req.Email),
		slog.String("admin_id", adminID),
		slog.String("user_id", user.ID),
	)
	return &ProcessResult{Request: req, TemporaryPassword: tempPassword}, nil
}

// Reject moves a pending request to rejected and queues the rejection email
func (s *AccountRequestService) Reject(ctx context.Context, adminID, requestID, comment string) (*domain.AccountRequest, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, domain.ErrValidation("comment is required to reject a request")
	}

	req, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req.Status = domain.RequestRejected
	req.AdminComment = comment
	req.ProcessedAt = &now
	req.ProcessedBy = adminID

	msg, err := s.composer.Compose(notify.KindAccountRejected, req.Email, notify.EmailData{Comment: comment})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requests.TransitionFromPending(ctx, req); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject request %s: %w", requestID, err)
	}

	metrics.ObserveAccountRequest("rejected")
	s.logger.Info("account request rejected",
		slog.String("request_id", req.ID),
		slog.String("email", req.Email),
		slog.String("admin_id", adminID),
	)
	return req, nil
}

func (s *AccountRequestService) pending(ctx context.Context, requestID string) (*domain.AccountRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, domain.ErrConflict("request already processed (%s)", req.Status)
	}
	return req, nil
}

// LoginTemporary exchanges the temporary password for a permanent one and
// opens a session.
func (s *AccountRequestService) LoginTemporary(ctx context.Context, email, tempPassword, newPassword string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || tempPassword == "" {
		return nil, domain.ErrValidation("email and temporaryPassword are required")
	}
	if err := domain.ValidatePassword("newPassword", newPassword); err != nil {
		return nil, err
	}
	if newPassword == tempPassword {
		return nil, domain.ErrValidation("newPassword must differ from the temporary password")
	}

	req, err := s.requests.FindAwaitingFirstLogin(ctx, email)
	if err != nil {
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load account request: %w", err)
		}
		if user, uerr := s.users.GetByEmail(ctx, email); uerr == nil && user.Status == domain.UserActive {
			return nil, domain.ErrConflict("first login already completed")
		}
		return nil, domain.ErrAuthentication("invalid credentials")
	}
	if !auth.CheckPassword(req.TemporaryPasswordHash, tempPassword) {
		s.logger.Info("first login failed with wrong temporary password", slog.String("email", email))
		return nil, domain.ErrAuthentication("invalid credentials")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved user: %w", err)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.Status = domain.UserActive
	user.IsFirstLogin = false
	req.TemporaryPasswordHash = ""
	req.IsFirstLogin = false

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		return s.requests.Update(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete first login: %w", err)
	}

	metrics.ObserveAccountRequest("first_login")
	s.logger.Info("first login completed",
		slog.String("user_id", user.ID),
		slog.String("request_id", req.ID),
	)
	return s.auth.IssueForUser(user)
}

// Get returns one request
func (s *AccountRequestService) Get(ctx context.Context, id string) (*domain.AccountRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// List returns requests, optionally filtered by status
func (s *AccountRequestService) List(ctx context.Context, status string) ([]*domain.AccountRequest, error) {
	var st domain.AccountRequestStatus
	if status != "" {
		parsed, err := domain.ParseAccountRequestStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	out, err := s.requests.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to list account requests: %w", err)
	}
	return out, nil
}
