// Package security resolves who a caller acts for and decides whether a
// request may proceed.
package security

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/security/auth"
)

// AuthContext is the per-request authorization state. It is derived on
// every request and never cached.
type AuthContext struct {
	IsCoGestionnaire   bool
	ProprietaireID     string
	Permissions        domain.Permissions
	CoGestionnaireInfo *domain.CoManager
	Identity           *auth.Identity
	IsAdmin            bool
}

// CheckResourcePermission reports whether the caller may perform action on
// resource. Principals are always allowed on their own data.
func (ac *AuthContext) CheckResourcePermission(resource domain.Resource, action domain.Action) bool {
	if !ac.IsCoGestionnaire {
		return true
	}
	return ac.Permissions.Allows(resource, action)
}

// DataFilter scopes every data access to the owning principal.
func (ac *AuthContext) DataFilter() domain.DataFilter {
	return domain.OwnerFilter(ac.ProprietaireID)
}

// ActorID is the id of whoever is calling: the co-manager or the principal.
func (ac *AuthContext) ActorID() string {
	if ac.IsCoGestionnaire && ac.CoGestionnaireInfo != nil {
		return ac.CoGestionnaireInfo.ID
	}
	return ac.Identity.Subject
}

// ActorName is the human-readable caller name used in audit entries.
func (ac *AuthContext) ActorName() string {
	if ac.IsCoGestionnaire && ac.CoGestionnaireInfo != nil {
		return ac.CoGestionnaireInfo.DisplayName()
	}
	if ac.Identity.Name != "" {
		return ac.Identity.Name
	}
	return ac.Identity.Email
}

// Kind is "co_manager" or "principal".
func (ac *AuthContext) Kind() string {
	if ac.IsCoGestionnaire {
		return auth.KindCoManager
	}
	return auth.KindPrincipal
}

// ContextResolver builds the authorization context of a verified identity.
type ContextResolver interface {
	Resolve(ctx context.Context, id *auth.Identity) (*AuthContext, error)
}

// Resolver looks up co-manager records to decide who the caller acts for.
type Resolver struct {
	coManagers   domain.CoManagerRepository
	isAdminEmail func(email string) bool
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewResolver creates a resolver. isAdminEmail may be nil.
func NewResolver(coManagers domain.CoManagerRepository, isAdminEmail func(string) bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if isAdminEmail == nil {
		isAdminEmail = func(string) bool { return false }
	}
	return &Resolver{
		coManagers:   coManagers,
		isAdminEmail: isAdminEmail,
		tracer:       otel.Tracer("github.com/laala/laala-api/internal/security"),
		logger:       logger,
	}
}

// Resolve returns the co-manager context when the identity's email matches
// an active or pending co-manager record, and the principal context when no
// record matches. A matching inactive or suspended record is denied, as is a
// co-manager token whose record is gone. Store failures are returned as is.
func (r *Resolver) Resolve(ctx context.Context, id *auth.Identity) (*AuthContext, error) {
	ctx, span := r.tracer.Start(ctx, "security.Resolve")
	defer span.End()

	if id == nil || id.Subject == "" {
		return nil, fmt.Errorf("failed to resolve context: empty identity")
	}

	cm, err := r.coManagers.GetByEmail(ctx, domain.NormalizeEmail(id.Email))
	switch {
	case err == nil:
		if !cm.Status.CanAct() {
			span.SetAttributes(attribute.String("laala.co_manager.status", string(cm.Status)))
			return nil, domain.ErrAccessDenied("co-gestionnaire account is %s", cm.Status)
		}
		span.SetAttributes(
			attribute.Bool("laala.co_manager", true),
			attribute.String("laala.proprietaire_id", cm.ProprietaireID),
		)
		return &AuthContext{
			IsCoGestionnaire:   true,
			ProprietaireID:     cm.ProprietaireID,
			Permissions:        cm.Permissions.Clone(),
			CoGestionnaireInfo: cm,
			Identity:           id,
		}, nil

	case domain.IsNotFound(err):
		// a co-manager session outliving its record must not become a principal
		if id.Kind == auth.KindCoManager {
			span.SetAttributes(attribute.Bool("laala.co_manager.deleted", true))
			return nil, domain.ErrAccessDenied("co-gestionnaire account no longer exists")
		}
		span.SetAttributes(attribute.Bool("laala.co_manager", false))
		return &AuthContext{
			ProprietaireID: id.Subject,
			Permissions:    domain.Permissions{},
			Identity:       id,
			IsAdmin:        id.Role == string(domain.RoleAdmin) || r.isAdminEmail(id.Email),
		}, nil

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "co-manager lookup failed")
		r.logger.Error("failed to resolve authorization context",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to resolve authorization context: %w", err)
	}
}
