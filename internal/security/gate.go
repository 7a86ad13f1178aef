package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/observability/metrics"
	"github.com/laala/laala-api/internal/security/auth"
)

// Denial is the terminal "denied" state of the gate.
type Denial struct {
	Status int
	Reason string
	Cause  error
}

func (d *Denial) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %v", d.Reason, d.Cause)
	}
	return d.Reason
}

func (d *Denial) Unwrap() error { return d.Cause }

// Gate runs the per-request authorization pipeline: extract token, verify,
// resolve context, check permission. It never retries.
type Gate struct {
	verifier auth.Verifier
	resolver ContextResolver
	logger   *slog.Logger
}

// NewGate creates a gate
func NewGate(verifier auth.Verifier, resolver ContextResolver, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{verifier: verifier, resolver: resolver, logger: logger}
}

// Authenticate turns an Authorization header into a resolved context.
func (g *Gate) Authenticate(ctx context.Context, authHeader string) (*AuthContext, *Denial) {
	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		return nil, &Denial{Status: http.StatusUnauthorized, Reason: "missing token"}
	}

	id, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.Debug("token verification failed", slog.String("error", err.Error()))
		return nil, &Denial{Status: http.StatusUnauthorized, Reason: "invalid token", Cause: err}
	}

	ac, err := g.resolver.Resolve(ctx, id)
	if err != nil {
		var denied *domain.AccessDeniedError
		if errors.As(err, &denied) {
			g.logger.Warn("disabled co-manager denied",
				slog.String("email", id.Email),
				slog.String("reason", denied.Message),
			)
			return nil, &Denial{Status: http.StatusForbidden, Reason: denied.Message, Cause: err}
		}
		return nil, &Denial{Status: http.StatusInternalServerError, Reason: "internal error", Cause: err}
	}
	return ac, nil
}

// Authorize checks (resource, action) against the resolved context.
func (g *Gate) Authorize(ac *AuthContext, resource domain.Resource, action domain.Action) *Denial {
	if ac.CheckResourcePermission(resource, action) {
		metrics.ObserveAuthorization(ac.Kind(), string(resource), "allowed")
		return nil
	}

	metrics.ObserveAuthorization(ac.Kind(), string(resource), "denied")
	g.logger.Warn("permission denied",
		slog.String("co_manager_id", ac.ActorID()),
		slog.String("proprietaire_id", ac.ProprietaireID),
		slog.String("resource", string(resource)),
		slog.String("action", string(action)),
	)
	return &Denial{
		Status: http.StatusForbidden,
		Reason: fmt.Sprintf("permission denied: %s on %s", action, resource),
	}
}

// RequirePrincipal denies co-managers. Profile, withdrawals and co-manager
// management are principal-only.
func RequirePrincipal(ac *AuthContext) *Denial {
	if ac.IsCoGestionnaire {
		return &Denial{Status: http.StatusForbidden, Reason: "reserved to the account owner"}
	}
	return nil
}

// RequireCoManager denies principals.
func RequireCoManager(ac *AuthContext) *Denial {
	if !ac.IsCoGestionnaire {
		return &Denial{Status: http.StatusForbidden, Reason: "reserved to co-gestionnaires"}
	}
	return nil
}

// RequireAdmin denies everyone but platform administrators.
func RequireAdmin(ac *AuthContext) *Denial {
	if ac.IsCoGestionnaire || !ac.IsAdmin {
		return &Denial{Status: http.StatusForbidden, Reason: "administrator access required"}
	}
	return nil
}
