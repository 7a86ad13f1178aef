package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/security"
)

type authContextKey struct{}
type requestIDKey struct{}
type auditTargetKey struct{}

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// WithAuthContext stores the resolved authorization context.
func WithAuthContext(ctx context.Context, ac *security.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFrom returns the resolved authorization context, or nil on
// unauthenticated routes.
func AuthContextFrom(ctx context.Context) *security.AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*security.AuthContext)
	return ac
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reuses a client-supplied X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// auditTarget lets a handler name the document it created or touched.
type auditTarget struct {
	resourceID string
}

// SetAuditResourceID records the id of the document the current request
// acted on. It is a no-op outside an audited route.
func SetAuditResourceID(ctx context.Context, id string) {
	if t, ok := ctx.Value(auditTargetKey{}).(*auditTarget); ok {
		t.resourceID = id
	}
}
