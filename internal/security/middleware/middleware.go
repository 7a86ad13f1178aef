// Package middleware adapts the permission gate to net/http.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security"
	"github.com/laala/laala-api/internal/security/audit"
)

// Authenticate verifies the bearer token and resolves the authorization
// context. A denial ends the request before any handler runs.
func Authenticate(gate *security.Gate, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, denial := gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if denial != nil {
				writeDenial(w, r, log, denial)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
		})
	}
}

// Authorize checks (resource, action) for the authenticated caller. After a
// successful (2xx) co-manager request an audit entry is recorded.
func Authorize(gate *security.Gate, resource domain.Resource, action domain.Action, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := AuthContextFrom(r.Context())
			if ac == nil {
				writeDenial(w, r, log, &security.Denial{Status: http.StatusUnauthorized, Reason: "missing token"})
				return
			}
			if denial := gate.Authorize(ac, resource, action); denial != nil {
				writeDenial(w, r, log, denial)
				return
			}
			if !ac.IsCoGestionnaire || auditLog == nil {
				next.ServeHTTP(w, r)
				return
			}

			target := &auditTarget{resourceID: chi.URLParam(r, "id")}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), auditTargetKey{}, target)))

			if rec.status < 200 || rec.status > 299 {
				return
			}
			entry := &domain.AuditEntry{
				ActorID:              ac.ActorID(),
				ActorName:            ac.ActorName(),
				Action:               action,
				Resource:             resource,
				ResourceID:           target.resourceID,
				ActingForPrincipalID: ac.ProprietaireID,
				RequestID:            RequestIDFromContext(r.Context()),
			}
			if err := auditLog.Record(context.WithoutCancel(r.Context()), entry); err != nil {
				log.Error("failed to record audit entry",
					slog.String("actor_id", entry.ActorID),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

// Require applies a caller-kind gate such as security.RequirePrincipal.
func Require(check func(*security.AuthContext) *security.Denial, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := AuthContextFrom(r.Context())
			if ac == nil {
				writeDenial(w, r, log, &security.Denial{Status: http.StatusUnauthorized, Reason: "missing token"})
				return
			}
			if denial := check(ac); denial != nil {
				writeDenial(w, r, log, denial)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one line per completed request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func writeDenial(w http.ResponseWriter, r *http.Request, log *slog.Logger, d *security.Denial) {
	details := ""
	if d.Status >= http.StatusInternalServerError && d.Cause != nil {
		log.Error("authorization failed",
			slog.String("path", r.URL.Path),
			slog.String("error", d.Cause.Error()),
		)
		details = d.Cause.Error()
	}
	response.Error(w, d.Status, d.Reason, details)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
