package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/audit"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/service"
)

// NotificationHandler serves the inbox of the authenticated subject
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

func recipient(r *http.Request) string {
	return middleware.AuthContextFrom(r.Context()).ActorID()
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	list, err := h.svc.List(r.Context(), recipient(r), unread)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

// MarkAllRead handles PUT /api/notifications
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), recipient(r))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]int64{"updated": n})
}

// MarkRead handles PUT /api/notifications/{id}
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), recipient(r), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "notification marked read")
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), recipient(r), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "notification deleted")
}

// AuditHandler lists co-manager actions taken on the principal's behalf
type AuditHandler struct {
	audit  *audit.Logger
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditLog *audit.Logger, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{audit: auditLog, logger: logger}
}

// List handles GET /api/audit-logs?limit=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 500)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	entries, err := h.audit.List(r.Context(), principalID(r), limit)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, entries)
}
