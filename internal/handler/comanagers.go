package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/service"
)

// CoManagerHandler serves /api/co-gestionnaires
type CoManagerHandler struct {
	svc    *service.CoManagerService
	logger *slog.Logger
}

// NewCoManagerHandler creates a new co-manager handler
func NewCoManagerHandler(svc *service.CoManagerService, logger *slog.Logger) *CoManagerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoManagerHandler{svc: svc, logger: logger}
}

func (h *CoManagerHandler) owner(r *http.Request) string {
	return middleware.AuthContextFrom(r.Context()).ProprietaireID
}

// List handles GET /api/co-gestionnaires
func (h *CoManagerHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), h.owner(r))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, list)
}

// Create handles POST /api/co-gestionnaires
func (h *CoManagerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCoManagerInput
	if err := decodeJSON(r, &in); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	cm, err := h.svc.Create(r.Context(), h.owner(r), in)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusCreated, cm)
}

// Get handles GET /api/co-gestionnaires/{id}
func (h *CoManagerHandler) Get(w http.ResponseWriter, r *http.Request) {
	cm, err := h.svc.Get(r.Context(), h.owner(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, cm)
}

// Update handles PUT /api/co-gestionnaires/{id}
func (h *CoManagerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateCoManagerInput
	if err := decodeJSON(r, &in); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	cm, err := h.svc.Update(r.Context(), h.owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, cm)
}

// Delete handles DELETE /api/co-gestionnaires/{id}
func (h *CoManagerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.owner(r), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "co-gestionnaire deleted")
}

// ChangeOwnPassword handles PUT /api/co-gestionnaires/me/password
func (h *CoManagerHandler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), ac.ActorID(), req.CurrentPassword, req.NewPassword); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "password changed")
}
