package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/service"
)

// DocumentHandler serves one owned resource. Permission checks happen in
// middleware; every store access uses the caller's data filter.
type DocumentHandler struct {
	svc      *service.DocumentService
	resource domain.Resource
	logger   *slog.Logger
}

// NewDocumentHandler creates a handler for resource
func NewDocumentHandler(svc *service.DocumentService, resource domain.Resource, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{svc: svc, resource: resource, logger: logger.With(slog.String("resource", string(resource)))}
}

// List handles GET /api/{resource}
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	docs, err := h.svc.List(r.Context(), h.resource, ac.DataFilter())
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, docs)
}

// Create handles POST /api/{resource}
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	var data map[string]interface{}
	if err := decodeJSON(r, &data); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	doc, err := h.svc.Create(r.Context(), h.resource, ac.DataFilter(), ac.ActorID(), data)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	middleware.SetAuditResourceID(r.Context(), doc.ID)
	response.Data(w, http.StatusCreated, doc)
}

// Get handles GET /api/{resource}/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	doc, err := h.svc.Get(r.Context(), h.resource, chi.URLParam(r, "id"), ac.DataFilter())
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, doc)
}

// Update handles PUT /api/{resource}/{id}
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	var patch map[string]interface{}
	if err := decodeJSON(r, &patch); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	doc, err := h.svc.Update(r.Context(), h.resource, chi.URLParam(r, "id"), ac.DataFilter(), patch)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/{resource}/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	if err := h.svc.Delete(r.Context(), h.resource, chi.URLParam(r, "id"), ac.DataFilter()); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, string(h.resource)+" deleted")
}
