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

// ProfileHandler serves the principal-only profile and withdrawal endpoints
type ProfileHandler struct {
	profiles  *service.ProfileService
	documents *service.DocumentService
	logger    *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *service.ProfileService, documents *service.DocumentService, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{profiles: profiles, documents: documents, logger: logger}
}

func principalID(r *http.Request) string {
	return middleware.AuthContextFrom(r.Context()).ProprietaireID
}

// Provision makes sure an authenticated principal has a users row before
// anything keyed on it runs. Co-manager requests pass through untouched.
func (h *ProfileHandler) Provision(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := middleware.AuthContextFrom(r.Context())
		if ac != nil && !ac.IsCoGestionnaire {
			_, err := h.profiles.Ensure(r.Context(), ac.Identity)
			switch {
			case err == nil, domain.IsNotFound(err):
			case domain.IsConflict(err):
				h.logger.Warn("principal email already taken by another account",
					slog.String("subject", ac.Identity.Subject),
					slog.String("email", ac.Identity.Email),
				)
			default:
				response.FromError(w, r, h.logger, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.profiles.Ensure(r.Context(), middleware.AuthContextFrom(r.Context()).Identity)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

// Update handles PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	u, err := h.profiles.Update(r.Context(), principalID(r), in)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

// ListWithdrawals handles GET /api/retraits
func (h *ProfileHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.ListWithdrawals(r.Context(), principalID(r))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, docs)
}

// GetWithdrawal handles GET /api/retraits/{id}
func (h *ProfileHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.GetWithdrawal(r.Context(), principalID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, doc)
}

// RequestWithdrawal handles POST /api/retraits
func (h *ProfileHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var data map[string]interface{}
	if err := decodeJSON(r, &data); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	doc, err := h.documents.RequestWithdrawal(r.Context(), principalID(r), data)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusCreated, doc)
}
