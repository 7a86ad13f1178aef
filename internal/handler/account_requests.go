package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/service"
)

// AccountRequestView is the admin view of a request. The temporary
// password hash never leaves the server; only its presence is shown.
type AccountRequestView struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Status               string     `json:"status"`
	AdminComment         string     `json:"adminComment,omitempty"`
	IsFirstLogin         bool       `json:"isFirstLogin"`
	HasTemporaryPassword bool       `json:"hasTemporaryPassword"`
	RequestedAt          time.Time  `json:"requestedAt"`
	ProcessedAt          *time.Time `json:"processedAt,omitempty"`
	ProcessedBy          string     `json:"processedBy,omitempty"`
	UserID               string     `json:"userId,omitempty"`
}

func newAccountRequestView(req *domain.AccountRequest) AccountRequestView {
	return AccountRequestView{
		ID:                   req.ID,
		Email:                req.Email,
		Status:               string(req.Status),
		AdminComment:         req.AdminComment,
		IsFirstLogin:         req.IsFirstLogin,
		HasTemporaryPassword: req.HasTemporaryPassword(),
		RequestedAt:          req.RequestedAt,
		ProcessedAt:          req.ProcessedAt,
		ProcessedBy:          req.ProcessedBy,
		UserID:               req.UserID,
	}
}

// AccountRequestHandler serves the admin account request endpoints
type AccountRequestHandler struct {
	svc    *service.AccountRequestService
	logger *slog.Logger
}

// NewAccountRequestHandler creates a new account request handler
func NewAccountRequestHandler(svc *service.AccountRequestService, logger *slog.Logger) *AccountRequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRequestHandler{svc: svc, logger: logger}
}

// List handles GET /api/account-requests?status=
func (h *AccountRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	views := make([]AccountRequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, newAccountRequestView(req))
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "requests": views})
}

// Get handles GET /api/account-requests/{id}
func (h *AccountRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, newAccountRequestView(req))
}

// ProcessResponse is returned after an admin decision
type ProcessResponse struct {
	Request           AccountRequestView `json:"request"`
	TemporaryPassword string             `json:"temporaryPassword,omitempty"`
}

// Process handles PUT /api/admin/account-requests
func (h *AccountRequestHandler) Process(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	var in service.ProcessInput
	if err := decodeJSON(r, &in); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.Process(r.Context(), ac.Identity.Subject, in)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, ProcessResponse{
		Request:           newAccountRequestView(result.Request),
		TemporaryPassword: result.TemporaryPassword,
	})
}
