package handler

import (
	"log/slog"
	"net/http"

	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/service"
)

// AuthHandler serves the /api/auth endpoints
type AuthHandler struct {
	auth     *service.AuthService
	requests *service.AccountRequestService
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, requests *service.AccountRequestService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, requests: requests, logger: logger}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, result)
}

// TemporaryLoginRequest is the first-login payload
type TemporaryLoginRequest struct {
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporaryPassword"`
	NewPassword       string `json:"newPassword"`
}

// LoginTemporary handles POST /api/auth/login-temporary
func (h *AuthHandler) LoginTemporary(w http.ResponseWriter, r *http.Request) {
	var req TemporaryLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	result, err := h.requests.LoginTemporary(r.Context(), req.Email, req.TemporaryPassword, req.NewPassword)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusOK, result)
}

// ChangePasswordRequest is used by both principals and co-managers
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), ac.Identity.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "password changed")
}

// AccountRequestSubmission is the public account request payload
type AccountRequestSubmission struct {
	Email string `json:"email"`
}

// RequestAccount handles POST /api/auth/request-account
func (h *AuthHandler) RequestAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequestSubmission
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	created, err := h.requests.Submit(r.Context(), req.Email)
	if err != nil {
		response.FromError(w, r, h.logger, err)
		return
	}
	response.Data(w, http.StatusCreated, newAccountRequestView(created))
}
