package handler

import (
	"net/http"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/security/middleware"
)

// ContextView is the resolved authorization context as the dashboard sees it
type ContextView struct {
	Kind               string             `json:"kind"`
	Subject            string             `json:"subject"`
	Email              string             `json:"email"`
	IsCoGestionnaire   bool               `json:"isCoGestionnaire"`
	IsAdmin            bool               `json:"isAdmin"`
	ProprietaireID     string             `json:"proprietaireId"`
	Permissions        domain.Permissions `json:"permissions"`
	CoGestionnaireInfo *domain.CoManager  `json:"coGestionnaireInfo,omitempty"`
	DataFilter         domain.DataFilter  `json:"dataFilter"`
}

// MeContext handles GET /api/me/context
func MeContext(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthContextFrom(r.Context())
	perms := ac.Permissions
	if perms == nil {
		perms = domain.Permissions{}
	}
	response.Data(w, http.StatusOK, ContextView{
		Kind:               ac.Kind(),
		Subject:            ac.Identity.Subject,
		Email:              ac.Identity.Email,
		IsCoGestionnaire:   ac.IsCoGestionnaire,
		IsAdmin:            ac.IsAdmin,
		ProprietaireID:     ac.ProprietaireID,
		Permissions:        perms,
		CoGestionnaireInfo: ac.CoGestionnaireInfo,
		DataFilter:         ac.DataFilter(),
	})
}
