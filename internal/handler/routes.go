package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/featureflags"
	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/observability/metrics"
	"github.com/laala/laala-api/internal/security"
	"github.com/laala/laala-api/internal/security/audit"
	"github.com/laala/laala-api/internal/security/middleware"
	"github.com/laala/laala-api/internal/security/ratelimit"
	"github.com/laala/laala-api/internal/service"
	"github.com/laala/laala-api/pkg/config"
)

// Services groups what the router serves.
type Services struct {
	Auth          *service.AuthService
	Requests      *service.AccountRequestService
	CoManagers    *service.CoManagerService
	Documents     *service.DocumentService
	Profiles      *service.ProfileService
	Notifications *service.NotificationService
}

// RouterConfig holds the cross-cutting pieces of the HTTP stack.
type RouterConfig struct {
	Gate          *security.Gate
	Audit         *audit.Logger
	Flags         *featureflags.Set
	PublicLimiter ratelimit.Counter
	ActorLimiter  *ratelimit.ActorLimiter
	CORSOrigins   []string
	Health        *HealthHandler
}

// documentFeature maps a resource to the feature flag guarding it.
var documentFeature = map[domain.Resource]string{
	domain.ResourceCampaigns: config.FeatureCampaigns,
}

// NewRouter builds the API router.
func NewRouter(rc RouterConfig, svc Services, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	authH := NewAuthHandler(svc.Auth, svc.Requests, log)
	requestsH := NewAccountRequestHandler(svc.Requests, log)
	coManagersH := NewCoManagerHandler(svc.CoManagers, log)
	profileH := NewProfileHandler(svc.Profiles, svc.Documents, log)
	notificationsH := NewNotificationHandler(svc.Notifications, log)
	auditH := NewAuditHandler(rc.Audit, log)
	health := rc.Health
	if health == nil {
		health = NewHealthHandler(nil, log)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rc.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", health.Health)
	r.Get("/readyz", health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ValidateJSONContentType(log))

		// public
		r.Group(func(r chi.Router) {
			if rc.PublicLimiter != nil {
				r.Use(ratelimit.Public(rc.PublicLimiter, log))
			}
			r.Post("/auth/login", authH.Login)
			r.With(rc.Flags.Require(config.FeatureAccountRequests)).Post("/auth/login-temporary", authH.LoginTemporary)
			r.With(rc.Flags.Require(config.FeatureAccountRequests)).Post("/auth/request-account", authH.RequestAccount)
		})

		// authenticated
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rc.Gate, log))
			if rc.ActorLimiter != nil {
				r.Use(ratelimit.PerActor(rc.ActorLimiter, func(r *http.Request) string {
					if ac := middleware.AuthContextFrom(r.Context()); ac != nil {
						return ac.ActorID()
					}
					return ""
				}))
			}
			r.Use(profileH.Provision)

			r.Get("/me/context", MeContext)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationsH.List)
				r.Put("/", notificationsH.MarkAllRead)
				r.Put("/{id}", notificationsH.MarkRead)
				r.Delete("/{id}", notificationsH.Delete)
			})

			r.Route("/co-gestionnaires", func(r chi.Router) {
				r.With(middleware.Require(security.RequireCoManager, log)).Put("/me/password", coManagersH.ChangeOwnPassword)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Require(security.RequirePrincipal, log))
					r.Get("/", coManagersH.List)
					r.Post("/", coManagersH.Create)
					r.Get("/{id}", coManagersH.Get)
					r.Put("/{id}", coManagersH.Update)
					r.Delete("/{id}", coManagersH.Delete)
				})
			})

			// principal only
			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(security.RequirePrincipal, log))
				r.Post("/auth/change-password", authH.ChangePassword)

				r.Get("/profile", profileH.Get)
				r.Put("/profile", profileH.Update)

				r.Route("/retraits", func(r chi.Router) {
					r.Use(rc.Flags.Require(config.FeatureRetraits))
					r.Get("/", profileH.ListWithdrawals)
					r.Post("/", profileH.RequestWithdrawal)
					r.Get("/{id}", profileH.GetWithdrawal)
				})

				r.Get("/audit-logs", auditH.List)
			})

			// admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(security.RequireAdmin, log))
				r.Use(rc.Flags.Require(config.FeatureAccountRequests))
				r.Get("/account-requests", requestsH.List)
				r.Get("/account-requests/{id}", requestsH.Get)
				r.Put("/admin/account-requests", requestsH.Process)
			})

			// owned resources, gated per (resource, action)
			for _, res := range domain.Resources() {
				mountDocuments(r, rc, NewDocumentHandler(svc.Documents, res, log), res, log)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "route not found", r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}

func mountDocuments(r chi.Router, rc RouterConfig, h *DocumentHandler, res domain.Resource, log *slog.Logger) {
	can := func(action domain.Action) func(http.Handler) http.Handler {
		return middleware.Authorize(rc.Gate, res, action, rc.Audit, log)
	}
	r.Route("/"+string(res), func(r chi.Router) {
		if feature, ok := documentFeature[res]; ok {
			r.Use(rc.Flags.Require(feature))
		}
		r.With(can(domain.ActionRead)).Get("/", h.List)
		r.With(can(domain.ActionCreate)).Post("/", h.Create)
		r.With(can(domain.ActionRead)).Get("/{id}", h.Get)
		r.With(can(domain.ActionUpdate)).Put("/{id}", h.Update)
		r.With(can(domain.ActionDelete)).Delete("/{id}", h.Delete)
	})
}
