package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/pkg/cache"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]Pinger
	cache  *cache.Cache[ReadinessResponse]
	ttl    time.Duration
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. checks maps a dependency name
// to its ping; a nil map means the service has no external dependencies.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checks: checks,
		cache:  cache.New[ReadinessResponse](),
		ttl:    2 * time.Second,
		logger: logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - liveness only
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. Results are reused for a short TTL so probe
// storms do not reach the database.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	report, ok := h.cache.Get("readyz")
	if !ok {
		report = h.probe(r.Context())
		h.cache.Set("readyz", report, h.ttl)
	}

	status := http.StatusOK
	if report.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, report)
}

func (h *HealthHandler) probe(ctx context.Context) ReadinessResponse {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			report.Checks[name] = "error: " + err.Error()
			report.Status = "not_ready"
			continue
		}
		report.Checks[name] = "ok"
	}

	if report.Status != "ready" {
		h.logger.Warn("readiness check failed", slog.Any("checks", report.Checks))
	}
	return report
}
