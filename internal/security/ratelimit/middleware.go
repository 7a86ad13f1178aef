package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/laala/laala-api/internal/handler/response"
	"github.com/laala/laala-api/internal/observability/metrics"
)

// Public throttles unauthenticated endpoints per client address and route.
// A failing counter lets the request through.
func Public(counter Counter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Path + ":" + clientIP(r)
			ok, err := counter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.ObserveRateLimited("public")
				w.Header().Set("Retry-After", "60")
				response.Error(w, http.StatusTooManyRequests, "rate limit exceeded", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ActorLimiter keeps one token bucket per authenticated actor.
type ActorLimiter struct {
	mu       sync.Mutex
	limiters map[string]*actorEntry
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

type actorEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewActorLimiter allows rps sustained requests with bursts of burst.
func NewActorLimiter(rps float64, burst int) *ActorLimiter {
	return &ActorLimiter{
		limiters: make(map[string]*actorEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow consumes one token for actor.
func (a *ActorLimiter) Allow(actor string) bool {
	a.mu.Lock()
	e, ok := a.limiters[actor]
	if !ok {
		e = &actorEntry{limiter: rate.NewLimiter(a.rps, a.burst)}
		a.limiters[actor] = e
	}
	now := a.now()
	e.lastSeen = now
	a.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Sweep forgets actors idle for longer than idle.
func (a *ActorLimiter) Sweep(idle time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-idle)
	for k, e := range a.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(a.limiters, k)
		}
	}
}

// PerActor throttles requests keyed by actor(r). An empty key is not limited.
func PerActor(limiter *ActorLimiter, actor func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := actor(r)
			if key != "" && !limiter.Allow(key) {
				metrics.ObserveRateLimited("actor")
				w.Header().Set("Retry-After", "1")
				response.Error(w, http.StatusTooManyRequests, "rate limit exceeded", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
