package featureflags

import (
	"net/http"
	"os"
	"strings"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/handler/response"
)

// Set holds the on/off state of named features. Unknown names are enabled.
type Set struct {
	flags map[string]bool
}

// New builds a Set from configured values. FLAG_<NAME> environment variables
// take precedence so a feature can be switched off without a config change.
func New(configured map[string]bool) *Set {
	flags := make(map[string]bool, len(configured))
	for name, on := range configured {
		flags[name] = on
		if v, ok := os.LookupEnv("FLAG_" + strings.ToUpper(name)); ok {
			flags[name] = parse(v)
		}
	}
	return &Set{flags: flags}
}

func parse(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Enabled reports whether feature is switched on.
func (s *Set) Enabled(feature string) bool {
	if s == nil {
		return true
	}
	on, ok := s.flags[feature]
	return !ok || on
}

// Require answers 410 for every request while feature is off.
func (s *Set) Require(feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled(feature) {
				response.FromError(w, r, nil, &domain.FeatureDisabledError{Feature: feature})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
