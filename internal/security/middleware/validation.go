package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/laala/laala-api/internal/handler/response"
)

// MaxBodyBytes caps request bodies accepted by the API.
const MaxBodyBytes = 1 << 20

// ValidateJSONContentType ensures POST/PUT/PATCH requests with a body are JSON
// and caps the body size.
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", "")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}
