package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/laala/laala-api/internal/domain"
)

// decodeJSON reads the request body into v. Malformed bodies are validation
// errors.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.ErrValidation("request body is required")
		case errors.As(err, &tooLarge):
			return domain.ErrValidation("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return domain.ErrValidation("invalid JSON body: %s", err.Error())
		}
	}
	return nil
}

func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.ErrValidation("%s must be a positive integer", name)
	}
	if n > max {
		n = max
	}
	return n, nil
}
