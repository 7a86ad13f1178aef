// Package auth verifies bearer credentials and issues session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Identity kinds carried in session tokens.
const (
	KindPrincipal = "principal"
	KindCoManager = "co_manager"
)

// Identity is a verified caller. Subject is the stable uid; Email is the
// lookup key for co-manager records.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    string
	Kind    string
}

// Verifier checks a bearer token and returns the identity it proves.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ErrMissingToken is returned by ExtractToken when no bearer token is present.
var ErrMissingToken = errors.New("missing token")

// ExtractToken returns the token from an "Authorization: Bearer <token>" header
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// ChainVerifier accepts a token when any of its verifiers does.
type ChainVerifier []Verifier

// Verify tries each verifier in order and returns the first identity.
func (c ChainVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("no verifier configured")
	}
	var errs []error
	for _, v := range c {
		id, err := v.Verify(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
