package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims issued at login.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. The secret must be non-empty.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if issuer == "" {
		issuer = "laala"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration { return tm.ttl }

// GenerateToken signs a session token for id.
func (tm *TokenManager) GenerateToken(id Identity) (string, error) {
	if id.Subject == "" || id.Email == "" {
		return "", fmt.Errorf("subject and email required")
	}
	now := tm.now()
	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		Kind:  id.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify implements Verifier for tokens issued by GenerateToken.
func (tm *TokenManager) Verify(_ context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Role:    claims.Role,
		Kind:    claims.Kind,
	}, nil
}
