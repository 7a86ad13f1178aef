package domain

import (
	"net/mail"
	"strings"
	"time"
)

// UserRole distinguishes platform administrators from creators.
type UserRole string

const (
	RoleCreator UserRole = "creator"
	RoleAdmin   UserRole = "admin"
)

// UserStatus tracks whether a principal can log in normally.
type UserStatus string

const (
	UserActive     UserStatus = "active"
	UserFirstLogin UserStatus = "first_login" // approved, temporary password not yet exchanged
	UserDisabled   UserStatus = "disabled"
)

// User is a principal: the platform account owner.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	Phone        string     `json:"phone,omitempty"`
	Country      string     `json:"country,omitempty"`
	City         string     `json:"city,omitempty"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	IsFirstLogin bool       `json:"isFirstLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address is a bare, well-formed email.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrValidation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return ErrValidation("email %q is not a valid address", email)
	}
	return nil
}

// MinPasswordLength applies to every password set through the API.
const MinPasswordLength = 8

// ValidatePassword enforces the minimum password policy on field.
func ValidatePassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return ErrValidation("%s must be at least %d characters", field, MinPasswordLength)
	}
	return nil
}
