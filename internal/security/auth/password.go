package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TemporaryPasswordLength is the length of generated temporary passwords.
const TemporaryPasswordLength = 12

// no 0/O/1/l/I
const tempAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateTemporaryPassword returns a random password of TemporaryPasswordLength.
func GenerateTemporaryPassword() (string, error) {
	out := make([]byte, TemporaryPasswordLength)
	max := big.NewInt(int64(len(tempAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate temporary password: %w", err)
		}
		out[i] = tempAlphabet[n.Int64()]
	}
	return string(out), nil
}
