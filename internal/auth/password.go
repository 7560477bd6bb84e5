package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/apperr"
)

const (
	MinSecretLength = 1
	// MaxSecretLength is bcrypt's input limit in bytes.
	MaxSecretLength = 72
)

var (
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")
	ErrSecretRequired     = apperr.New(apperr.Validation, "secret is required")
	ErrSecretTooLong      = apperr.New(apperr.Validation, "secret exceeds maximum length of 72 bytes")
)

// HashSecret creates a bcrypt hash of a member secret.
func HashSecret(secret string, cost int) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrSecretRequired
	}
	if len(secret) > MaxSecretLength {
		return "", ErrSecretTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret compares a secret with its hash in constant time.
func CheckSecret(secret, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
