// Package auth hashes and checks the shared secret presented by webhook callers.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashSecret returns a bcrypt hash suitable for WEBHOOK_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	return hashSecretWithCost(secret, DefaultBcryptCost)
}

func hashSecretWithCost(secret string, cost int) (string, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return "", fmt.Errorf("secret is required")
	}
	if len(trimmed) > 72 {
		return "", fmt.Errorf("secret must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func VerifySecret(secret, hash string) bool {
	trimmedSecret := strings.TrimSpace(secret)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedSecret == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedSecret)) == nil
}

// ValidHash reports whether hash is a well-formed bcrypt hash.
func ValidHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(strings.TrimSpace(hash)))
	return err == nil
}
