package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MinSecretBytes is the shortest HMAC secret accepted for JWT signing
const MinSecretBytes = 32

// GenerateSecret generates a cryptographically secure random hex secret
func GenerateSecret(bytes int) (string, error) {
	if bytes <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", bytes)
	}
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecret generates the HMAC secret used to sign access tokens.
// Lengths below MinSecretBytes are raised to it.
func GenerateJWTSecret(bytes int) (string, error) {
	if bytes < MinSecretBytes {
		bytes = MinSecretBytes
	}
	secret, err := GenerateSecret(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return secret, nil
}
