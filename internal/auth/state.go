package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateState generates a cryptographically secure random state parameter
// for the OAuth flow.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
