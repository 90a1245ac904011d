package models

import (
	"time"

	"github.com/google/uuid"
)

// OAuthUser is a marketplace account that authenticated through the OAuth
// flow. The delegated access token proves purchase ownership during a reset.
type OAuthUser struct {
	ID             uuid.UUID  `json:"id"`
	ExternalID     string     `json:"external_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasDelegatedToken reports whether the user holds a usable access token.
func (u *OAuthUser) HasDelegatedToken() bool {
	return u != nil && u.AccessToken != ""
}
