package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseReset is an append-only audit record of a self-service unbind.
// Rows are never mutated or deleted.
type LicenseReset struct {
	ID        uuid.UUID `json:"id"`
	LicenseID uuid.UUID `json:"license_id"`
	UserID    uuid.UUID `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
