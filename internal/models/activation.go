package models

import (
	"time"

	"github.com/google/uuid"
)

// Activation records a license's current exclusive binding. Exactly one of
// DeviceID or NetworkAddress is populated, determined by the owning license's
// binding mode. At most one activation per license is active at any time;
// the activations table enforces this with a partial unique index.
type Activation struct {
	ID             uuid.UUID `json:"id"`
	LicenseID      uuid.UUID `json:"license_id"`
	DeviceID       string    `json:"device_id,omitempty"`
	NetworkAddress string    `json:"network_address,omitempty"`
	Active         bool      `json:"active"`
	ActivatedAt    time.Time `json:"activated_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BoundIdentifier returns whichever identifier the activation is bound to.
func (a *Activation) BoundIdentifier() string {
	if a.DeviceID != "" {
		return a.DeviceID
	}
	return a.NetworkAddress
}
