// Package models defines the data structures used throughout Purlock.
package models

import (
	"time"

	"github.com/google/uuid"
)

// BindingMode determines what kind of identifier a license binds to.
type BindingMode string

const (
	// BindingModeDevice ties a license to a device fingerprint.
	BindingModeDevice BindingMode = "device"
	// BindingModeNetwork ties a license to a server's network address.
	BindingModeNetwork BindingMode = "network"
)

// IsValid checks if the binding mode is a recognized value.
func (m BindingMode) IsValid() bool {
	return m == BindingModeDevice || m == BindingModeNetwork
}

// License represents a marketplace purchase bound to a single runtime environment.
// The purchase code is its natural identity and never changes once set.
type License struct {
	ID           uuid.UUID   `json:"id"`
	PurchaseCode string      `json:"purchase_code"`
	ItemID       string      `json:"item_id"`
	Mode         BindingMode `json:"mode"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
