// Package engine implements the license activation and reset core: the
// binding state machine, the verification pipeline, and the reset workflow.
// It is request-scoped and stateless; all durable state lives behind the
// repository interfaces below.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/models"
)

// ErrActiveActivationExists is returned by ActivationStore.Create when
// another activation for the same license is already active. The store is
// expected to detect this atomically (a partial unique constraint on
// (license_id) WHERE active) so two racing first-activations cannot both
// succeed.
var ErrActiveActivationExists = errors.New("an active activation already exists for this license")

// LicenseStore persists licenses keyed by purchase code.
type LicenseStore interface {
	// FindByPurchaseCode returns (nil, nil) when no license exists.
	FindByPurchaseCode(ctx context.Context, purchaseCode string) (*models.License, error)
	// Upsert inserts the license or, when the purchase code already exists,
	// reconciles item id, mode, and update time in place. On conflict the
	// surviving row's id is written back into lic.
	Upsert(ctx context.Context, lic *models.License) error
}

// ActivationStore persists license activations.
type ActivationStore interface {
	// FindActiveByLicense returns (nil, nil) when no activation is active.
	FindActiveByLicense(ctx context.Context, licenseID uuid.UUID) (*models.Activation, error)
	// ListActiveByLicense returns every active activation for the license.
	ListActiveByLicense(ctx context.Context, licenseID uuid.UUID) ([]*models.Activation, error)
	// Create inserts a new active activation. It returns
	// ErrActiveActivationExists when the one-active-per-license constraint
	// is violated.
	Create(ctx context.Context, act *models.Activation) error
	// Deactivate clears the active flag on an activation.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ResetLog appends license reset audit records.
type ResetLog interface {
	Append(ctx context.Context, reset *models.LicenseReset) error
}

// PurchaseVerification is the normalized result of a marketplace lookup.
type PurchaseVerification struct {
	// ItemID the purchase code was issued for.
	ItemID string
	// Raw is the provider's response body, kept for diagnostics.
	Raw json.RawMessage
}

// AuthenticityProvider verifies a purchase code with the seller credential.
type AuthenticityProvider interface {
	VerifyPurchaseAuthenticity(ctx context.Context, purchaseCode string) (*PurchaseVerification, error)
}

// OwnershipProvider proves, via a buyer's delegated token, that a purchase
// code belongs to the token holder.
type OwnershipProvider interface {
	VerifyPurchaseOwnership(ctx context.Context, userToken, purchaseCode string) (*PurchaseVerification, error)
}

// ItemPolicyResolver maps an item id to its configured binding mode.
type ItemPolicyResolver interface {
	Resolve(itemID string) (models.BindingMode, error)
}
