package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/catalog"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

// VerifyRequest carries an inbound activation attempt. Exactly one of
// DeviceID or NetworkAddress is consulted, chosen by the item's binding mode.
type VerifyRequest struct {
	PurchaseCode   string
	ItemID         string
	DeviceID       string
	NetworkAddress string
}

// Verifier orchestrates an activation: policy resolution, marketplace
// authenticity check, license find-or-create with drift reconciliation,
// and the binding state machine. Every step is a hard gate; the first
// failure short-circuits with nothing written.
type Verifier struct {
	policy       ItemPolicyResolver
	authenticity AuthenticityProvider
	licenses     LicenseStore
	binder       *Binder
	clock        clock.Clock
	logger       zerolog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(
	policy ItemPolicyResolver,
	authenticity AuthenticityProvider,
	licenses LicenseStore,
	binder *Binder,
	clk clock.Clock,
	logger zerolog.Logger,
) *Verifier {
	return &Verifier{
		policy:       policy,
		authenticity: authenticity,
		licenses:     licenses,
		binder:       binder,
		clock:        clk,
		logger:       logger.With().Str("component", "verifier").Logger(),
	}
}

// Verify runs the activation pipeline for a purchase code. On success the
// license is bound (or confirmed bound) to the supplied identifier; on
// failure the returned error carries a stable Kind and no state has been
// written past the failing gate.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) error {
	mode, err := v.policy.Resolve(req.ItemID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownItem) {
			return Wrap(KindInvalidItemID, err, "item %s is not configured", req.ItemID)
		}
		return fmt.Errorf("resolve item policy: %w", err)
	}

	// The identifier requirement depends only on the mode, so it is checked
	// before the remote call and before any write.
	if _, err := selectIdentifier(mode, req.DeviceID, req.NetworkAddress); err != nil {
		return err
	}

	pv, err := v.authenticity.VerifyPurchaseAuthenticity(ctx, req.PurchaseCode)
	if err != nil {
		return Wrap(KindPurchaseVerificationFailed, err, "purchase code could not be verified")
	}
	if pv == nil || pv.ItemID == "" {
		return E(KindPurchaseVerificationFailed, "marketplace returned no item for this purchase code")
	}

	// A code verifying for a different item than the caller claims is
	// indistinguishable from a failed remote check.
	if pv.ItemID != req.ItemID {
		v.logger.Warn().
			Str("claimed_item", req.ItemID).
			Str("verified_item", pv.ItemID).
			Msg("item id mismatch on verification")
		return E(KindPurchaseVerificationFailed, "purchase code does not belong to item %s", req.ItemID)
	}

	lic, err := v.licenses.FindByPurchaseCode(ctx, req.PurchaseCode)
	if err != nil {
		return fmt.Errorf("find license: %w", err)
	}

	now := v.clock.Now()
	switch {
	case lic == nil:
		lic = &models.License{
			ID:           uuid.New(),
			PurchaseCode: req.PurchaseCode,
			ItemID:       pv.ItemID,
			Mode:         mode,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := v.licenses.Upsert(ctx, lic); err != nil {
			return fmt.Errorf("create license: %w", err)
		}
		v.logger.Info().
			Str("license_id", lic.ID.String()).
			Str("item_id", lic.ItemID).
			Msg("license created")

	case !lic.Active:
		// Administrative deactivation takes precedence over any binding
		// outcome, including drift reconciliation.
		return E(KindLicenseInactive, "license is inactive")

	case lic.ItemID != pv.ItemID || lic.Mode != mode:
		// The upstream catalog changed since the license was created.
		lic.ItemID = pv.ItemID
		lic.Mode = mode
		lic.UpdatedAt = now
		if err := v.licenses.Upsert(ctx, lic); err != nil {
			return fmt.Errorf("reconcile license: %w", err)
		}
		v.logger.Info().
			Str("license_id", lic.ID.String()).
			Str("item_id", lic.ItemID).
			Str("mode", string(lic.Mode)).
			Msg("license reconciled with catalog")
	}

	return v.binder.Bind(ctx, lic, req.DeviceID, req.NetworkAddress)
}
