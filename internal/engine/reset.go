package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

// Resetter revokes a license's bindings after the marketplace confirms, via
// the acting user's delegated token, that the purchase belongs to them.
type Resetter struct {
	ownership   OwnershipProvider
	licenses    LicenseStore
	activations ActivationStore
	resets      ResetLog
	clock       clock.Clock
	logger      zerolog.Logger
}

// NewResetter creates a Resetter.
func NewResetter(
	ownership OwnershipProvider,
	licenses LicenseStore,
	activations ActivationStore,
	resets ResetLog,
	clk clock.Clock,
	logger zerolog.Logger,
) *Resetter {
	return &Resetter{
		ownership:   ownership,
		licenses:    licenses,
		activations: activations,
		resets:      resets,
		clock:       clk,
		logger:      logger.With().Str("component", "resetter").Logger(),
	}
}

// Reset deactivates every active activation on the license identified by
// purchaseCode and appends one audit record. The caller must have completed
// the OAuth flow first: an acting user without a delegated access token is a
// programming-contract violation, not a user-facing outcome.
func (r *Resetter) Reset(ctx context.Context, purchaseCode string, actingUser *models.OAuthUser, reason string) error {
	lic, err := r.licenses.FindByPurchaseCode(ctx, purchaseCode)
	if err != nil {
		return fmt.Errorf("find license: %w", err)
	}
	if lic == nil {
		return E(KindLicenseNotFound, "no license exists for this purchase code")
	}

	if !actingUser.HasDelegatedToken() {
		return fmt.Errorf("reset called without a delegated access token for user")
	}

	pv, err := r.ownership.VerifyPurchaseOwnership(ctx, actingUser.AccessToken, purchaseCode)
	if err != nil {
		return Wrap(KindPurchaseVerificationFailed, err, "purchase ownership could not be verified")
	}
	if pv == nil || pv.ItemID == "" {
		return E(KindPurchaseVerificationFailed, "marketplace returned no item for this purchase code")
	}

	// Owning some verifiable purchase is not enough; the code must belong to
	// the item this license was issued for.
	if pv.ItemID != lic.ItemID {
		r.logger.Warn().
			Str("license_id", lic.ID.String()).
			Str("license_item", lic.ItemID).
			Str("verified_item", pv.ItemID).
			Msg("ownership item mismatch on reset")
		return E(KindPurchaseVerificationFailed, "purchase code does not belong to this license's item")
	}

	active, err := r.activations.ListActiveByLicense(ctx, lic.ID)
	if err != nil {
		return fmt.Errorf("list active activations: %w", err)
	}

	// Creation logic guarantees at most one active row, but a reset must
	// tolerate and repair more: deactivate whatever is found.
	if len(active) > 1 {
		r.logger.Warn().
			Str("license_id", lic.ID.String()).
			Int("active_count", len(active)).
			Msg("multiple active activations found, repairing")
	}

	now := r.clock.Now()
	for _, act := range active {
		if err := r.activations.Deactivate(ctx, act.ID, now); err != nil {
			return fmt.Errorf("deactivate activation %s: %w", act.ID, err)
		}
	}

	reset := &models.LicenseReset{
		ID:        uuid.New(),
		LicenseID: lic.ID,
		UserID:    actingUser.ID,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := r.resets.Append(ctx, reset); err != nil {
		return fmt.Errorf("append reset record: %w", err)
	}

	r.logger.Info().
		Str("license_id", lic.ID.String()).
		Str("user_id", actingUser.ID.String()).
		Int("deactivated", len(active)).
		Msg("license reset")
	return nil
}
