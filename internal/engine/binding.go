package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

// Binder decides, per license, whether a candidate identifier creates a new
// binding, matches the existing one, or conflicts with it. A binding is
// immutable once made: a different identifier is always rejected until the
// holder goes through the authenticated reset flow. This keeps a leaked
// purchase code plus a spoofed identifier from displacing the legitimate
// holder.
type Binder struct {
	activations ActivationStore
	clock       clock.Clock
	logger      zerolog.Logger
}

// NewBinder creates a Binder.
func NewBinder(activations ActivationStore, clk clock.Clock, logger zerolog.Logger) *Binder {
	return &Binder{
		activations: activations,
		clock:       clk,
		logger:      logger.With().Str("component", "binder").Logger(),
	}
}

// selectIdentifier picks the candidate identifier for the license's binding
// mode and fails if it is absent. This check runs before any state is read
// or written.
func selectIdentifier(mode models.BindingMode, deviceID, networkAddress string) (string, error) {
	switch mode {
	case models.BindingModeDevice:
		if deviceID == "" {
			return "", E(KindMissingDeviceID, "a device id is required for this item")
		}
		return deviceID, nil
	case models.BindingModeNetwork:
		if networkAddress == "" {
			return "", E(KindMissingNetworkAddress, "a network address is required for this item")
		}
		return networkAddress, nil
	default:
		return "", fmt.Errorf("unsupported binding mode %q", mode)
	}
}

// Bind runs the binding state machine for a license against a candidate
// device id / network address pair. Outcomes:
//
//   - no active activation: create one bound to the candidate
//   - active activation bound to the same identifier: success, no change
//   - active activation bound to a different identifier: rejected
func (b *Binder) Bind(ctx context.Context, lic *models.License, deviceID, networkAddress string) error {
	identifier, err := selectIdentifier(lic.Mode, deviceID, networkAddress)
	if err != nil {
		return err
	}

	current, err := b.activations.FindActiveByLicense(ctx, lic.ID)
	if err != nil {
		return fmt.Errorf("find active activation: %w", err)
	}

	if current != nil {
		if current.BoundIdentifier() == identifier {
			// Already bound to this environment; re-verification is success.
			return nil
		}
		return E(KindAlreadyActivatedElsewhere, "license is already activated in another environment")
	}

	now := b.clock.Now()
	act := &models.Activation{
		ID:          uuid.New(),
		LicenseID:   lic.ID,
		Active:      true,
		ActivatedAt: now,
		UpdatedAt:   now,
	}
	if lic.Mode == models.BindingModeDevice {
		act.DeviceID = identifier
	} else {
		act.NetworkAddress = identifier
	}

	if err := b.activations.Create(ctx, act); err != nil {
		if errors.Is(err, ErrActiveActivationExists) {
			// Lost a race against a concurrent first activation. The storage
			// constraint is the authoritative signal; report it as a conflict.
			b.logger.Warn().
				Str("license_id", lic.ID.String()).
				Msg("concurrent activation detected, rejecting")
			return Wrap(KindAlreadyActivatedElsewhere, err, "license is already activated in another environment")
		}
		return fmt.Errorf("create activation: %w", err)
	}

	b.logger.Info().
		Str("license_id", lic.ID.String()).
		Str("mode", string(lic.Mode)).
		Msg("license activated")
	return nil
}
