package engine

import (
	"context"
	"testing"

	"github.com/purlock/purlock/internal/clock"
	"github.com/rs/zerolog"
)

// TestActivationLifecycle walks the full product flow: activate on one
// machine, get rejected from a second, reset through ownership proof, then
// activate on the second machine.
func TestActivationLifecycle(t *testing.T) {
	ctx := context.Background()
	licenses := newMemLicenseStore()
	activations := &memActivationStore{}
	resets := &memResetLog{}
	authenticity := &stubAuthenticity{pv: &PurchaseVerification{ItemID: "100"}}
	ownership := &stubOwnership{pv: &PurchaseVerification{ItemID: "100"}}
	clk := clock.Fixed{T: testTime}

	binder := NewBinder(activations, clk, zerolog.Nop())
	verifier := NewVerifier(testCatalog(t), authenticity, licenses, binder, clk, zerolog.Nop())
	resetter := NewResetter(ownership, licenses, activations, resets, clk, zerolog.Nop())

	// First machine claims the code.
	if err := verifier.Verify(ctx, VerifyRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M1"}); err != nil {
		t.Fatalf("activation on M1 failed: %v", err)
	}

	// Second machine is rejected.
	err := verifier.Verify(ctx, VerifyRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M2"})
	if !IsKind(err, KindAlreadyActivatedElsewhere) {
		t.Fatalf("expected M2 rejected, got %v", err)
	}

	// The owner resets through the authenticated flow.
	if err := resetter.Reset(ctx, "ABC-1", actingUser(), "moving machines"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	// Second machine now succeeds with a fresh activation.
	if err := verifier.Verify(ctx, VerifyRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M2"}); err != nil {
		t.Fatalf("activation on M2 after reset failed: %v", err)
	}

	licID := licenses.byCode["ABC-1"].ID
	if got := activations.activeCount(licID); got != 1 {
		t.Fatalf("invariant violated: %d active activations", got)
	}
	var boundTo string
	for _, a := range activations.acts {
		if a.Active {
			boundTo = a.DeviceID
		}
	}
	if boundTo != "M2" {
		t.Fatalf("expected active binding on M2, got %q", boundTo)
	}
	if len(resets.resets) != 1 {
		t.Fatalf("expected 1 reset record, got %d", len(resets.resets))
	}
}
