package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/models"
)

type memLicenseStore struct {
	byCode    map[string]*models.License
	upserts   int
	findErr   error
	upsertErr error
}

func newMemLicenseStore() *memLicenseStore {
	return &memLicenseStore{byCode: make(map[string]*models.License)}
}

func (s *memLicenseStore) FindByPurchaseCode(_ context.Context, code string) (*models.License, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	lic, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *lic
	return &cp, nil
}

func (s *memLicenseStore) Upsert(_ context.Context, lic *models.License) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	if existing, ok := s.byCode[lic.PurchaseCode]; ok {
		existing.ItemID = lic.ItemID
		existing.Mode = lic.Mode
		existing.UpdatedAt = lic.UpdatedAt
		lic.ID = existing.ID
		return nil
	}
	cp := *lic
	s.byCode[lic.PurchaseCode] = &cp
	return nil
}

// memActivationStore mimics the storage constraint: creating an active
// activation while another is active for the same license fails with
// ErrActiveActivationExists.
type memActivationStore struct {
	acts      []*models.Activation
	createErr error
	listErr   error
}

func (s *memActivationStore) FindActiveByLicense(_ context.Context, licenseID uuid.UUID) (*models.Activation, error) {
	for _, a := range s.acts {
		if a.LicenseID == licenseID && a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memActivationStore) ListActiveByLicense(_ context.Context, licenseID uuid.UUID) ([]*models.Activation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Activation
	for _, a := range s.acts {
		if a.LicenseID == licenseID && a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memActivationStore) Create(_ context.Context, act *models.Activation) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, a := range s.acts {
		if a.LicenseID == act.LicenseID && a.Active {
			return ErrActiveActivationExists
		}
	}
	cp := *act
	s.acts = append(s.acts, &cp)
	return nil
}

func (s *memActivationStore) Deactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, a := range s.acts {
		if a.ID == id {
			a.Active = false
			a.UpdatedAt = at
			return nil
		}
	}
	return nil
}

func (s *memActivationStore) activeCount(licenseID uuid.UUID) int {
	n := 0
	for _, a := range s.acts {
		if a.LicenseID == licenseID && a.Active {
			n++
		}
	}
	return n
}

type memResetLog struct {
	resets    []*models.LicenseReset
	appendErr error
}

func (s *memResetLog) Append(_ context.Context, reset *models.LicenseReset) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	cp := *reset
	s.resets = append(s.resets, &cp)
	return nil
}

type stubAuthenticity struct {
	pv    *PurchaseVerification
	err   error
	calls int
}

func (s *stubAuthenticity) VerifyPurchaseAuthenticity(_ context.Context, _ string) (*PurchaseVerification, error) {
	s.calls++
	return s.pv, s.err
}

type stubOwnership struct {
	pv        *PurchaseVerification
	err       error
	lastToken string
}

func (s *stubOwnership) VerifyPurchaseOwnership(_ context.Context, token, _ string) (*PurchaseVerification, error) {
	s.lastToken = token
	return s.pv, s.err
}
