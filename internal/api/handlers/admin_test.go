package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

const adminTestToken = "operator-token-1"

type mockAdminStore struct {
	byCode      map[string]*models.License
	activeCount int64
	resets      []*models.LicenseReset
	setActive   []bool
}

func (m *mockAdminStore) FindByPurchaseCode(_ context.Context, code string) (*models.License, error) {
	lic, ok := m.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *lic
	return &cp, nil
}

func (m *mockAdminStore) SetLicenseActive(_ context.Context, code string, active bool) error {
	m.byCode[code].Active = active
	m.setActive = append(m.setActive, active)
	return nil
}

func (m *mockAdminStore) CountActiveByLicense(_ context.Context, _ uuid.UUID) (int64, error) {
	return m.activeCount, nil
}

func (m *mockAdminStore) ListResetsByLicense(_ context.Context, _ uuid.UUID) ([]*models.LicenseReset, error) {
	return m.resets, nil
}

func setupAdminTest(t *testing.T) (*gin.Engine, *mockAdminStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &mockAdminStore{byCode: make(map[string]*models.License)}
	handler := NewAdminHandler(store, adminTestToken, zerolog.Nop())

	r := gin.New()
	handler.RegisterRoutes(r.Group("/api/v1/admin"))
	return r, store
}

func adminRequest(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedAdminLicense(store *mockAdminStore, code string) *models.License {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := &models.License{
		ID:           uuid.New(),
		PurchaseCode: code,
		ItemID:       "100",
		Mode:         models.BindingModeDevice,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	store.byCode[code] = lic
	return lic
}

func TestAdminRequiresToken(t *testing.T) {
	r, store := setupAdminTest(t)
	seedAdminLicense(store, "ABC-1")

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := adminRequest(t, r, http.MethodGet, "/api/v1/admin/licenses/ABC-1", tt.token, nil)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAdminGetLicense(t *testing.T) {
	r, store := setupAdminTest(t)
	lic := seedAdminLicense(store, "ABC-1")
	store.activeCount = 1
	store.resets = []*models.LicenseReset{
		{ID: uuid.New(), LicenseID: lic.ID, UserID: uuid.New(), Reason: "new machine"},
	}

	w := adminRequest(t, r, http.MethodGet, "/api/v1/admin/licenses/ABC-1", adminTestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp AdminLicenseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.License == nil || resp.License.ID != lic.ID {
		t.Fatalf("unexpected license in response: %+v", resp.License)
	}
	if resp.ActiveActivation != 1 {
		t.Fatalf("expected 1 active activation, got %d", resp.ActiveActivation)
	}
	if len(resp.Resets) != 1 || resp.Resets[0].Reason != "new machine" {
		t.Fatalf("unexpected reset history: %+v", resp.Resets)
	}
}

func TestAdminGetLicenseNotFound(t *testing.T) {
	r, _ := setupAdminTest(t)

	w := adminRequest(t, r, http.MethodGet, "/api/v1/admin/licenses/MISSING", adminTestToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminSetActive(t *testing.T) {
	r, store := setupAdminTest(t)
	seedAdminLicense(store, "ABC-1")

	inactive := false
	w := adminRequest(t, r, http.MethodPut, "/api/v1/admin/licenses/ABC-1/active", adminTestToken,
		SetLicenseActiveRequest{Active: &inactive})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.byCode["ABC-1"].Active {
		t.Fatal("expected license deactivated")
	}

	active := true
	w = adminRequest(t, r, http.MethodPut, "/api/v1/admin/licenses/ABC-1/active", adminTestToken,
		SetLicenseActiveRequest{Active: &active})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on reactivation, got %d", w.Code)
	}
	if !store.byCode["ABC-1"].Active {
		t.Fatal("expected license reactivated")
	}
}

func TestAdminSetActiveValidation(t *testing.T) {
	r, store := setupAdminTest(t)
	seedAdminLicense(store, "ABC-1")

	w := adminRequest(t, r, http.MethodPut, "/api/v1/admin/licenses/ABC-1/active", adminTestToken,
		map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing active field, got %d", w.Code)
	}

	inactive := false
	w = adminRequest(t, r, http.MethodPut, "/api/v1/admin/licenses/MISSING/active", adminTestToken,
		SetLicenseActiveRequest{Active: &inactive})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown license, got %d", w.Code)
	}
	if len(store.setActive) != 0 {
		t.Fatalf("expected no mutation, got %v", store.setActive)
	}
}
