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
	"github.com/purlock/purlock/internal/auth"
	"github.com/purlock/purlock/internal/catalog"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/engine"
	"github.com/purlock/purlock/internal/metrics"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

var handlerTestTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockLicenseStore struct {
	byCode map[string]*models.License
}

func (m *mockLicenseStore) FindByPurchaseCode(_ context.Context, code string) (*models.License, error) {
	lic, ok := m.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *lic
	return &cp, nil
}

func (m *mockLicenseStore) Upsert(_ context.Context, lic *models.License) error {
	if existing, ok := m.byCode[lic.PurchaseCode]; ok {
		existing.ItemID = lic.ItemID
		existing.Mode = lic.Mode
		existing.UpdatedAt = lic.UpdatedAt
		lic.ID = existing.ID
		return nil
	}
	cp := *lic
	m.byCode[lic.PurchaseCode] = &cp
	return nil
}

type mockActivationStore struct {
	acts []*models.Activation
}

func (m *mockActivationStore) FindActiveByLicense(_ context.Context, licenseID uuid.UUID) (*models.Activation, error) {
	for _, a := range m.acts {
		if a.LicenseID == licenseID && a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockActivationStore) ListActiveByLicense(_ context.Context, licenseID uuid.UUID) ([]*models.Activation, error) {
	var out []*models.Activation
	for _, a := range m.acts {
		if a.LicenseID == licenseID && a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockActivationStore) Create(_ context.Context, act *models.Activation) error {
	for _, a := range m.acts {
		if a.LicenseID == act.LicenseID && a.Active {
			return engine.ErrActiveActivationExists
		}
	}
	cp := *act
	m.acts = append(m.acts, &cp)
	return nil
}

func (m *mockActivationStore) Deactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, a := range m.acts {
		if a.ID == id {
			a.Active = false
			a.UpdatedAt = at
		}
	}
	return nil
}

type mockResetLog struct {
	resets []*models.LicenseReset
}

func (m *mockResetLog) Append(_ context.Context, r *models.LicenseReset) error {
	cp := *r
	m.resets = append(m.resets, &cp)
	return nil
}

type mockUserStore struct {
	users map[uuid.UUID]*models.OAuthUser
}

func (m *mockUserStore) FindOAuthUserByID(_ context.Context, id uuid.UUID) (*models.OAuthUser, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type mockProvider struct {
	itemID string
}

func (m *mockProvider) VerifyPurchaseAuthenticity(_ context.Context, _ string) (*engine.PurchaseVerification, error) {
	return &engine.PurchaseVerification{ItemID: m.itemID}, nil
}

func (m *mockProvider) VerifyPurchaseOwnership(_ context.Context, _, _ string) (*engine.PurchaseVerification, error) {
	return &engine.PurchaseVerification{ItemID: m.itemID}, nil
}

type licenseTestEnv struct {
	router      *gin.Engine
	sessions    *auth.SessionStore
	licenses    *mockLicenseStore
	activations *mockActivationStore
	resets      *mockResetLog
	users       *mockUserStore
}

func setupLicenseTestEnv(t *testing.T) *licenseTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.New(map[string]models.BindingMode{
		"100": models.BindingModeDevice,
		"200": models.BindingModeNetwork,
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	licenses := &mockLicenseStore{byCode: make(map[string]*models.License)}
	activations := &mockActivationStore{}
	resets := &mockResetLog{}
	users := &mockUserStore{users: make(map[uuid.UUID]*models.OAuthUser)}
	provider := &mockProvider{itemID: "100"}
	clk := clock.Fixed{T: handlerTestTime}

	binder := engine.NewBinder(activations, clk, zerolog.Nop())
	verifier := engine.NewVerifier(cat, provider, licenses, binder, clk, zerolog.Nop())
	resetter := engine.NewResetter(provider, licenses, activations, resets, clk, zerolog.Nop())

	sessions, err := auth.NewSessionStore(
		auth.DefaultSessionConfig([]byte("0123456789abcdef0123456789abcdef"), false),
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("create session store: %v", err)
	}

	handler := NewLicenseHandler(verifier, resetter, users, sessions, metrics.New(), zerolog.Nop())
	r := gin.New()
	handler.RegisterRoutes(r.Group("/api/v1"))

	return &licenseTestEnv{
		router:      r,
		sessions:    sessions,
		licenses:    licenses,
		activations: activations,
		resets:      resets,
		users:       users,
	}
}

func (env *licenseTestEnv) postJSON(t *testing.T, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// loginCookies creates a session cookie for an authenticated user.
func (env *licenseTestEnv) loginCookies(t *testing.T, userID uuid.UUID) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := env.sessions.SetUserID(r, w, userID); err != nil {
		t.Fatalf("set session user: %v", err)
	}
	return w.Result().Cookies()
}

func TestVerifyEndpoint(t *testing.T) {
	env := setupLicenseTestEnv(t)
	body := VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M1"}

	w := env.postJSON(t, "/api/v1/licenses/verify", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["status"] != "activated" {
		t.Fatalf("expected activated, got %q", resp["status"])
	}
	if len(env.activations.acts) != 1 {
		t.Fatalf("expected 1 activation, got %d", len(env.activations.acts))
	}
}

func TestVerifyEndpointStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		body     VerifyLicenseRequest
		want     int
		wantKind string
	}{
		{
			"unknown item",
			VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "999", DeviceID: "M1"},
			http.StatusBadRequest, "invalid_item_id",
		},
		{
			"item mismatch",
			VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "200", NetworkAddress: "10.0.0.1"},
			http.StatusBadRequest, "purchase_verification_failed",
		},
		{
			"missing device id",
			VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "100", NetworkAddress: "10.0.0.1"},
			http.StatusBadRequest, "missing_device_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupLicenseTestEnv(t)
			w := env.postJSON(t, "/api/v1/licenses/verify", tt.body, nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp["kind"] != tt.wantKind {
				t.Fatalf("expected kind %q, got %q", tt.wantKind, resp["kind"])
			}
		})
	}
}

func TestVerifyEndpointConflictIs403(t *testing.T) {
	env := setupLicenseTestEnv(t)
	first := VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M1"}
	if w := env.postJSON(t, "/api/v1/licenses/verify", first, nil); w.Code != http.StatusOK {
		t.Fatalf("setup verify failed: %d", w.Code)
	}

	second := VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M2"}
	w := env.postJSON(t, "/api/v1/licenses/verify", second, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVerifyEndpointRejectsMalformedBody(t *testing.T) {
	env := setupLicenseTestEnv(t)

	w := env.postJSON(t, "/api/v1/licenses/verify", map[string]string{"item_id": "100"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing purchase_code, got %d", w.Code)
	}
}

func TestResetEndpointRequiresAuth(t *testing.T) {
	env := setupLicenseTestEnv(t)

	w := env.postJSON(t, "/api/v1/licenses/reset", ResetLicenseRequest{PurchaseCode: "ABC-1"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResetEndpoint(t *testing.T) {
	env := setupLicenseTestEnv(t)

	// Activate first.
	if w := env.postJSON(t, "/api/v1/licenses/verify", VerifyLicenseRequest{PurchaseCode: "ABC-1", ItemID: "100", DeviceID: "M1"}, nil); w.Code != http.StatusOK {
		t.Fatalf("setup verify failed: %d", w.Code)
	}

	userID := uuid.New()
	env.users.users[userID] = &models.OAuthUser{
		ID:          userID,
		ExternalID:  "ext-1",
		Username:    "buyer",
		AccessToken: "delegated-token",
	}
	cookies := env.loginCookies(t, userID)

	w := env.postJSON(t, "/api/v1/licenses/reset", ResetLicenseRequest{PurchaseCode: "ABC-1", Reason: "new machine"}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	for _, a := range env.activations.acts {
		if a.Active {
			t.Fatal("expected all activations deactivated after reset")
		}
	}
	if len(env.resets.resets) != 1 {
		t.Fatalf("expected 1 reset record, got %d", len(env.resets.resets))
	}
}

func TestResetEndpointUnknownLicenseIs404(t *testing.T) {
	env := setupLicenseTestEnv(t)

	userID := uuid.New()
	env.users.users[userID] = &models.OAuthUser{ID: userID, AccessToken: "delegated-token"}
	cookies := env.loginCookies(t, userID)

	w := env.postJSON(t, "/api/v1/licenses/reset", ResetLicenseRequest{PurchaseCode: "NOPE-1"}, cookies)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResetEndpointStaleSession(t *testing.T) {
	env := setupLicenseTestEnv(t)

	// Session points at a user that no longer exists.
	cookies := env.loginCookies(t, uuid.New())
	w := env.postJSON(t, "/api/v1/licenses/reset", ResetLicenseRequest{PurchaseCode: "ABC-1"}, cookies)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale session, got %d", w.Code)
	}
}
