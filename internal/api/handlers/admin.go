package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

// AdminLicenseStore defines the license lookups and mutations the operator
// endpoints need.
type AdminLicenseStore interface {
	FindByPurchaseCode(ctx context.Context, purchaseCode string) (*models.License, error)
	SetLicenseActive(ctx context.Context, purchaseCode string, active bool) error
	CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error)
	ListResetsByLicense(ctx context.Context, licenseID uuid.UUID) ([]*models.LicenseReset, error)
}

// AdminHandler exposes operator endpoints for inspecting licenses and
// flipping the administrative active flag. All routes require the configured
// bearer token.
type AdminHandler struct {
	store  AdminLicenseStore
	token  string
	logger zerolog.Logger
}

// NewAdminHandler creates an AdminHandler. The token must be non-empty; the
// router skips registration entirely when no token is configured.
func NewAdminHandler(store AdminLicenseStore, token string, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		token:  token,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RegisterRoutes registers operator routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.Use(h.requireToken)
	r.GET("/licenses/:purchase_code", h.GetLicense)
	r.PUT("/licenses/:purchase_code/active", h.SetActive)
}

// requireToken rejects requests without the configured bearer token.
func (h *AdminHandler) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	supplied, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(supplied), []byte(h.token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "authentication required",
		})
		return
	}
	c.Next()
}

// AdminLicenseResponse is the body of GET /admin/licenses/:purchase_code.
type AdminLicenseResponse struct {
	License          *models.License        `json:"license"`
	ActiveActivation int64                  `json:"active_activations"`
	Resets           []*models.LicenseReset `json:"resets"`
}

// SetLicenseActiveRequest is the body of PUT /admin/licenses/:purchase_code/active.
type SetLicenseActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// GetLicense returns a license with its active activation count and reset
// history.
// GET /api/v1/admin/licenses/:purchase_code
func (h *AdminHandler) GetLicense(c *gin.Context) {
	code := c.Param("purchase_code")

	lic, err := h.store.FindByPurchaseCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load license")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}
	if lic == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "license not found"})
		return
	}

	count, err := h.store.CountActiveByLicense(c.Request.Context(), lic.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count activations")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}

	resets, err := h.store.ListResetsByLicense(c.Request.Context(), lic.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list resets")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AdminLicenseResponse{
		License:          lic,
		ActiveActivation: count,
		Resets:           resets,
	})
}

// SetActive flips the administrative active flag. Deactivated licenses fail
// verification with license_inactive until reactivated.
// PUT /api/v1/admin/licenses/:purchase_code/active
func (h *AdminHandler) SetActive(c *gin.Context) {
	code := c.Param("purchase_code")

	var req SetLicenseActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	lic, err := h.store.FindByPurchaseCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load license")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}
	if lic == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "license not found"})
		return
	}

	if err := h.store.SetLicenseActive(c.Request.Context(), code, *req.Active); err != nil {
		h.logger.Error().Err(err).Msg("failed to set license active flag")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}

	h.logger.Info().
		Str("license_id", lic.ID.String()).
		Bool("active", *req.Active).
		Msg("license active flag changed")
	c.JSON(http.StatusOK, gin.H{"status": "updated", "active": *req.Active})
}
