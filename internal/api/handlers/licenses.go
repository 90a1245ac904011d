// Package handlers provides HTTP handlers for the Purlock API.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/auth"
	"github.com/purlock/purlock/internal/engine"
	"github.com/purlock/purlock/internal/metrics"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
)

// UserStore defines the user lookups the license handlers need.
type UserStore interface {
	FindOAuthUserByID(ctx context.Context, id uuid.UUID) (*models.OAuthUser, error)
}

// LicenseHandler handles license verification and reset endpoints.
type LicenseHandler struct {
	verifier *engine.Verifier
	resetter *engine.Resetter
	users    UserStore
	sessions *auth.SessionStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewLicenseHandler creates a LicenseHandler.
func NewLicenseHandler(
	verifier *engine.Verifier,
	resetter *engine.Resetter,
	users UserStore,
	sessions *auth.SessionStore,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LicenseHandler {
	return &LicenseHandler{
		verifier: verifier,
		resetter: resetter,
		users:    users,
		sessions: sessions,
		metrics:  m,
		logger:   logger.With().Str("component", "license_handler").Logger(),
	}
}

// RegisterRoutes registers license routes on the given router group.
func (h *LicenseHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/licenses/verify", h.Verify)
	r.POST("/licenses/reset", h.Reset)
}

// VerifyLicenseRequest is the body of POST /licenses/verify.
type VerifyLicenseRequest struct {
	PurchaseCode   string `json:"purchase_code" binding:"required"`
	ItemID         string `json:"item_id" binding:"required"`
	DeviceID       string `json:"device_id"`
	NetworkAddress string `json:"network_address"`
}

// ResetLicenseRequest is the body of POST /licenses/reset.
type ResetLicenseRequest struct {
	PurchaseCode string `json:"purchase_code" binding:"required"`
	Reason       string `json:"reason"`
}

// statusForKind maps engine error kinds to HTTP status codes: validation and
// verification failures are 400, binding conflicts and inactive licenses are
// 403, unknown licenses are 404.
func statusForKind(kind engine.Kind) int {
	switch kind {
	case engine.KindAlreadyActivatedElsewhere, engine.KindLicenseInactive:
		return http.StatusForbidden
	case engine.KindLicenseNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// respondEngineError writes an engine failure as JSON. Errors outside the
// engine taxonomy are unexpected and become an opaque 500.
func (h *LicenseHandler) respondEngineError(c *gin.Context, counter string, err error) {
	if kind, ok := engine.KindOf(err); ok {
		h.countOutcome(counter, string(kind))
		c.JSON(statusForKind(kind), gin.H{
			"status": "error",
			"kind":   string(kind),
			"error":  err.Error(),
		})
		return
	}

	h.countOutcome(counter, "internal_error")
	h.logger.Error().Err(err).Msg("unexpected engine failure")
	c.JSON(http.StatusInternalServerError, gin.H{
		"status": "error",
		"error":  "internal server error",
	})
}

func (h *LicenseHandler) countOutcome(counter, outcome string) {
	if h.metrics == nil {
		return
	}
	switch counter {
	case "verify":
		h.metrics.Verifications.WithLabelValues(outcome).Inc()
	case "reset":
		h.metrics.Resets.WithLabelValues(outcome).Inc()
	}
}

// Verify activates a license or confirms an existing binding.
// POST /api/v1/licenses/verify
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	err := h.verifier.Verify(c.Request.Context(), engine.VerifyRequest{
		PurchaseCode:   req.PurchaseCode,
		ItemID:         req.ItemID,
		DeviceID:       req.DeviceID,
		NetworkAddress: req.NetworkAddress,
	})
	if err != nil {
		h.respondEngineError(c, "verify", err)
		return
	}

	h.countOutcome("verify", "activated")
	c.JSON(http.StatusOK, gin.H{"status": "activated"})
}

// Reset unbinds the caller's license after ownership proof. The caller must
// have completed the OAuth flow; the session identifies the acting user.
// POST /api/v1/licenses/reset
func (h *LicenseHandler) Reset(c *gin.Context) {
	userID := h.sessions.UserID(c.Request)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
		return
	}

	var req ResetLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	user, err := h.users.FindOAuthUserByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load acting user")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal server error"})
		return
	}
	if user == nil || !user.HasDelegatedToken() {
		// Session references a user that no longer exists or lost its token;
		// force a fresh OAuth round trip.
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
		return
	}

	if err := h.resetter.Reset(c.Request.Context(), req.PurchaseCode, user, req.Reason); err != nil {
		h.respondEngineError(c, "reset", err)
		return
	}

	h.countOutcome("reset", "reset")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
