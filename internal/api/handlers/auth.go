package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/auth"
	"github.com/purlock/purlock/internal/clock"
	"github.com/purlock/purlock/internal/marketplace"
	"github.com/purlock/purlock/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// OAuthUserStore defines the persistence the auth handler needs.
type OAuthUserStore interface {
	FindOAuthUserByExternalID(ctx context.Context, externalID string) (*models.OAuthUser, error)
	FindOAuthUserByID(ctx context.Context, id uuid.UUID) (*models.OAuthUser, error)
	SaveOAuthUser(ctx context.Context, u *models.OAuthUser) error
}

// OAuthProvider is the marketplace capability the auth handler consumes.
type OAuthProvider interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, accessToken string) (*marketplace.Identity, error)
}

// AuthHandler handles the marketplace OAuth flow for the reset surface.
type AuthHandler struct {
	provider OAuthProvider
	sessions *auth.SessionStore
	users    OAuthUserStore
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(provider OAuthProvider, sessions *auth.SessionStore, users OAuthUserStore, clk clock.Clock, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		sessions: sessions,
		users:    users,
		clock:    clk,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/login", h.Login)
	r.GET("/callback", h.Callback)
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)
}

// Login redirects to the marketplace for consent.
// GET /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	if err := h.sessions.SetOAuthState(c.Request, c.Writer, state); err != nil {
		h.logger.Error().Err(err).Msg("failed to save state to session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthorizationURL(state))
}

// Callback completes the OAuth flow: verifies state, exchanges the code,
// fetches the marketplace identity, and stores user plus tokens.
// GET /auth/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.logger.Warn().
			Str("error", errParam).
			Str("description", c.Query("error_description")).
			Msg("marketplace returned error")
		c.JSON(http.StatusBadRequest, gin.H{"error": errParam})
		return
	}

	state := c.Query("state")
	if state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state parameter"})
		return
	}

	savedState, err := h.sessions.ConsumeOAuthState(c.Request, c.Writer)
	if err != nil || state != savedState {
		h.logger.Warn().Msg("state parameter mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	token, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("code exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code exchange failed"})
		return
	}

	identity, err := h.provider.FetchIdentity(c.Request.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("identity fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch marketplace identity"})
		return
	}

	user, err := h.upsertUser(c.Request.Context(), identity, token)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to persist user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete login"})
		return
	}

	if err := h.sessions.SetUserID(c.Request, c.Writer, user.ID); err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete login"})
		return
	}

	h.logger.Info().
		Str("user_id", user.ID.String()).
		Str("external_id", user.ExternalID).
		Msg("user authenticated")
	c.JSON(http.StatusOK, gin.H{"status": "authenticated", "username": user.Username})
}

// upsertUser creates or refreshes the OAuthUser for an identity and token set.
func (h *AuthHandler) upsertUser(ctx context.Context, identity *marketplace.Identity, token *oauth2.Token) (*models.OAuthUser, error) {
	now := h.clock.Now()

	user, err := h.users.FindOAuthUserByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &models.OAuthUser{
			ID:         uuid.New(),
			ExternalID: identity.ExternalID,
			CreatedAt:  now,
		}
	}

	user.Username = identity.Username
	user.Email = identity.Email
	user.AccessToken = token.AccessToken
	user.RefreshToken = token.RefreshToken
	user.UpdatedAt = now
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		user.TokenExpiresAt = &expiry
	}

	if err := h.users.SaveOAuthUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout clears the session.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Clear(c.Request, c.Writer); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me returns the authenticated user's profile.
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := h.sessions.UserID(c.Request)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	user, err := h.users.FindOAuthUserByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	resp := gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
	if user.TokenExpiresAt != nil {
		resp["token_expires_at"] = user.TokenExpiresAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}
