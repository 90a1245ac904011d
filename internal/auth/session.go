// Package auth provides session management for the self-service reset flow.
package auth

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

func init() {
	// Register types for session serialization
	gob.Register(uuid.UUID{})
	gob.Register(time.Time{})
}

const (
	// SessionName is the name of the session cookie.
	SessionName = "purlock_session"
	// StateKey is the session key for the OAuth state parameter.
	StateKey = "oauth_state"
	// UserIDKey is the session key for the authenticated user ID.
	UserIDKey = "user_id"
)

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Secret   []byte
	MaxAge   int  // seconds
	Secure   bool // require HTTPS
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultSessionConfig returns a SessionConfig with secure defaults.
func DefaultSessionConfig(secret []byte, secure bool) SessionConfig {
	return SessionConfig{
		Secret:   secret,
		MaxAge:   86400,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionStore wraps a gorilla/sessions cookie store with helper methods.
type SessionStore struct {
	store  *sessions.CookieStore
	logger zerolog.Logger
}

// NewSessionStore creates a new session store.
func NewSessionStore(cfg SessionConfig, logger zerolog.Logger) (*SessionStore, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}

	s := &SessionStore{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}

	s.logger.Info().
		Bool("secure", cfg.Secure).
		Int("max_age", cfg.MaxAge).
		Msg("session store initialized")

	return s, nil
}

// SetOAuthState saves the OAuth state parameter for later verification.
func (s *SessionStore) SetOAuthState(r *http.Request, w http.ResponseWriter, state string) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// A corrupt cookie yields a fresh session; proceed with it.
		s.logger.Debug().Err(err).Msg("starting fresh session")
	}
	session.Values[StateKey] = state
	return session.Save(r, w)
}

// ConsumeOAuthState returns the saved OAuth state and removes it from the
// session so a state can only be used once.
func (s *SessionStore) ConsumeOAuthState(r *http.Request, w http.ResponseWriter) (string, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	state, ok := session.Values[StateKey].(string)
	if !ok || state == "" {
		return "", fmt.Errorf("no state in session")
	}
	delete(session.Values, StateKey)
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return state, nil
}

// SetUserID records the authenticated user in the session.
func (s *SessionStore) SetUserID(r *http.Request, w http.ResponseWriter, userID uuid.UUID) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		s.logger.Debug().Err(err).Msg("starting fresh session")
	}
	session.Values[UserIDKey] = userID
	return session.Save(r, w)
}

// UserID returns the authenticated user id, or uuid.Nil if the session is
// anonymous.
func (s *SessionStore) UserID(r *http.Request) uuid.UUID {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return uuid.Nil
	}
	userID, ok := session.Values[UserIDKey].(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// Clear removes all session state, logging the user out.
func (s *SessionStore) Clear(r *http.Request, w http.ResponseWriter) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	session.Options.MaxAge = -1
	session.Values = make(map[any]any)
	return session.Save(r, w)
}
