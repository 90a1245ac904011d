package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Identity is the stable marketplace account behind a delegated token.
type Identity struct {
	ExternalID string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
}

// AuthorizationURL returns the URL to redirect a user to for consent.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange swaps an authorization code for a token set.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// FetchIdentity retrieves the marketplace account for a delegated token.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	endpoint := c.cfg.APIBaseURL + defaultIdentityPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read identity response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var payload struct {
		ID       json.Number `json:"id"`
		Username string      `json:"username"`
		Email    string      `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse identity response: %w", err)
	}
	if payload.ID.String() == "" {
		return nil, &APIError{Status: resp.StatusCode, Message: "identity response carries no account id"}
	}

	return &Identity{
		ExternalID: payload.ID.String(),
		Username:   payload.Username,
		Email:      payload.Email,
	}, nil
}
