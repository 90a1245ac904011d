// Package marketplace implements the Purlock side of the marketplace API:
// seller-credential purchase verification, buyer-token ownership proof, and
// the OAuth authorization-code flow for the self-service reset surface.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/purlock/purlock/internal/engine"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default timeout for marketplace API calls. Calls are
// never retried: a failed verification must not activate a license.
const DefaultTimeout = 30 * time.Second

const (
	defaultAuthorSalePath    = "/v3/market/author/sale"
	defaultBuyerPurchasePath = "/v3/market/buyer/purchase"
	defaultIdentityPath      = "/v1/market/private/user/account"
	defaultAuthorizePath     = "/authorization"
	defaultTokenPath         = "/token"
)

// Config holds marketplace API configuration.
type Config struct {
	// APIBaseURL is the base URL of the marketplace REST API.
	APIBaseURL string
	// AuthBaseURL is the base URL of the marketplace OAuth endpoints.
	AuthBaseURL string
	// PersonalToken is the long-lived seller credential used for
	// authenticity checks.
	PersonalToken string
	// ClientID / ClientSecret / RedirectURL configure the OAuth client.
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Timeout for API calls (default: DefaultTimeout).
	Timeout time.Duration
}

// APIError is a non-success response from the marketplace API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("marketplace API returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("marketplace API returned %d", e.Status)
}

// Client talks to the marketplace API. It implements the engine's
// AuthenticityProvider and OwnershipProvider contracts.
type Client struct {
	cfg    Config
	http   *http.Client
	oauth  *oauth2.Config
	cache  *Cache
	logger zerolog.Logger
}

// New creates a marketplace client. cache may be nil to disable caching of
// authenticity lookups.
func New(cfg Config, cache *Cache, logger zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthBaseURL + defaultAuthorizePath,
				TokenURL: cfg.AuthBaseURL + defaultTokenPath,
			},
		},
		cache:  cache,
		logger: logger.With().Str("component", "marketplace").Logger(),
	}
}

// saleResponse is the wire shape shared by the author-sale and
// buyer-purchase endpoints. The item id arrives as a JSON number.
type saleResponse struct {
	Item struct {
		ID json.Number `json:"id"`
	} `json:"item"`
}

// VerifyPurchaseAuthenticity looks up a purchase code with the seller's
// personal token and returns the item id it was issued for.
func (c *Client) VerifyPurchaseAuthenticity(ctx context.Context, purchaseCode string) (*engine.PurchaseVerification, error) {
	if c.cache != nil {
		if pv, ok := c.cache.Get(ctx, purchaseCode); ok {
			return pv, nil
		}
	}

	pv, err := c.fetchSale(ctx, defaultAuthorSalePath, c.cfg.PersonalToken, purchaseCode)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, purchaseCode, pv)
	}
	return pv, nil
}

// VerifyPurchaseOwnership looks up a purchase code with a buyer's delegated
// token, proving the token holder owns that purchase.
func (c *Client) VerifyPurchaseOwnership(ctx context.Context, userToken, purchaseCode string) (*engine.PurchaseVerification, error) {
	return c.fetchSale(ctx, defaultBuyerPurchasePath, userToken, purchaseCode)
}

func (c *Client) fetchSale(ctx context.Context, path, token, purchaseCode string) (*engine.PurchaseVerification, error) {
	if purchaseCode == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Message: "empty purchase code"}
	}

	endpoint := c.cfg.APIBaseURL + path + "?code=" + url.QueryEscape(purchaseCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call marketplace: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read marketplace response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var sale saleResponse
	if err := json.Unmarshal(body, &sale); err != nil {
		return nil, fmt.Errorf("parse marketplace response: %w", err)
	}
	if sale.Item.ID.String() == "" {
		return nil, &APIError{Status: resp.StatusCode, Message: "response carries no item id"}
	}

	return &engine.PurchaseVerification{
		ItemID: sale.Item.ID.String(),
		Raw:    json.RawMessage(body),
	}, nil
}

// errorMessage extracts a human-readable message from an error body,
// tolerating the marketplace's two error shapes.
func errorMessage(body []byte) string {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.Description != "":
		return e.Description
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}
