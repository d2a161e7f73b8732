package platform

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// patExpiringSoonWindow is how far ahead a PAT counts as "expiring soon" for
// display purposes.
const patExpiringSoonWindow = 7 * 24 * time.Hour

// CreateTokenParams names a new personal access token and optionally bounds
// its lifetime.
type CreateTokenParams struct {
	Name      string     `json:"name" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type listTokensResponse struct {
	Tokens []PersonalAccessToken `json:"tokens"`
}

// ListTokens returns the user's personal access tokens. The raw token value
// is never included; only LastFourChars is available after creation.
func (c *Client) ListTokens(ctx context.Context) ([]PersonalAccessToken, error) {
	var resp listTokensResponse
	if err := c.do(ctx, http.MethodGet, "/auth/tokens", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// CreateToken creates a new PAT. The response is the only time the raw token
// value is ever returned; the caller must capture it immediately.
func (c *Client) CreateToken(ctx context.Context, params CreateTokenParams) (*PersonalAccessToken, error) {
	var tok PersonalAccessToken
	if err := c.do(ctx, http.MethodPost, "/auth/tokens", params, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// RegenerateToken invalidates the token's current value and mints a new one.
// As with CreateToken, the raw value appears in this response only.
func (c *Client) RegenerateToken(ctx context.Context, id string) (*PersonalAccessToken, error) {
	var tok PersonalAccessToken
	path := fmt.Sprintf("/auth/tokens/%s/regenerate", id)
	if err := c.do(ctx, http.MethodPost, path, nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// RevokeToken invalidates a PAT immediately and irreversibly.
func (c *Client) RevokeToken(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/auth/tokens/%s", id), nil, nil)
}

// PATExpired reports whether a token's expiry has passed. Tokens without an
// expiry never expire.
func PATExpired(expiresAt *time.Time) bool {
	return patExpired(expiresAt, time.Now())
}

// PATExpiringSoon reports whether a token expires within the next seven days
// and has not yet expired.
func PATExpiringSoon(expiresAt *time.Time) bool {
	return patExpiringSoon(expiresAt, time.Now())
}

func patExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}

func patExpiringSoon(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil || patExpired(expiresAt, now) {
		return false
	}
	return expiresAt.Before(now.Add(patExpiringSoonWindow))
}
