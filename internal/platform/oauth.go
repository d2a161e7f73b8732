package platform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// OAuthState is the opaque payload carried through the provider's state
// parameter. It is never persisted server-side or in any local storage: the
// round trip through the provider is its only transport. The central auth
// service uses ExternalRedirectURL to send the browser back to this specific
// tool instance after a shared OAuth flow.
type OAuthState struct {
	Role                Role   `json:"role"`
	ReferralCode        string `json:"referralCode,omitempty"`
	RedirectPath        string `json:"redirectPath,omitempty"`
	ExternalRedirectURL string `json:"externalRedirectUrl"`
	Timestamp           int64  `json:"timestamp"`
}

// EncodeOAuthState serializes state as base64url JSON. All provider families
// use this one encoding.
func EncodeOAuthState(state OAuthState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeOAuthState reverses EncodeOAuthState. Malformed input is a
// ValidationError: fatal for the current operation, surfaced to the user.
func DecodeOAuthState(encoded string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &ValidationError{Field: "state", Message: "state is not valid base64url"}
	}
	var state OAuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &ValidationError{Field: "state", Message: "state is not valid JSON"}
	}
	return &state, nil
}

type initiateOAuthRequest struct {
	State string `json:"state"`
}

type initiateOAuthResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// InitiateOAuth asks the backend for the provider's authorization URL. The
// caller-constructed state travels opaque through the whole flow.
func (c *Client) InitiateOAuth(ctx context.Context, provider Provider, state OAuthState) (string, error) {
	if !KnownProvider(provider) {
		return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unknown oauth provider %q", provider)}
	}
	encoded, err := EncodeOAuthState(state)
	if err != nil {
		return "", err
	}

	var resp initiateOAuthResponse
	path := fmt.Sprintf("/auth/oauth/%s", provider)
	if err := c.do(ctx, http.MethodPost, path, initiateOAuthRequest{State: encoded}, &resp); err != nil {
		return "", err
	}
	return resp.AuthorizationURL, nil
}

// OAuthCallbackParams are the query parameters the provider sends back.
type OAuthCallbackParams struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"-"`
	ErrorDescription string `json:"-"`
	ReferralCode     string `json:"referral_code,omitempty"`
	Role             Role   `json:"role,omitempty"`
}

// HandleOAuthCallback completes the OAuth flow. A provider-reported error or
// a missing code/state is an OAuthError rendered as a blocking error screen,
// never retried.
func (c *Client) HandleOAuthCallback(ctx context.Context, provider Provider, params OAuthCallbackParams) (*Session, error) {
	if !KnownProvider(provider) {
		return nil, &ValidationError{Field: "provider", Message: fmt.Sprintf("unknown oauth provider %q", provider)}
	}
	if params.Error != "" {
		return nil, &OAuthError{Provider: provider, Code: params.Error, Description: params.ErrorDescription}
	}
	if params.Code == "" || params.State == "" {
		return nil, &OAuthError{Provider: provider, Code: "missing_parameters", Description: "authorization code or state missing from callback"}
	}

	var sess Session
	path := fmt.Sprintf("/auth/oauth/%s/callback", provider)
	if err := c.do(ctx, http.MethodPost, path, params, &sess); err != nil {
		return nil, err
	}
	c.normalizeSession(&sess, params.Role)
	return &sess, nil
}
