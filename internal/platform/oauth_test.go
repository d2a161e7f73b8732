package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateRoundTrip(t *testing.T) {
	state := OAuthState{
		Role:                RoleUser,
		ReferralCode:        "ref-42",
		RedirectPath:        "/dashboard/credits",
		ExternalRedirectURL: "https://invoice.mtp.tools/dashboard",
		Timestamp:           1767225600000,
	}

	encoded, err := EncodeOAuthState(state)
	require.NoError(t, err)

	decoded, err := DecodeOAuthState(encoded)
	require.NoError(t, err)
	assert.Equal(t, state, *decoded)
}

func TestDecodeOAuthStateMalformed(t *testing.T) {
	_, err := DecodeOAuthState("not-base64!!!")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	// Valid base64url, invalid JSON inside.
	_, err = DecodeOAuthState("bm90LWpzb24")
	require.ErrorAs(t, err, &valErr)
}

func TestInitiateOAuth(t *testing.T) {
	var gotState string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/oauth/google", r.URL.Path)
		var req struct {
			State string `json:"state"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotState = req.State
		json.NewEncoder(w).Encode(map[string]string{
			"authorization_url": "https://accounts.google.com/o/oauth2/auth?state=" + req.State,
		})
	}))
	defer server.Close()

	client, err := NewClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	authURL, err := client.InitiateOAuth(context.Background(), ProviderGoogle, OAuthState{
		Role:                RoleUser,
		ExternalRedirectURL: "https://invoice.mtp.tools/dashboard",
	})
	require.NoError(t, err)
	assert.Contains(t, authURL, "accounts.google.com")

	// The state the backend saw must decode back to what we sent.
	decoded, err := DecodeOAuthState(gotState)
	require.NoError(t, err)
	assert.Equal(t, "https://invoice.mtp.tools/dashboard", decoded.ExternalRedirectURL)
}

func TestInitiateOAuthUnknownProvider(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	_, err = client.InitiateOAuth(context.Background(), Provider("myspace"), OAuthState{})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestHandleOAuthCallbackErrors(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "http://localhost:0"})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("provider reported error", func(t *testing.T) {
		_, err := client.HandleOAuthCallback(ctx, ProviderGoogle, OAuthCallbackParams{
			Error:            "access_denied",
			ErrorDescription: "The user denied the request",
		})
		var oauthErr *OAuthError
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, "access_denied", oauthErr.Code)
	})

	t.Run("missing code", func(t *testing.T) {
		_, err := client.HandleOAuthCallback(ctx, ProviderApple, OAuthCallbackParams{State: "abc"})
		var oauthErr *OAuthError
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, "missing_parameters", oauthErr.Code)
	})

	t.Run("missing state", func(t *testing.T) {
		_, err := client.HandleOAuthCallback(ctx, ProviderMicrosoft, OAuthCallbackParams{Code: "abc"})
		var oauthErr *OAuthError
		require.ErrorAs(t, err, &oauthErr)
	})
}

func TestHandleOAuthCallbackSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/oauth/google/callback", r.URL.Path)
		json.NewEncoder(w).Encode(Session{
			AccessToken:  "oauth-token",
			RefreshToken: "oauth-refresh",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
			User:         &User{ID: "u1", Email: "u@example.com"},
		})
	}))
	defer server.Close()

	client, err := NewClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	sess, err := client.HandleOAuthCallback(context.Background(), ProviderGoogle, OAuthCallbackParams{
		Code:  "auth-code",
		State: "opaque-state",
		Role:  RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth-token", sess.AccessToken)
	assert.Equal(t, RoleUser, sess.User.Role, "role defaults to the requested one")
}
