package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtp-io/toolportal/internal/platform"
	"github.com/mtp-io/toolportal/internal/tokenstore"
)

type fakeAPI struct {
	mu             sync.Mutex
	getUserCalls   int
	refreshCalls   int
	getUserErr     error
	refreshErr     error
	refreshSession *platform.Session
}

func (f *fakeAPI) GetUser(ctx context.Context) (*platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getUserCalls++
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return &platform.User{ID: "u1", Email: "u@example.com", Role: platform.RoleUser}, nil
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refreshToken string) (*platform.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshSession, nil
}

type fakeNavigator struct {
	mu        sync.Mutex
	redirects []string
	notices   []string
}

func (f *fakeNavigator) Redirect(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects = append(f.redirects, path)
}

func (f *fakeNavigator) Notify(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func newTestManager(api *fakeAPI, nav *fakeNavigator) (*Manager, *tokenstore.MemoryStore) {
	store := tokenstore.NewMemory(nil)
	m := NewManager(ManagerOptions{
		Store:     store,
		API:       api,
		Navigator: nav,
	})
	return m, store
}

func TestExpirationWithoutRefreshTokenClearsWithoutProbe(t *testing.T) {
	api := &fakeAPI{}
	nav := &fakeNavigator{}
	m, store := newTestManager(api, nav)

	// Access token present, no refresh token was ever stored.
	require.NoError(t, store.StoreTokens("stale", "", time.Hour))

	m.HandleUnauthorized(context.Background(), "/public/abc")

	assert.Empty(t, store.AccessToken())
	assert.Equal(t, 0, api.getUserCalls, "must not re-probe when no refresh token ever existed")
	assert.Equal(t, 0, api.refreshCalls)
	assert.Equal(t, StatusUnauthenticated, m.Status())
}

func TestExpirationRedirectMatrix(t *testing.T) {
	tests := []struct {
		path         string
		wantRedirect string
	}{
		{"/auth", ""},
		{"/vendor/auth", ""},
		{"/third-party/x/callback", ""},
		{"/public/abc", ""},
		{"/dashboard/billing", "/auth?redirect=%2Fdashboard%2Fbilling"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			api := &fakeAPI{}
			nav := &fakeNavigator{}
			m, store := newTestManager(api, nav)
			require.NoError(t, store.StoreTokens("stale", "", time.Hour))

			m.HandleUnauthorized(context.Background(), tt.path)

			assert.Empty(t, store.AccessToken(), "tokens always cleared")
			if tt.wantRedirect == "" {
				assert.Empty(t, nav.redirects, "redirect must be suppressed on %q", tt.path)
				assert.Empty(t, nav.notices)
			} else {
				require.Len(t, nav.redirects, 1)
				assert.Equal(t, tt.wantRedirect, nav.redirects[0])
				require.Len(t, nav.notices, 1)
				assert.Contains(t, nav.notices[0], "session has expired")
			}
		})
	}
}

func TestExpirationVendorRedirect(t *testing.T) {
	api := &fakeAPI{getUserErr: &platform.SessionExpiredError{}, refreshErr: &platform.AuthError{}}
	nav := &fakeNavigator{}
	store := tokenstore.NewMemory(nil)
	m := NewManager(ManagerOptions{
		Store:     store,
		API:       api,
		Navigator: nav,
		Role:      func() platform.Role { return platform.RoleVendor },
	})
	require.NoError(t, store.StoreTokens("stale", "ref", time.Hour))

	m.HandleUnauthorized(context.Background(), "/dashboard")

	require.Len(t, nav.redirects, 1)
	assert.Equal(t, "/vendor/auth?redirect=%2Fdashboard", nav.redirects[0])
}

func TestExpirationRefreshSucceeds(t *testing.T) {
	api := &fakeAPI{refreshSession: &platform.Session{
		AccessToken:  "fresh",
		RefreshToken: "fresh-refresh",
		ExpiresIn:    3600,
	}}
	nav := &fakeNavigator{}
	m, store := newTestManager(api, nav)
	require.NoError(t, store.StoreTokens("stale", "old-refresh", time.Second))

	m.HandleUnauthorized(context.Background(), "/dashboard/billing")

	assert.Equal(t, "fresh", store.AccessToken())
	assert.Equal(t, "fresh-refresh", store.RefreshToken())
	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Empty(t, nav.redirects)
}

func TestExpirationFallsBackToCookieSession(t *testing.T) {
	// Refresh is rejected but the cookie probe succeeds: only local tokens
	// are cleared and no redirect happens.
	api := &fakeAPI{refreshErr: &platform.AuthError{Message: "refresh revoked"}}
	nav := &fakeNavigator{}
	m, store := newTestManager(api, nav)
	require.NoError(t, store.StoreTokens("stale", "dead-refresh", time.Hour))

	m.HandleUnauthorized(context.Background(), "/dashboard/billing")

	assert.Empty(t, store.AccessToken())
	assert.Equal(t, 1, api.getUserCalls)
	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Empty(t, nav.redirects)
	assert.Empty(t, nav.notices)
}

func TestExpirationKeepsTokensOnNetworkError(t *testing.T) {
	api := &fakeAPI{refreshErr: &platform.NetworkError{Op: "POST /auth/refresh", Err: context.DeadlineExceeded}}
	nav := &fakeNavigator{}
	m, store := newTestManager(api, nav)
	require.NoError(t, store.StoreTokens("maybe-valid", "ref", time.Hour))

	m.HandleUnauthorized(context.Background(), "/dashboard")

	assert.Equal(t, "maybe-valid", store.AccessToken(), "network failure must not clear tokens")
	assert.Equal(t, "ref", store.RefreshToken())
	assert.Empty(t, nav.redirects)
}

func TestValidateCookieProbeWithoutLocalToken(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestManager(api, &fakeNavigator{})

	m.Validate(context.Background())
	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Equal(t, 1, api.getUserCalls)

	api.getUserErr = &platform.AuthError{}
	m.Validate(context.Background())
	assert.Equal(t, StatusUnauthenticated, m.Status())
}

func TestValidateProactiveRefresh(t *testing.T) {
	api := &fakeAPI{refreshSession: &platform.Session{
		AccessToken:  "renewed",
		RefreshToken: "renewed-refresh",
		ExpiresIn:    3600,
	}}
	m, store := newTestManager(api, &fakeNavigator{})
	// 2 minutes left: inside the expiring-soon window, not yet expired.
	require.NoError(t, store.StoreTokens("old", "ref", 2*time.Minute))

	m.Validate(context.Background())

	assert.Equal(t, "renewed", store.AccessToken())
	assert.Equal(t, 1, api.refreshCalls)
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestStartStopTeardown(t *testing.T) {
	api := &fakeAPI{}
	m, store := newTestManager(api, &fakeNavigator{})
	require.NoError(t, store.StoreTokens("tok", "", 0))

	m.Start(context.Background())
	m.Stop()
	// Stop again must not panic or hang.
	m.Stop()
}

func TestStartLoadsPersistedTokenIntoSink(t *testing.T) {
	sink := &recordingSink{}
	store := tokenstore.NewMemory(nil)
	require.NoError(t, store.StoreTokens("persisted", "", 0))

	m := NewManager(ManagerOptions{Store: store, API: &fakeAPI{}, Sink: sink})
	m.Start(context.Background())
	defer m.Stop()

	assert.Equal(t, "persisted", sink.token)
}

type recordingSink struct{ token string }

func (r *recordingSink) SetToken(token string) { r.token = token }
