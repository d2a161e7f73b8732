// Package tokenstore persists the client-side credential triple: access
// token, refresh token, and absolute expiry. It is the only shared mutable
// resource in the auth subsystem; writes are last-writer-wins.
package tokenstore

import "time"

// expiringSoonWindow is how close to expiry a token counts as "expiring
// soon", which triggers proactive refresh.
const expiringSoonWindow = 5 * time.Minute

// TokenSink receives the access token whenever it changes, so the outgoing
// request configuration always matches what is persisted. The platform
// client satisfies this.
type TokenSink interface {
	SetToken(token string)
}

// Store owns the persisted token triple. Implementations perform no network
// calls; their only side effects are persistence and sink propagation.
type Store interface {
	// StoreTokens persists the triple. A zero expiresIn means the token
	// carries no expiry and is treated as non-expiring. An empty refresh
	// token means none was issued.
	StoreTokens(access, refresh string, expiresIn time.Duration) error
	AccessToken() string
	RefreshToken() string
	// IsTokenExpired is false when no expiry is recorded.
	IsTokenExpired() bool
	// IsTokenExpiringSoon is true when the recorded expiry is within five
	// minutes.
	IsTokenExpiringSoon() bool
	// ClearTokens removes all three fields and unsets the sink's token.
	// Clearing an already-empty store is a no-op.
	ClearTokens() error
}

func expired(expiry time.Time, now time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return now.After(expiry)
}

func expiringSoon(expiry time.Time, now time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return now.Add(expiringSoonWindow).After(expiry)
}
