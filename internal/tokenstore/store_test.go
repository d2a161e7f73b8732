package tokenstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	token string
	calls int
}

func (f *fakeSink) SetToken(token string) {
	f.token = token
	f.calls++
}

// clockStore is the subset of Store the shared tests need, plus the test
// clock hook both implementations provide.
type clockStore interface {
	Store
	SetClock(func() time.Time)
}

func newStores(t *testing.T, sink TokenSink) map[string]clockStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]clockStore{
		"memory": NewMemory(sink),
		"sqlite": NewSQLite(db, "test-scope", sink),
	}
}

func TestStoreAndReadBack(t *testing.T) {
	for name, store := range newStores(t, nil) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.StoreTokens("acc", "ref", time.Hour))
			assert.Equal(t, "acc", store.AccessToken())
			assert.Equal(t, "ref", store.RefreshToken())
		})
	}
}

func TestExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range newStores(t, nil) {
		t.Run(name, func(t *testing.T) {
			now := base
			store.SetClock(func() time.Time { return now })

			require.NoError(t, store.StoreTokens("acc", "ref", 3600*time.Second))
			assert.False(t, store.IsTokenExpired())
			assert.False(t, store.IsTokenExpiringSoon())

			now = base.Add(3595 * time.Second)
			assert.False(t, store.IsTokenExpired())
			assert.True(t, store.IsTokenExpiringSoon())

			now = base.Add(3601 * time.Second)
			assert.True(t, store.IsTokenExpired())
		})
	}
}

func TestNoExpiryTokensNeverExpire(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range newStores(t, nil) {
		t.Run(name, func(t *testing.T) {
			now := base
			store.SetClock(func() time.Time { return now })

			require.NoError(t, store.StoreTokens("acc", "ref", 0))

			now = base.AddDate(10, 0, 0)
			assert.False(t, store.IsTokenExpired())
			assert.False(t, store.IsTokenExpiringSoon())
		})
	}
}

func TestClearTokensIsIdempotent(t *testing.T) {
	for name, store := range newStores(t, nil) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.StoreTokens("acc", "ref", time.Hour))

			require.NoError(t, store.ClearTokens())
			assert.Empty(t, store.AccessToken())
			assert.Empty(t, store.RefreshToken())
			assert.False(t, store.IsTokenExpired())

			// Clearing again must leave the same empty state.
			require.NoError(t, store.ClearTokens())
			assert.Empty(t, store.AccessToken())
			assert.Empty(t, store.RefreshToken())
			assert.False(t, store.IsTokenExpired())
		})
	}
}

func TestSinkPropagation(t *testing.T) {
	sink := &fakeSink{}
	for name, store := range newStores(t, sink) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.StoreTokens("acc-"+name, "", 0))
			assert.Equal(t, "acc-"+name, sink.token)

			require.NoError(t, store.ClearTokens())
			assert.Empty(t, sink.token)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")
	db, err := Open(path)
	require.NoError(t, err)

	store := NewSQLite(db, "sid-1", nil)
	require.NoError(t, store.StoreTokens("persisted", "ref", time.Hour))
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	reopened := NewSQLite(db2, "sid-1", nil)
	assert.Equal(t, "persisted", reopened.AccessToken())
	assert.Equal(t, "ref", reopened.RefreshToken())

	// A different scope sees nothing.
	other := NewSQLite(db2, "sid-2", nil)
	assert.Empty(t, other.AccessToken())
}
