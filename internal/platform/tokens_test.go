package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPATPredicates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name         string
		expiresAt    *time.Time
		expired      bool
		expiringSoon bool
	}{
		{"no expiry", nil, false, false},
		{"already expired", at(-time.Hour), true, false},
		{"expires tomorrow", at(24 * time.Hour), false, true},
		{"expires in six days", at(6 * 24 * time.Hour), false, true},
		{"expires in eight days", at(8 * 24 * time.Hour), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, patExpired(tt.expiresAt, now))
			assert.Equal(t, tt.expiringSoon, patExpiringSoon(tt.expiresAt, now))
		})
	}
}

// patBackend fakes the PAT resource: the raw token value appears in create
// and regenerate responses only.
func patBackend(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		var req CreateTokenParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(PersonalAccessToken{
			ID:            "pat-1",
			Name:          req.Name,
			Token:         "mtp_pat_ffffeeee1234",
			LastFourChars: "1234",
			CreatedAt:     time.Now(),
		})
	})
	mux.HandleFunc("GET /auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tokens": []PersonalAccessToken{
				{ID: "pat-1", Name: "ci", LastFourChars: "1234"},
				{ID: "pat-2", Name: "zapier", LastFourChars: "9876"},
			},
		})
	})
	mux.HandleFunc("POST /auth/tokens/pat-1/regenerate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PersonalAccessToken{
			ID:            "pat-1",
			Name:          "ci",
			Token:         "mtp_pat_aaaabbbb5678",
			LastFourChars: "5678",
		})
	})
	mux.HandleFunc("DELETE /auth/tokens/pat-2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestPATRawValueExposure(t *testing.T) {
	client, _ := newTestClient(t, patBackend(t))
	ctx := context.Background()

	created, err := client.CreateToken(ctx, CreateTokenParams{Name: "ci"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token, "create is the one chance to capture the raw value")
	assert.Equal(t, "1234", created.LastFourChars)

	regenerated, err := client.RegenerateToken(ctx, "pat-1")
	require.NoError(t, err)
	assert.NotEmpty(t, regenerated.Token)
	assert.NotEqual(t, created.Token, regenerated.Token)

	listed, err := client.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, tok := range listed {
		assert.Empty(t, tok.Token, "list must never carry the raw value")
		assert.NotEmpty(t, tok.LastFourChars)
	}
}

func TestRevokeToken(t *testing.T) {
	client, _ := newTestClient(t, patBackend(t))
	require.NoError(t, client.RevokeToken(context.Background(), "pat-2"))
}
