package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAPIError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMsg  string
		wantCode string
	}{
		{
			name:    "standard envelope",
			body:    `{"error": "email already registered"}`,
			wantMsg: "email already registered",
		},
		{
			name:     "tool api envelope",
			body:     `{"error": true, "message": "insufficient credits", "code": "insufficient_credits"}`,
			wantMsg:  "insufficient credits",
			wantCode: "insufficient_credits",
		},
		{
			name:    "unstructured body",
			body:    `service unavailable`,
			wantMsg: "service unavailable",
		},
		{
			name:     "code with standard envelope",
			body:     `{"error": "token expired", "code": "token_expired"}`,
			wantMsg:  "token expired",
			wantCode: "token_expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, code := decodeAPIError([]byte(tt.body))
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestIsSessionInvalid(t *testing.T) {
	assert.True(t, isSessionInvalid("session_expired", ""))
	assert.True(t, isSessionInvalid("token_expired", ""))
	assert.True(t, isSessionInvalid("", "Session expired, please sign in"))
	assert.True(t, isSessionInvalid("", "invalid token"))

	// A resource-specific 401 is not a session problem.
	assert.False(t, isSessionInvalid("integration_not_connected", "Google Drive is not connected"))
	assert.False(t, isSessionInvalid("", "forbidden"))
}
