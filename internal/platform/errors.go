package platform

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AuthError means the backend rejected the supplied credentials. The form
// stays editable and no local state is mutated.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "invalid credentials"
	}
	return e.Message
}

// SessionExpiredError is a 401 with token/session-invalid semantics, as
// opposed to a resource-specific 401 such as "integration not connected".
// It is what triggers the token lifecycle expiration flow.
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	if e.Message == "" {
		return "session expired"
	}
	return e.Message
}

// OAuthError is returned when the provider reported an error on callback, or
// when the callback is missing its code or state. It is never silently
// retried.
type OAuthError struct {
	Provider    Provider
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth %s: %s (%s)", e.Provider, e.Description, e.Code)
	}
	return fmt.Sprintf("oauth %s: %s", e.Provider, e.Code)
}

// NetworkError wraps a transport-level failure where no HTTP response was
// received. Existing tokens must not be cleared on a NetworkError: they may
// still be valid once connectivity returns.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError marks malformed input (for example an undecodable OAuth
// state payload). Fatal for the current operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// apiErrorEnvelope accommodates the two error-shape conventions the backend
// uses: {"error": "message"} and {"error": true, "message": "message"}.
// The Error field is kept raw so we can tell which convention we got.
type apiErrorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// decodeAPIError normalizes a backend error body into a single message plus
// the machine-readable code when one is present.
func decodeAPIError(body []byte) (message, code string) {
	var env apiErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body)), ""
	}

	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil && s != "" {
		return s, env.Code
	}
	if env.Message != "" {
		return env.Message, env.Code
	}
	return strings.TrimSpace(string(body)), env.Code
}

// sessionInvalidCodes are the backend codes that mean the bearer token or
// cookie session itself is no longer usable.
var sessionInvalidCodes = map[string]bool{
	"session_expired": true,
	"token_expired":   true,
	"token_invalid":   true,
}

func isSessionInvalid(code, message string) bool {
	if sessionInvalidCodes[code] {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "session expired") ||
		strings.Contains(m, "token expired") ||
		strings.Contains(m, "invalid token")
}
