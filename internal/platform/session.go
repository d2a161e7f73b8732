package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignUpProfile carries the optional profile data collected at registration.
type SignUpProfile struct {
	Name         string `json:"name,omitempty"`
	Role         Role   `json:"role,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SignUpProfile
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignIn authenticates with email and password. The requested role is passed
// through so the backend can route vendor accounts; when the backend omits
// the role on the returned user it defaults to the requested one.
func (c *Client) SignIn(ctx context.Context, email, password string, role Role) (*Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, "/auth/login", signInRequest{Email: email, Password: password, Role: role}, &sess)
	if err != nil {
		return nil, err
	}
	c.normalizeSession(&sess, role)
	return &sess, nil
}

// SignUp registers a new account. New users start unonboarded.
func (c *Client) SignUp(ctx context.Context, email, password string, profile SignUpProfile) (*Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, "/auth/register", signUpRequest{Email: email, Password: password, SignUpProfile: profile}, &sess)
	if err != nil {
		return nil, err
	}
	c.normalizeSession(&sess, profile.Role)
	return &sess, nil
}

// SignOut tells the backend to drop the session. It is best-effort: local
// state must be clearable regardless of backend reachability, so server
// errors are logged and swallowed.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(WithoutUnauthorizedHook(ctx), http.MethodPost, "/auth/logout", nil, nil); err != nil {
		c.log.WithError(err).Warn("sign-out call failed, continuing with local cleanup")
	}
	return nil
}

// GetUser fetches the account behind the current credentials. It is the
// canonical "am I logged in" probe: cookie-only sessions answer it too.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshToken exchanges a refresh token for a new session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	var sess Session
	err := c.do(WithoutUnauthorizedHook(ctx), http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &sess)
	if err != nil {
		return nil, err
	}
	c.normalizeSession(&sess, "")
	return &sess, nil
}

// ProfileUpdate is a partial user update; nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Onboarded *bool   `json:"onboarded,omitempty"`
}

// UpdateProfile applies a partial profile update and returns the new user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPatch, "/auth/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// normalizeSession papers over backend response variations: a missing
// expires_in is recovered from the JWT exp claim when the access token is a
// JWT, and a missing user role falls back to the requested one.
func (c *Client) normalizeSession(sess *Session, requestedRole Role) {
	if sess.ExpiresIn == 0 && sess.AccessToken != "" {
		if exp := jwtExpiry(sess.AccessToken); !exp.IsZero() {
			if d := time.Until(exp); d > 0 {
				sess.ExpiresIn = int64(d / time.Second)
			}
		}
	}
	if sess.User != nil && sess.User.Role == "" && requestedRole != "" {
		sess.User.Role = requestedRole
	}
}

// jwtExpiry extracts the exp claim from a JWT access token without verifying
// the signature. Verification is the backend's job; we only need the expiry
// for proactive refresh scheduling.
func jwtExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
