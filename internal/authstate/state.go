// Package authstate holds the reactive auth state for one signed-in client:
// the current user, the loading flag, and the imperative operations the UI
// layer calls. A State is constructed explicitly and passed by reference to
// whatever owns the UI tree; there is no package-level instance.
package authstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/mtp-io/toolportal/internal/lifecycle"
	"github.com/mtp-io/toolportal/internal/platform"
	"github.com/mtp-io/toolportal/internal/tokenstore"
)

// Notifier is the side channel for user-facing messages. The portal turns
// these into flash notices; tests record them.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// nopNotifier swallows notifications.
type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// Options wires a State's collaborators.
type Options struct {
	Client   *platform.Client
	Store    tokenstore.Store
	Manager  *lifecycle.Manager
	Notifier Notifier
	// Origin is this portal instance's public origin, used to build the
	// external redirect URL carried through OAuth state.
	Origin string
	Logger *logrus.Entry
}

// State is the auth context for one client.
type State struct {
	client   *platform.Client
	store    tokenstore.Store
	manager  *lifecycle.Manager
	notifier Notifier
	origin   string
	validate *validator.Validate
	log      *logrus.Entry

	// mu guards user and loading: they are written on request goroutines
	// and read concurrently by other requests and by the lifecycle
	// manager's role callback.
	mu      sync.RWMutex
	user    *platform.User
	loading bool
}

// New builds a State. Call Init before use and Teardown when done.
func New(opts Options) *State {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &State{
		client:   opts.Client,
		store:    opts.Store,
		manager:  opts.Manager,
		notifier: notifier,
		origin:   opts.Origin,
		validate: validator.New(),
		log:      log,
	}
}

// User returns the current user, or nil when signed out.
func (s *State) User() *platform.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading reports whether initialization is still in flight.
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *State) setUser(user *platform.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *State) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// Client exposes the underlying platform client for API calls that sit
// outside the auth subsystem (tools, credits, support).
func (s *State) Client() *platform.Client { return s.client }

// Init runs the cookie-first startup probe and starts the lifecycle manager.
// A 401-class failure clears any stale local tokens; a network failure
// leaves them alone, since they may still be valid once connectivity
// returns.
func (s *State) Init(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.GetUser(platform.WithoutUnauthorizedHook(ctx))
	switch {
	case err == nil:
		s.setUser(user)
	case isUnauthenticated(err):
		if clearErr := s.store.ClearTokens(); clearErr != nil {
			s.log.WithError(clearErr).Error("clearing stale tokens failed")
		}
	default:
		s.log.WithError(err).Warn("startup user probe failed, keeping local tokens")
	}

	if s.manager != nil {
		s.manager.Start(ctx)
	}
}

// Teardown stops the lifecycle manager's periodic timer.
func (s *State) Teardown() {
	if s.manager != nil {
		s.manager.Stop()
	}
}

func isUnauthenticated(err error) bool {
	var authErr *platform.AuthError
	var sessErr *platform.SessionExpiredError
	return errors.As(err, &authErr) || errors.As(err, &sessErr)
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// Login signs in with email and password. Failures are surfaced through the
// notifier and returned so callers can chain on them.
func (s *State) Login(ctx context.Context, email, password string, role platform.Role) error {
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		s.notifier.Error("Please enter a valid email address and password.")
		return &platform.ValidationError{Message: err.Error()}
	}

	sess, err := s.client.SignIn(ctx, email, password, role)
	if err != nil {
		s.notifier.Error(userMessage(err, "Sign-in failed. Please try again."))
		return err
	}
	s.adoptSession(sess)
	return nil
}

// SignupParams carries the registration form.
type SignupParams struct {
	Email        string `validate:"required,email"`
	Password     string `validate:"required,min=8"`
	Name         string `validate:"required"`
	Role         platform.Role
	ReferralCode string
}

// Signup registers a new account and signs it in.
func (s *State) Signup(ctx context.Context, params SignupParams) error {
	if err := s.validate.Struct(params); err != nil {
		s.notifier.Error("Please fill in all required fields.")
		return &platform.ValidationError{Message: err.Error()}
	}

	sess, err := s.client.SignUp(ctx, params.Email, params.Password, platform.SignUpProfile{
		Name:         params.Name,
		Role:         params.Role,
		ReferralCode: params.ReferralCode,
	})
	if err != nil {
		s.notifier.Error(userMessage(err, "Registration failed. Please try again."))
		return err
	}
	s.adoptSession(sess)
	return nil
}

// Logout signs out. Local state is cleared unconditionally, even when the
// server call fails.
func (s *State) Logout(ctx context.Context) {
	if err := s.client.SignOut(ctx); err != nil {
		// SignOut is best-effort and never returns an error today; the
		// cleanup below must run regardless.
		s.log.WithError(err).Warn("server sign-out failed")
	}
	if err := s.store.ClearTokens(); err != nil {
		s.log.WithError(err).Error("clearing tokens on logout failed")
	}
	s.setUser(nil)
}

// OAuthLoginOptions tune the OAuth state payload.
type OAuthLoginOptions struct {
	ReferralCode string
	RedirectPath string
}

// OAuthLogin builds the state payload and asks the backend for the
// provider's authorization URL. The state travels entirely through the OAuth
// state parameter; nothing is stashed locally.
func (s *State) OAuthLogin(ctx context.Context, provider platform.Provider, opts OAuthLoginOptions) (string, error) {
	state := platform.OAuthState{
		Role:                platform.RoleUser,
		ReferralCode:        opts.ReferralCode,
		RedirectPath:        opts.RedirectPath,
		ExternalRedirectURL: s.origin + "/dashboard",
		Timestamp:           time.Now().UnixMilli(),
	}
	authURL, err := s.client.InitiateOAuth(ctx, provider, state)
	if err != nil {
		s.notifier.Error(userMessage(err, "Could not start the sign-in flow. Please try again."))
		return "", err
	}
	return authURL, nil
}

// CompleteOAuth finishes the callback leg of the OAuth flow.
func (s *State) CompleteOAuth(ctx context.Context, provider platform.Provider, params platform.OAuthCallbackParams) error {
	sess, err := s.client.HandleOAuthCallback(ctx, provider, params)
	if err != nil {
		s.notifier.Error(userMessage(err, "Sign-in with the provider failed."))
		return err
	}
	s.adoptSession(sess)
	return nil
}

// UpdateUser applies a partial profile update.
func (s *State) UpdateUser(ctx context.Context, update platform.ProfileUpdate) error {
	user, err := s.client.UpdateProfile(ctx, update)
	if err != nil {
		s.notifier.Error(userMessage(err, "Saving your profile failed."))
		return err
	}
	s.setUser(user)
	s.notifier.Success("Profile updated.")
	return nil
}

// RefreshUser re-fetches the current user, picking up credit and purchase
// changes made elsewhere.
func (s *State) RefreshUser(ctx context.Context) error {
	user, err := s.client.GetUser(ctx)
	if err != nil {
		return err
	}
	s.setUser(user)
	return nil
}

func (s *State) adoptSession(sess *platform.Session) {
	err := s.store.StoreTokens(sess.AccessToken, sess.RefreshToken, time.Duration(sess.ExpiresIn)*time.Second)
	if err != nil {
		s.log.WithError(err).Error("persisting session tokens failed")
	}
	s.setUser(sess.User)
}

// userMessage picks the user-facing text for an error: typed errors carry
// their own message, anything else gets the fallback.
func userMessage(err error, fallback string) string {
	var authErr *platform.AuthError
	var oauthErr *platform.OAuthError
	var valErr *platform.ValidationError
	switch {
	case errors.As(err, &authErr):
		return authErr.Error()
	case errors.As(err, &oauthErr):
		return oauthErr.Error()
	case errors.As(err, &valErr):
		return valErr.Error()
	default:
		return fallback
	}
}
