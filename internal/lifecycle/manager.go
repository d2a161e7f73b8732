// Package lifecycle orchestrates the client-side token lifecycle: loading
// persisted credentials at startup, periodic validation, proactive refresh,
// cookie-auth fallback, and forced sign-out with the redirect suppression
// rules on irrecoverable expiry.
package lifecycle

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mtp-io/toolportal/internal/platform"
	"github.com/mtp-io/toolportal/internal/tokenstore"
)

// DefaultValidateInterval is how often the background check runs.
const DefaultValidateInterval = 5 * time.Minute

// Status is the manager's place in its lifecycle state machine.
type Status int

const (
	StatusUninitialized Status = iota
	StatusValidating
	StatusAuthenticated
	StatusUnauthenticated
)

// SessionAPI is the slice of the platform client the manager needs.
type SessionAPI interface {
	GetUser(ctx context.Context) (*platform.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*platform.Session, error)
}

// Navigator receives the manager's navigation and notice side effects. The
// portal supplies the real one; tests supply a recorder.
type Navigator interface {
	Redirect(path string)
	Notify(message string)
}

// ManagerOptions wires a Manager's collaborators.
type ManagerOptions struct {
	Store     tokenstore.Store
	API       SessionAPI
	Sink      tokenstore.TokenSink
	Navigator Navigator
	// Role reports the current user's role for the role-appropriate
	// sign-in redirect. Nil defaults to RoleUser.
	Role func() platform.Role
	// CurrentPath reports the route the user is on, consulted when the
	// periodic check (rather than an in-flight 401) detects expiry.
	CurrentPath func() string
	Interval    time.Duration
	Logger      *logrus.Entry
}

// Manager runs the token lifecycle for one client process.
type Manager struct {
	store       tokenstore.Store
	api         SessionAPI
	sink        tokenstore.TokenSink
	nav         Navigator
	role        func() platform.Role
	currentPath func() string
	interval    time.Duration
	log         *logrus.Entry

	// group collapses concurrent 401s into a single expiration-handling
	// attempt, so parallel failures don't trigger parallel refresh calls.
	group singleflight.Group

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a Manager in the uninitialized state.
func NewManager(opts ManagerOptions) *Manager {
	role := opts.Role
	if role == nil {
		role = func() platform.Role { return platform.RoleUser }
	}
	currentPath := opts.CurrentPath
	if currentPath == nil {
		currentPath = func() string { return "/" }
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultValidateInterval
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		store:       opts.Store,
		api:         opts.API,
		sink:        opts.Sink,
		nav:         opts.Navigator,
		role:        role,
		currentPath: currentPath,
		interval:    interval,
		log:         log,
		status:      StatusUninitialized,
	}
}

// Status returns the manager's current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Start loads any persisted access token into the outgoing-request
// configuration and begins periodic validation. Calling Start on a running
// manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.SetToken(m.store.AccessToken())
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Validate(runCtx)
			}
		}
	}()
}

// Stop cancels the periodic check and waits for it to finish. Part of the
// documented teardown on logout/unmount; safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Validate performs one validation pass: cookie probe when no local token
// exists, expiration handling when the token is expired, proactive refresh
// when it is about to expire.
func (m *Manager) Validate(ctx context.Context) {
	m.setStatus(StatusValidating)

	access := m.store.AccessToken()
	if access == "" {
		if _, err := m.api.GetUser(platform.WithoutUnauthorizedHook(ctx)); err == nil {
			m.setStatus(StatusAuthenticated)
		} else {
			m.setStatus(StatusUnauthenticated)
		}
		return
	}

	if m.store.IsTokenExpired() {
		m.HandleUnauthorized(ctx, m.currentPath())
		return
	}

	if m.store.IsTokenExpiringSoon() {
		m.proactiveRefresh(ctx)
		return
	}

	m.setStatus(StatusAuthenticated)
}

// proactiveRefresh tries to renew an expiring token before it dies: refresh
// first, then cookie probe, then a soft warning.
func (m *Manager) proactiveRefresh(ctx context.Context) {
	if refresh := m.store.RefreshToken(); refresh != "" {
		sess, err := m.api.RefreshToken(ctx, refresh)
		if err == nil {
			m.storeSession(sess)
			m.setStatus(StatusAuthenticated)
			return
		}
		m.log.WithError(err).Warn("proactive token refresh failed")
	}

	if _, err := m.api.GetUser(platform.WithoutUnauthorizedHook(ctx)); err == nil {
		m.setStatus(StatusAuthenticated)
		return
	}

	m.setStatus(StatusAuthenticated)
	if m.nav != nil {
		m.nav.Notify("Your session will expire soon. Please sign in again to avoid interruption.")
	}
}

// HandleUnauthorized runs expiration handling for a session-invalid 401 seen
// anywhere in the app, or for an expired token found by the periodic check.
// Concurrent callers share one attempt.
func (m *Manager) HandleUnauthorized(ctx context.Context, currentPath string) {
	m.group.Do("expiration", func() (interface{}, error) {
		m.handleExpiration(ctx, currentPath)
		return nil, nil
	})
}

func (m *Manager) handleExpiration(ctx context.Context, currentPath string) {
	refresh := m.store.RefreshToken()

	if refresh != "" {
		sess, err := m.api.RefreshToken(ctx, refresh)
		if err == nil {
			m.storeSession(sess)
			m.setStatus(StatusAuthenticated)
			return
		}
		var netErr *platform.NetworkError
		if errors.As(err, &netErr) {
			// No verdict on the credentials; keep them for when
			// connectivity returns.
			m.log.WithError(err).Warn("token refresh unreachable, keeping tokens")
			return
		}
		m.log.WithError(err).Info("token refresh rejected")

		// A refresh token existed, so the cookie session may still be
		// valid. Probing only in that case keeps "no credentials" and
		// "re-check credentials" from chasing each other forever.
		if _, err := m.api.GetUser(platform.WithoutUnauthorizedHook(ctx)); err == nil {
			if err := m.store.ClearTokens(); err != nil {
				m.log.WithError(err).Error("clearing local tokens failed")
			}
			m.setStatus(StatusAuthenticated)
			return
		} else if errors.As(err, &netErr) {
			m.log.WithError(err).Warn("cookie probe unreachable, keeping tokens")
			return
		}
	}

	if err := m.store.ClearTokens(); err != nil {
		m.log.WithError(err).Error("clearing local tokens failed")
	}
	m.setStatus(StatusUnauthenticated)

	if ClassifyPath(currentPath) != PageDashboard {
		// The user is on an auth, callback, or public page; redirecting
		// would either loop or serve no purpose.
		return
	}
	if m.nav != nil {
		target := SignInPath(m.role()) + "?redirect=" + url.QueryEscape(currentPath)
		m.nav.Redirect(target)
		m.nav.Notify("Your session has expired. Please sign in again.")
	}
}

func (m *Manager) storeSession(sess *platform.Session) {
	err := m.store.StoreTokens(sess.AccessToken, sess.RefreshToken, time.Duration(sess.ExpiresIn)*time.Second)
	if err != nil {
		m.log.WithError(err).Error("persisting refreshed tokens failed")
	}
}
