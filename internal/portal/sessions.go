package portal

import (
	"sync"
	"time"

	"github.com/mtp-io/toolportal/internal/authstate"
)

// session is the server-side state for one browser session: its auth state,
// pending navigation from the lifecycle manager, and undelivered flash
// notices. It implements both lifecycle.Navigator and authstate.Notifier.
type session struct {
	id string

	mu              sync.Mutex
	notices         []string
	pendingRedirect string
	currentPath     string
	lastSeen        time.Time

	// auth and teardown are set right after construction: the auth state
	// and the lifecycle manager both close over the session, so the
	// session must exist first.
	auth     *authstate.State
	teardown func()
}

// Redirect implements lifecycle.Navigator. The portal cannot push a redirect
// into the browser from a background goroutine, so it is parked here and
// issued by the session middleware on the next request.
func (s *session) Redirect(path string) {
	s.mu.Lock()
	s.pendingRedirect = path
	s.mu.Unlock()
}

// Notify implements lifecycle.Navigator.
func (s *session) Notify(message string) {
	s.mu.Lock()
	s.notices = append(s.notices, message)
	s.mu.Unlock()
}

// Success implements authstate.Notifier.
func (s *session) Success(message string) { s.Notify(message) }

// Error implements authstate.Notifier.
func (s *session) Error(message string) { s.Notify(message) }

// touch records activity and the route the user is on, which the lifecycle
// manager consults for its redirect decision.
func (s *session) touch(path string) {
	s.mu.Lock()
	s.currentPath = path
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// CurrentPath reports the route the user was last seen on.
func (s *session) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPath == "" {
		return "/"
	}
	return s.currentPath
}

// takeRedirect consumes the pending redirect, if any.
func (s *session) takeRedirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.pendingRedirect
	s.pendingRedirect = ""
	return target
}

// takeNotices consumes the undelivered flash notices.
func (s *session) takeNotices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	notices := s.notices
	s.notices = nil
	return notices
}

func (s *session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// sessionRegistry maps session IDs to live sessions.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) get(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) put(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *sessionRegistry) remove(id string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	delete(r.sessions, id)
	return s
}

// evictIdle removes and returns sessions with no activity since cutoff so
// the caller can tear them down.
func (r *sessionRegistry) evictIdle(cutoff time.Time) []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []*session
	for id, s := range r.sessions {
		if s.idle(cutoff) {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	return evicted
}
