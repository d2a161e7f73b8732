package tokenstore

import (
	"sync"
	"time"
)

// MemoryStore keeps the token triple in process memory. The portal uses one
// per browser session; tests use it with a fake clock.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
	expiry  time.Time

	sink TokenSink
	now  func() time.Time
}

// NewMemory builds an in-memory store propagating to sink. A nil sink is
// allowed.
func NewMemory(sink TokenSink) *MemoryStore {
	return &MemoryStore{sink: sink, now: time.Now}
}

// SetClock overrides the store's notion of now. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) StoreTokens(access, refresh string, expiresIn time.Duration) error {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	if expiresIn > 0 {
		s.expiry = s.now().Add(expiresIn)
	} else {
		s.expiry = time.Time{}
	}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.SetToken(access)
	}
	return nil
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *MemoryStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryStore) IsTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expired(s.expiry, s.now())
}

func (s *MemoryStore) IsTokenExpiringSoon() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return expiringSoon(s.expiry, s.now())
}

func (s *MemoryStore) ClearTokens() error {
	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.expiry = time.Time{}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.SetToken("")
	}
	return nil
}
