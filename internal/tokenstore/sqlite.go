package tokenstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyTokenExpiry  = "token_expiry" // epoch millis
)

// Open opens (or creates) the credentials database at path and runs the
// schema migration.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open credentials db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			scope TEXT NOT NULL,
			key   TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credentials db: %w", err)
	}
	return db, nil
}

// SQLiteStore persists the token triple in a sqlite credentials table, keyed
// by scope so one database serves every portal session. Tokens survive
// portal restarts; the HttpOnly cookie path covers the rest.
type SQLiteStore struct {
	db    *sql.DB
	scope string
	sink  TokenSink

	mu  sync.Mutex
	now func() time.Time
}

// NewSQLite builds a store bound to one scope (portal session ID). A nil
// sink is allowed.
func NewSQLite(db *sql.DB, scope string, sink TokenSink) *SQLiteStore {
	return &SQLiteStore{db: db, scope: scope, sink: sink, now: time.Now}
}

// SetClock overrides the store's notion of now. Test hook.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *SQLiteStore) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *SQLiteStore) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value
	`, s.scope, key, value)
	return err
}

func (s *SQLiteStore) get(key string) string {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM credentials WHERE scope = ? AND key = ?`,
		s.scope, key,
	).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

func (s *SQLiteStore) StoreTokens(access, refresh string, expiresIn time.Duration) error {
	if err := s.set(keyAccessToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := s.set(keyRefreshToken, refresh); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	expiry := ""
	if expiresIn > 0 {
		expiry = strconv.FormatInt(s.clock()().Add(expiresIn).UnixMilli(), 10)
	}
	if err := s.set(keyTokenExpiry, expiry); err != nil {
		return fmt.Errorf("store token expiry: %w", err)
	}

	if s.sink != nil {
		s.sink.SetToken(access)
	}
	return nil
}

func (s *SQLiteStore) AccessToken() string {
	return s.get(keyAccessToken)
}

func (s *SQLiteStore) RefreshToken() string {
	return s.get(keyRefreshToken)
}

func (s *SQLiteStore) expiry() time.Time {
	raw := s.get(keyTokenExpiry)
	if raw == "" {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

func (s *SQLiteStore) IsTokenExpired() bool {
	return expired(s.expiry(), s.clock()())
}

func (s *SQLiteStore) IsTokenExpiringSoon() bool {
	return expiringSoon(s.expiry(), s.clock()())
}

func (s *SQLiteStore) ClearTokens() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE scope = ?`, s.scope); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	if s.sink != nil {
		s.sink.SetToken("")
	}
	return nil
}
