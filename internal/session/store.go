package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Role scopes what a session is allowed to register as on the broker.
type Role string

const (
	RoleCamera Role = "camera"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleCamera || r == RoleViewer
}

// Session is an authenticated principal's grant, bound to an opaque bearer token.
type Session struct {
	UserID    string
	Role      Role
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store issues, validates and revokes bearer tokens. Validate fails closed:
// unknown and expired tokens both resolve to nothing.
type Store interface {
	Issue(ctx context.Context, userID string, role Role, ttl time.Duration) (string, *Session, error)
	Validate(ctx context.Context, token string) (*Session, bool)
	Revoke(ctx context.Context, token string)
	Count(ctx context.Context) int
}

// NewToken returns a 64-char hex token from 32 random bytes.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MemoryStore is the default volatile backend. All access goes through a single
// mutex; the periodic sweep uses the same lock as Validate.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Issue(_ context.Context, userID string, role Role, ttl time.Duration) (string, *Session, error) {
	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}
	sess := &Session{
		UserID:    userID,
		Role:      role,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Lock()
	m.sessions[token] = sess
	m.mu.Unlock()
	return token, sess, nil
}

func (m *MemoryStore) Validate(_ context.Context, token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	if sess.Expired(m.now()) {
		// Lazy eviction, independent of the periodic sweep.
		delete(m.sessions, token)
		return nil, false
	}
	cp := *sess
	return &cp, true
}

func (m *MemoryStore) Revoke(_ context.Context, token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

func (m *MemoryStore) Count(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes every expired session and reports how many were evicted.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for token, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, token)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on the given interval until ctx is done. Expiry is
// already enforced lazily by Validate; the sweep only bounds memory.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
