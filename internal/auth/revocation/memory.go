package revocation

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Denylist. Entries are lost on restart, which
// re-admits logged-out tokens until they expire naturally.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if !expiresAt.After(m.now()) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[jti] = expiresAt
	return nil
}

func (m *Memory) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, ok := m.entries[jti]
	return ok && exp.After(m.now()), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Prune drops entries whose token has expired and returns how many went.
func (m *Memory) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for jti, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, jti)
			n++
		}
	}
	return n
}

// Len returns the number of tracked entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
