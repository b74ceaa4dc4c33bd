package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Cache for tests and single-node deployments.
type Memory struct {
	mu       sync.Mutex
	revoked  map[string]time.Time // jti -> expiry
	counters map[string]*counter
	now      func() time.Time
}

type counter struct {
	count int64
	reset time.Time
}

func NewMemory() *Memory {
	return &Memory{
		revoked:  map[string]time.Time{},
		counters: map[string]*counter{},
		now:      time.Now,
	}
}

// NewMemoryAt injects a clock. Tests use this to step through windows.
func NewMemoryAt(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (m *Memory) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.revoked[jti] = m.now().Add(ttl)
	return nil
}

func (m *Memory) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	if !expiry.After(m.now()) {
		delete(m.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (m *Memory) CountAttempt(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.After(c.reset) {
		m.counters[key] = &counter{count: 1, reset: now.Add(window)}
		return 1, nil
	}

	c.count++
	return c.count, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
