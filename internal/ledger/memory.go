package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Ledger for tests and single-node deployments.
// Expired entries are dropped lazily on access; Sweep reclaims the rest.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	entries     map[string]time.Time
	generations map[string]int64
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the time source (useful for tests).
func WithMemoryClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:         time.Now,
		entries:     map[string]time.Time{},
		generations: map[string]int64{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Ledger = (*Memory)(nil)

// Put records tokenID as revoked for ttl.
func (m *Memory) Put(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return errors.New("ledger: token id is required")
	}
	if ttl <= 0 {
		// Already past its natural expiry; nothing to shadow.
		return nil
	}
	deadline := m.now().Add(ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[tokenID]; !ok || deadline.After(existing) {
		m.entries[tokenID] = deadline
	}
	return nil
}

// PutIfAbsent records tokenID unless a live entry exists; reports whether
// this call won.
func (m *Memory) PutIfAbsent(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, errors.New("ledger: token id is required")
	}
	if ttl <= 0 {
		return false, errors.New("ledger: ttl must be positive")
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if deadline, ok := m.entries[tokenID]; ok && deadline.After(now) {
		return false, nil
	}
	m.entries[tokenID] = now.Add(ttl)
	return true, nil
}

// Contains reports whether a live entry exists for tokenID.
func (m *Memory) Contains(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	deadline, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !deadline.After(now) {
		delete(m.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// BumpGeneration increments and returns the subject's generation counter.
func (m *Memory) BumpGeneration(ctx context.Context, subjectID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, errors.New("ledger: subject id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[subjectID]++
	return m.generations[subjectID], nil
}

// CurrentGeneration returns the subject's generation counter, zero if the
// subject was never bumped.
func (m *Memory) CurrentGeneration(ctx context.Context, subjectID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[subjectID], nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, deadline := range m.entries {
		if !deadline.After(now) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}
