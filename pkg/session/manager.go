package session

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// DefaultIdleTTL is how long a session may go untouched before Cleanup
// removes it.
const DefaultIdleTTL = 24 * time.Hour

// Manager keeps sessions in memory. It is safe for concurrent use.
type Manager struct {
	opts Options
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	seq      uint64
}

// NewManager creates a manager. Every session it creates uses opts.
// A non-positive ttl means DefaultIdleTTL.
func NewManager(opts Options, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Manager{
		opts:     opts,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a random UUID.
func (m *Manager) Create() (*Session, error) {
	s, err := New(uuid.NewString(), m.opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.seq++
	s.seq = m.seq
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.opts.Logger.Info("session created", "session", s.ID)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	if err := errors.ValidateSessionID(id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	return s, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	if err := errors.ValidateSessionID(id); err != nil {
		return err
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	m.opts.Logger.Info("session deleted", "session", id)
	return s.Close()
}

// List returns all sessions in creation order.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// Cleanup closes and removes sessions idle for longer than the TTL.
// It returns the number of sessions removed.
func (m *Manager) Cleanup() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		_ = s.Close()
		m.opts.Logger.Info("session expired", "session", s.ID)
	}
	return len(expired)
}

// RunCleanup calls Cleanup every interval until ctx is canceled.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
	return nil
}
