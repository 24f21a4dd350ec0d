package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Memo computes values through a cache. Concurrent calls for the same key
// share one computation.
type Memo struct {
	cache  Cache
	ttl    time.Duration
	logger *log.Logger
	group  singleflight.Group

	hits, misses atomic.Uint64
}

// NewMemo creates a memo over c. Entries are stored with ttl; a nil logger
// means log.Default().
func NewMemo(c Cache, ttl time.Duration, logger *log.Logger) *Memo {
	if c == nil {
		c = NullCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Memo{cache: c, ttl: ttl, logger: logger}
}

// Do returns the cached value for key, or calls fn and stores its result.
// Cache failures are logged and fall through to fn; errors from fn are
// returned and not cached.
func (m *Memo) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if data, ok, err := m.cache.Get(ctx, key); err != nil {
		m.logger.Warn("cache read failed", "key", key, "err", err)
	} else if ok {
		m.hits.Add(1)
		return data, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		m.misses.Add(1)
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := m.cache.Set(ctx, key, data, m.ttl); err != nil {
			m.logger.Warn("cache write failed", "key", key, "err", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Stats returns the number of cache hits and computations so far.
func (m *Memo) Stats() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}

// Close closes the underlying cache.
func (m *Memo) Close() error { return m.cache.Close() }
