// Package cache stores rendered diagram artifacts.
//
// Rendering a diagram through Graphviz is the most expensive thing
// flowsketch does, and identical diagrams render to identical bytes, so
// artifacts are keyed by a hash of their input (see [Key]).
//
// # Backends
//
//   - [FileCache]: one file per entry under the user cache directory. The
//     default for the CLI, so repeated exports of an unchanged script are
//     instant.
//   - [Memory]: bounded in-process LRU. The default for flowsketch serve.
//   - [Redis]: shared by every server instance pointed at the same Redis.
//   - [NullCache]: stores nothing.
//
// [Memo] combines a backend with request coalescing so concurrent renders
// of the same diagram run once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value and whether it was found. Expired entries are
	// reported as missing.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data. A non-positive ttl keeps the entry until evicted.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by [New].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Backends lists the valid backend names.
var Backends = []string{BackendFile, BackendMemory, BackendRedis, BackendNone}

// DefaultMaxEntries bounds the memory backend when Config.MaxEntries is zero.
const DefaultMaxEntries = 256

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Dir        string // File backend; defaults to DefaultDir()
	RedisAddr  string // Redis backend, host:port
	Prefix     string // Key prefix, useful on a shared Redis
	MaxEntries int    // Memory backend
}

// New creates the backend named by cfg.Backend. An empty name selects the
// memory backend.
func New(cfg Config) (Cache, error) {
	var c Cache
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		c = NewMemory(cfg.MaxEntries)
	case BackendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		c = fc
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "redis cache requires an address")
		}
		c = NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	case BackendNone:
		return NullCache{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", cfg.Backend)
	}
	if cfg.Prefix != "" {
		c = Scoped(c, cfg.Prefix)
	}
	return c, nil
}

// DefaultDir returns $XDG_CACHE_HOME/flowsketch, falling back to
// os.UserCacheDir.
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "flowsketch"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "locate cache directory")
	}
	return filepath.Join(dir, "flowsketch"), nil
}

// Key derives a cache key "kind:sha256(parts)". Parts are separated so
// ("ab", "c") and ("a", "bc") differ.
func Key(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// scoped prefixes every key of an inner cache.
type scoped struct {
	inner  Cache
	prefix string
}

// Scoped returns a view of c that prepends prefix to every key.
func Scoped(c Cache, prefix string) Cache {
	return &scoped{inner: c, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Close() error { return s.inner.Close() }

// NullCache stores nothing.
type NullCache struct{}

func (NullCache) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }

var (
	_ Cache = NullCache{}
	_ Cache = (*scoped)(nil)
)
