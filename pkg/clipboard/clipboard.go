// Package clipboard provides the backends the copy command writes to.
//
// # Backends
//
//   - [OSC52]: writes an OSC 52 escape sequence to the terminal, which most
//     modern terminals (and tmux, and SSH sessions) turn into a system
//     clipboard write. Write-only.
//   - [File]: a file in the user's state directory, with optional expiry.
//   - [Redis]: a key with TTL, shared by every process pointed at the same
//     server. Used by flowsketch serve so sessions can paste each other's
//     copies.
//   - [Memory]: in-process, for tests and single-process hosts.
//   - [Null]: accepts writes and discards them.
//
// Use [New] to build a backend from configuration.
package clipboard

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// Clipboard stores the most recently copied script.
type Clipboard interface {
	// Write replaces the clipboard contents.
	Write(ctx context.Context, text string) error

	// Read returns the clipboard contents. An empty clipboard yields a
	// NOT_FOUND error; write-only backends yield UNSUPPORTED.
	Read(ctx context.Context) (string, error)

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by [New].
const (
	BackendOSC52  = "osc52"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Backends lists the valid backend names.
var Backends = []string{BackendOSC52, BackendFile, BackendRedis, BackendMemory, BackendNone}

// DefaultRedisKey is the key used when Config.RedisKey is empty.
const DefaultRedisKey = "flowsketch:clipboard"

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Path      string        // File backend; defaults to DefaultPath()
	RedisAddr string        // Redis backend, host:port
	RedisKey  string        // Redis backend; defaults to DefaultRedisKey
	TTL       time.Duration // File and Redis backends; zero keeps forever
	Output    io.Writer     // OSC52 backend; defaults to os.Stderr
}

// New creates the backend named by cfg.Backend. An empty name selects OSC52.
func New(cfg Config) (Clipboard, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendOSC52:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		return NewOSC52(out), nil
	case BackendFile:
		path := cfg.Path
		if path == "" {
			p, err := DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFile(path, cfg.TTL), nil
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "redis clipboard requires an address")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedis(client, cfg.RedisKey, cfg.TTL), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendNone:
		return Null{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown clipboard backend %q", cfg.Backend)
	}
}

// DefaultPath returns $XDG_STATE_HOME/flowsketch/clipboard.json, falling
// back to ~/.local/state.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "flowsketch", "clipboard.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "locate home directory")
	}
	return filepath.Join(home, ".local", "state", "flowsketch", "clipboard.json"), nil
}

func empty() error {
	return errors.New(errors.ErrCodeNotFound, "clipboard is empty")
}
