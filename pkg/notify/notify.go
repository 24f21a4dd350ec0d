// Package notify publishes diagram snapshots to NATS as a session changes.
//
// A [NATSSink] subscribes to a [diagram.Store]. Every change marks the sink
// dirty; a single worker goroutine then snapshots the store and publishes
// the JSON encoding (the same format as [io.WriteJSON]) to
//
//	<prefix>.<session>.graph
//
// Bursts of changes, such as the per-tick writes of a force layout, are
// coalesced: subscribers always receive the latest graph, not every
// intermediate one.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	fsio "github.com/matzehuels/flowsketch/pkg/io"
)

// Header names set on every published message.
const (
	HeaderVersion = "Flowsketch-Version"
	HeaderSession = "Flowsketch-Session"
	HeaderChange  = "Flowsketch-Change"
)

// Publisher defines the interface for publishing messages to NATS.
// *nats.Conn satisfies it.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Config configures a [NATSSink].
type Config struct {
	// SubjectPrefix is the first subject token. Defaults to "flowsketch".
	SubjectPrefix string
	// Session identifies the diagram in the subject and headers.
	Session string
	// MaxRetries is the number of retries for failed publishes. Defaults to 3.
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between retries.
	// Defaults to one second.
	RetryDelay time.Duration
	// Headers are added to every message.
	Headers nats.Header
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// NATSSink publishes store snapshots to NATS.
type NATSSink struct {
	config    Config
	publisher Publisher
	store     *diagram.Store
	logger    *log.Logger
	subject   string

	dirty   chan struct{}
	mu      sync.Mutex
	pending diagram.Change
}

// Connect dials a NATS server for use with [New].
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("flowsketch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// New creates a sink publishing over an existing NATS connection.
func New(nc *nats.Conn, store *diagram.Store, config Config) (*NATSSink, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	return NewWithPublisher(nc, store, config)
}

// NewWithPublisher creates a sink with a custom publisher.
// This constructor is useful for testing with mock publishers.
func NewWithPublisher(publisher Publisher, store *diagram.Store, config Config) (*NATSSink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "flowsketch"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &NATSSink{
		config:    config,
		publisher: publisher,
		store:     store,
		logger:    config.Logger,
		subject:   Subject(config.SubjectPrefix, config.Session),
		dirty:     make(chan struct{}, 1),
	}, nil
}

// Subject returns the subject snapshots of session are published on.
func Subject(prefix, session string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "."); p != "" {
		parts = append(parts, p)
	}
	if s := token(session); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(append(parts, "graph"), ".")
}

// token replaces characters that are not allowed inside a subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Run subscribes to the store and publishes until ctx is canceled.
// The current graph is published once on start.
func (s *NATSSink) Run(ctx context.Context) error {
	unsubscribe := s.store.Subscribe(s.mark)
	defer unsubscribe()

	s.logger.Debug("nats sink started", "subject", s.subject)
	s.mark(diagram.Change{Kind: diagram.NodesChanged, Version: s.store.Version()})

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("nats sink stopped", "subject", s.subject)
			return nil
		case <-s.dirty:
		}

		s.mu.Lock()
		change := s.pending
		s.mu.Unlock()

		if err := s.publish(ctx, change); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A later change will publish a newer snapshot.
			s.logger.Error("publish snapshot", "subject", s.subject, "version", change.Version, "err", err)
		}
	}
}

// mark runs on the store writer's goroutine and never blocks.
func (s *NATSSink) mark(c diagram.Change) {
	s.mu.Lock()
	if c.Version >= s.pending.Version {
		s.pending = c
	}
	s.mu.Unlock()

	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *NATSSink) publish(ctx context.Context, change diagram.Change) error {
	g, version := s.store.VersionedSnapshot()
	var buf bytes.Buffer
	if err := fsio.WriteJSON(g, &buf); err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: s.subject,
		Data:    buf.Bytes(),
		Header:  make(nats.Header),
	}
	maps.Copy(msg.Header, s.config.Headers)
	msg.Header.Set(HeaderVersion, strconv.FormatUint(version, 10))
	msg.Header.Set(HeaderChange, change.Kind.String())
	if s.config.Session != "" {
		msg.Header.Set(HeaderSession, s.config.Session)
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.config.RetryDelay):
			}
		}

		err := s.publisher.PublishMsg(msg)
		if err == nil {
			s.logger.Debug("published snapshot", "subject", s.subject, "version", version)
			return nil
		}
		lastErr = err
		s.logger.Warn("publish failed, retrying",
			"attempt", attempt+1,
			"max_retries", s.config.MaxRetries,
			"err", err)
	}
	return fmt.Errorf("publish after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}
