package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/matzehuels/flowsketch/pkg/diagram"
)

// mockPublisher is a mock implementation of the Publisher interface for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []*nats.Msg
	failures int // number of calls to fail before succeeding
	calls    int
	sent     chan struct{}
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{sent: make(chan struct{}, 100)}
}

func (m *mockPublisher) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		m.mu.Unlock()
		return errors.New("nats: connection closed")
	}
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *mockPublisher) last() *nats.Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[len(m.messages)-1]
}

func (m *mockPublisher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func start(t *testing.T, pub Publisher, store *diagram.Store, cfg Config) context.CancelFunc {
	t.Helper()
	cfg.Logger = quietLogger()
	sink, err := NewWithPublisher(pub, store, cfg)
	if err != nil {
		t.Fatalf("NewWithPublisher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return cancel
}

func TestNew(t *testing.T) {
	sink, err := New(&nats.Conn{}, diagram.NewStore(), Config{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sink.config.MaxRetries != 3 {
		t.Errorf("expected default MaxRetries=3, got %d", sink.config.MaxRetries)
	}
	if sink.subject != "flowsketch.graph" {
		t.Errorf("subject = %s", sink.subject)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, diagram.NewStore(), Config{}); err == nil {
		t.Error("expected error when NATS connection is nil")
	}
	if _, err := NewWithPublisher(nil, diagram.NewStore(), Config{}); err == nil {
		t.Error("expected error when publisher is nil")
	}
	if _, err := NewWithPublisher(newMockPublisher(), nil, Config{}); err == nil {
		t.Error("expected error when store is nil")
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, session, want string
	}{
		{"flowsketch", "abc", "flowsketch.abc.graph"},
		{"flowsketch", "", "flowsketch.graph"},
		{"", "abc", "abc.graph"},
		{"team.diagrams.", "a.b*c>d e", "team.diagrams.a_b_c_d_e.graph"},
	}
	for _, tt := range tests {
		if got := Subject(tt.prefix, tt.session); got != tt.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tt.prefix, tt.session, got, tt.want)
		}
	}
}

func TestRun_PublishesSnapshot(t *testing.T) {
	pub := newMockPublisher()
	store := diagram.NewStore()
	start(t, pub, store, Config{Session: "s1", Headers: nats.Header{"Origin": []string{"test"}}})

	pub.wait(t) // initial snapshot
	store.ReplaceNodes(func([]diagram.Node) []diagram.Node {
		return []diagram.Node{{ID: "0", Label: "A"}}
	})
	pub.wait(t)

	msg := pub.last()
	if msg.Subject != "flowsketch.s1.graph" {
		t.Errorf("subject = %s", msg.Subject)
	}
	if got := msg.Header.Get(HeaderVersion); got != "1" {
		t.Errorf("%s = %q, want 1", HeaderVersion, got)
	}
	if got := msg.Header.Get(HeaderSession); got != "s1" {
		t.Errorf("%s = %q", HeaderSession, got)
	}
	if got := msg.Header.Get(HeaderChange); got != "nodes" {
		t.Errorf("%s = %q", HeaderChange, got)
	}
	if got := msg.Header.Get("Origin"); got != "test" {
		t.Errorf("configured header = %q", got)
	}

	var payload struct {
		Nodes []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(payload.Nodes) != 1 || payload.Nodes[0].Label != "A" {
		t.Errorf("payload = %s", msg.Data)
	}
}

func TestRun_Coalesces(t *testing.T) {
	pub := newMockPublisher()
	store := diagram.NewStore()
	start(t, pub, store, Config{})
	pub.wait(t)

	for i := range 50 {
		store.ReplaceNodes(func([]diagram.Node) []diagram.Node {
			return []diagram.Node{{ID: "0", Position: diagram.Position{X: float64(i)}}}
		})
	}

	deadline := time.After(2 * time.Second)
	for {
		pub.wait(t)
		if pub.last().Header.Get(HeaderVersion) == "50" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("latest version never published")
		default:
		}
	}

	pub.mu.Lock()
	n := len(pub.messages)
	pub.mu.Unlock()
	if n > 51 {
		t.Errorf("published %d messages for 50 changes", n)
	}
	if !strings.Contains(string(pub.last().Data), `"x": 49`) {
		t.Errorf("last payload is stale: %s", pub.last().Data)
	}
}

func TestRun_Retries(t *testing.T) {
	pub := newMockPublisher()
	pub.failures = 2
	start(t, pub, diagram.NewStore(), Config{MaxRetries: 3, RetryDelay: time.Millisecond})

	pub.wait(t)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.calls != 3 {
		t.Errorf("calls = %d, want 3", pub.calls)
	}
}

func TestRun_GivesUp(t *testing.T) {
	pub := newMockPublisher()
	pub.failures = 2
	store := diagram.NewStore()
	start(t, pub, store, Config{MaxRetries: 1, RetryDelay: time.Millisecond})

	// The initial snapshot exhausts both attempts; the next change succeeds.
	time.Sleep(50 * time.Millisecond)
	store.ReplaceEdges(func(e []diagram.Edge) []diagram.Edge { return e })
	pub.wait(t)

	if got := pub.last().Header.Get(HeaderChange); got != "edges" {
		t.Errorf("%s = %q, want edges", HeaderChange, got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	pub := newMockPublisher()
	store := diagram.NewStore()
	sink, err := NewWithPublisher(pub, store, Config{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx) }()
	pub.wait(t)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Unsubscribed: further changes publish nothing and do not block.
	store.ReplaceNodes(func(n []diagram.Node) []diagram.Node { return n })
	select {
	case <-pub.sent:
		t.Error("published after Run returned")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublish_VersionMatchesPayload(t *testing.T) {
	pub := newMockPublisher()
	store := diagram.NewStore()
	sink, err := NewWithPublisher(pub, store, Config{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	// The sink was marked at version 1, but two more writes landed before
	// it got to publish.
	for _, label := range []string{"a", "b", "c"} {
		store.ReplaceNodes(func([]diagram.Node) []diagram.Node {
			return []diagram.Node{{ID: "0", Label: label}}
		})
	}
	if err := sink.publish(context.Background(), diagram.Change{Kind: diagram.NodesChanged, Version: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := pub.last()
	if got := msg.Header.Get(HeaderVersion); got != "3" {
		t.Errorf("%s = %q, want 3", HeaderVersion, got)
	}
	if !strings.Contains(string(msg.Data), `"label": "c"`) {
		t.Errorf("payload = %s, want the version 3 graph", msg.Data)
	}
}
