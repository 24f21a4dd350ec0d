package clipboard

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// OSC52 writes to the system clipboard through the terminal.
type OSC52 struct {
	mu  sync.Mutex
	out io.Writer
}

// NewOSC52 creates a terminal clipboard writing escape sequences to out.
func NewOSC52(out io.Writer) *OSC52 {
	return &OSC52{out: out}
}

// Write emits the OSC 52 sequence for text, wrapped for tmux or screen when
// running inside one.
func (o *OSC52) Write(_ context.Context, text string) error {
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := seq.WriteTo(o.out); err != nil {
		return errors.Wrap(errors.ErrCodeClipboard, err, "write terminal clipboard")
	}
	return nil
}

// Read is not supported: terminals answer clipboard queries asynchronously
// on stdin, if at all.
func (o *OSC52) Read(context.Context) (string, error) {
	return "", errors.New(errors.ErrCodeUnsupported, "terminal clipboard is write-only")
}

// Close does nothing.
func (o *OSC52) Close() error { return nil }

var _ Clipboard = (*OSC52)(nil)

// Memory keeps the clipboard in process memory.
type Memory struct {
	mu   sync.RWMutex
	text string
	set  bool
}

// NewMemory creates an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

// Write stores text.
func (m *Memory) Write(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.set = text, true
	return nil
}

// Read returns the stored text.
func (m *Memory) Read(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return "", empty()
	}
	return m.text, nil
}

// Close does nothing.
func (m *Memory) Close() error { return nil }

var _ Clipboard = (*Memory)(nil)

// Null discards writes and always reads as empty.
// Useful for testing or when copying should be disabled.
type Null struct{}

// Write does nothing.
func (Null) Write(context.Context, string) error { return nil }

// Read always reports an empty clipboard.
func (Null) Read(context.Context) (string, error) { return "", empty() }

// Close does nothing.
func (Null) Close() error { return nil }

var _ Clipboard = Null{}
