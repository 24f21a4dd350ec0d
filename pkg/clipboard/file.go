package clipboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File keeps the clipboard in a JSON file with an optional expiry.
type File struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewFile creates a file clipboard at path. The parent directory is created
// on first write.
func NewFile(path string, ttl time.Duration) *File {
	return &File{path: path, ttl: ttl, now: time.Now}
}

// fileEntry wraps clipboard text with metadata.
type fileEntry struct {
	Text      string    `json:"text"`
	CopiedAt  time.Time `json:"copied_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Write stores text, replacing the previous contents.
func (f *File) Write(_ context.Context, text string) error {
	entry := fileEntry{Text: text, CopiedAt: f.now()}
	if f.ttl > 0 {
		entry.ExpiresAt = entry.CopiedAt.Add(f.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create clipboard dir: %w", err)
	}

	// Write then rename so readers never see a partial entry.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Read returns the stored text. Missing, unreadable and expired entries
// read as an empty clipboard.
func (f *File) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", empty()
	}
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(f.path)
		return "", empty()
	}
	if !entry.ExpiresAt.IsZero() && f.now().After(entry.ExpiresAt) {
		_ = os.Remove(f.path)
		return "", empty()
	}
	return entry.Text, nil
}

// Close does nothing for the file clipboard.
func (f *File) Close() error { return nil }

// Path returns the file location.
func (f *File) Path() string { return f.path }

var _ Clipboard = (*File)(nil)
