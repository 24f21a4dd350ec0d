package errors

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxScriptBytes bounds the size of a command batch accepted from the outside
// (HTTP bodies, clipboard imports).
const MaxScriptBytes = 1 << 20

// ValidateScript validates a command batch before it is handed to the
// interpreter.
//
// The validation rules:
//   - Must be valid UTF-8
//   - No null bytes
//   - No control characters other than newline, carriage return and tab
//   - Maximum size of MaxScriptBytes
//
// An empty script is valid; executing it is a no-op.
func ValidateScript(script string) error {
	if len(script) > MaxScriptBytes {
		return New(ErrCodeInvalidInput, "script too large (max %d bytes)", MaxScriptBytes)
	}

	if !utf8.ValidString(script) {
		return New(ErrCodeInvalidInput, "script is not valid UTF-8")
	}

	for _, r := range script {
		switch r {
		case '\n', '\r', '\t':
			continue
		}
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "script contains invalid control characters")
		}
	}

	return nil
}

// ValidateSessionID validates a session identifier.
// Session identifiers are UUIDs issued by the session manager.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid session id %q", id)
	}
	return nil
}

// ValidatePath validates an output file path given on the command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "path must name a file, not a directory")
	}

	return nil
}
