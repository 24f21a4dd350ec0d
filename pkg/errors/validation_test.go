package errors

import (
	"strings"
	"testing"
)

func TestValidateScript(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"single line", "add hello", false},
		{"batch", "add a\nadd b\nll", false},
		{"crlf", "add a\r\nadd b\r\n", false},
		{"tab in label", "add a\tb", false},
		{"unicode label", "add grüße 🌱", false},

		{"null byte", "add a\x00b", true},
		{"control char", "add a\x07", true},
		{"invalid utf8", "add \xff\xfe", true},
		{"too large", strings.Repeat("a", MaxScriptBytes+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScript(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScript(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateScript() code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", "0b4f6c8e-6f1a-4f0e-9a43-5d2b3c1e7f90", false},

		{"empty", "", true},
		{"not a uuid", "session-1", true},
		{"path traversal", "../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "diagram.svg", false},
		{"nested", "out/diagram.flow", false},
		{"absolute", "/tmp/diagram.json", false},

		{"empty", "", true},
		{"directory", "out/", true},
		{"null byte", "a\x00b", true},
		{"newline", "a\nb", true},
		{"too long", strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
