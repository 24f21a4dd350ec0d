package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeUnknownLayout, http.StatusBadRequest},
		{errors.ErrCodeSessionNotFound, http.StatusNotFound},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeDuplicateNode, http.StatusConflict},
		{errors.ErrCodeClipboard, http.StatusBadGateway},
		{errors.ErrCodeUnsupported, http.StatusNotImplemented},
		{errors.ErrCodeLayoutFailed, http.StatusInternalServerError},
		{errors.ErrCodeInvalidConfig, http.StatusBadRequest},
		{errors.ErrCodeTooFewNodes, http.StatusUnprocessableEntity},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.code); got != tt.want {
			t.Errorf("Status(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorBody
	}{
		{
			name:       "coded",
			err:        errors.New(errors.ErrCodeSessionNotFound, "session %s not found", "abc"),
			wantStatus: http.StatusNotFound,
			wantBody:   ErrorBody{Code: errors.ErrCodeSessionNotFound, Message: "session abc not found"},
		},
		{
			name:       "plain error is hidden",
			err:        stderrors.New("dial tcp 10.0.0.1:6379: refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorBody{Code: errors.ErrCodeInternal, Message: "internal error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if got := WriteError(rec, tt.err); got != tt.wantStatus {
				t.Errorf("WriteError returned %d, want %d", got, tt.wantStatus)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body != tt.wantBody {
				t.Errorf("body = %+v, want %+v", body, tt.wantBody)
			}
		})
	}
}

func TestNotModified(t *testing.T) {
	tests := []struct {
		name        string
		ifNoneMatch string
		want        bool
	}{
		{"no header", "", false},
		{"match", `W/"7"`, true},
		{"list match", `W/"3", W/"7"`, true},
		{"stale", `W/"6"`, false},
		{"wildcard", "*", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.ifNoneMatch != "" {
				req.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			rec := httptest.NewRecorder()
			if got := NotModified(rec, req, 7); got != tt.want {
				t.Errorf("NotModified = %v, want %v", got, tt.want)
			}
			if rec.Header().Get("ETag") != `W/"7"` {
				t.Errorf("ETag = %q", rec.Header().Get("ETag"))
			}
			if tt.want && rec.Code != http.StatusNotModified {
				t.Errorf("status = %d, want 304", rec.Code)
			}
		})
	}
}
