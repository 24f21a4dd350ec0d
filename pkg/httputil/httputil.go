package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// Status maps an error code to an HTTP status. Codes without a specific
// mapping fall back to their category: input problems are 400, state
// conflicts 422, clipboard failures 502 and everything else 500.
func Status(code errors.Code) int {
	switch code {
	case errors.ErrCodeUnknownLayout:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDuplicateNode, errors.ErrCodeDuplicateEdge:
		return http.StatusConflict
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case errors.ErrCodeClipboard:
		return http.StatusBadGateway
	}
	switch code.Category() {
	case errors.CategoryInput:
		return http.StatusBadRequest
	case errors.CategoryState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// WriteError writes err as a JSON error response and returns the status.
func WriteError(w http.ResponseWriter, err error) int {
	code := errors.GetCode(err)
	body := ErrorBody{Code: code, Message: errors.UserMessage(err)}
	if code == "" {
		body = ErrorBody{Code: errors.ErrCodeInternal, Message: "internal error"}
	}
	status := Status(body.Code)
	WriteJSON(w, status, body)
	return status
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ETag returns the weak entity tag for a store version.
func ETag(version uint64) string {
	return `W/"` + strconv.FormatUint(version, 10) + `"`
}

// NotModified sets the ETag header for version and reports whether the
// request's If-None-Match already names it. When it does, a 304 has been
// written and the caller must not write a body.
func NotModified(w http.ResponseWriter, r *http.Request, version uint64) bool {
	tag := ETag(version)
	w.Header().Set("ETag", tag)
	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if c := strings.TrimSpace(candidate); c == tag || c == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}
