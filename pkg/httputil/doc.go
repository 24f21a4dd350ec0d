// Package httputil provides the response conventions of the flowsketch
// HTTP API.
//
// # Errors
//
// Handlers report failures with [WriteError]. Coded errors from
// pkg/errors map to an HTTP status with [Status] and are rendered as
//
//	{"code": "SESSION_NOT_FOUND", "message": "session ... not found"}
//
// Errors without a code become 500 INTERNAL_ERROR and their text is not
// sent to the client.
//
// # Conditional requests
//
// Diagram reads carry a weak ETag derived from the store version, so
// polling clients can send If-None-Match and receive 304 Not Modified while
// nothing changed. See [ETag] and [NotModified].
package httputil
