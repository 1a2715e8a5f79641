// Package gateway orchestrates one request's flow through the data plane:
// authenticate, route, translate, execute on a pooled connection, format.
package gateway

import (
	"fmt"
	"net/http"
)

// Kind classifies a request failure. The mapping to HTTP statuses is fixed
// and never leaks backend-internal detail beyond the generic category.
type Kind string

const (
	KindInvalidAPIKey       Kind = "invalid_api_key"
	KindUnknownInstance     Kind = "unknown_instance"
	KindInstanceUnavailable Kind = "instance_unavailable"
	KindForbiddenCommand    Kind = "forbidden_command"
	KindInvalidCommand      Kind = "invalid_command"
	KindCommandRejected     Kind = "command_rejected"
	KindPoolExhausted       Kind = "pool_exhausted"
	KindBackendUnreachable  Kind = "backend_unreachable"
	KindBackendProtocol     Kind = "backend_protocol_error"
	KindInternal            Kind = "internal"
)

// Error is a classified request failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error kind to the wire status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidAPIKey, KindUnknownInstance:
		return http.StatusUnauthorized
	case KindForbiddenCommand:
		return http.StatusForbidden
	case KindInvalidCommand, KindCommandRejected:
		return http.StatusBadRequest
	case KindInstanceUnavailable, KindPoolExhausted:
		return http.StatusServiceUnavailable
	case KindBackendUnreachable, KindBackendProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}
