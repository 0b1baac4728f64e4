package models

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotAMember         = errors.New("not a member of this channel")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrMessageTooLong     = errors.New("message content is too long")
	ErrNoActiveConnection = errors.New("no active connection")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrForbidden          = errors.New("forbidden")
	ErrPersistence        = errors.New("persistence error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidPayload     = errors.New("invalid event payload")
)

// ErrorCode returns the wire code for err, used in outbound error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, ErrNoActiveConnection):
		return "no_active_connection"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err onto the status code used by the query endpoints.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoActiveConnection):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
