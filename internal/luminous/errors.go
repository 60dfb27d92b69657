// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package luminous

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConfigured
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeInvalidResponse
	ErrTypeNotFound
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotConfigured:
		return "not_configured"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ClientError is a transport level failure.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel ClientErrors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Cause == nil && t.Type == e.Type && t.Message == e.Message
}

// Sentinel errors for easy checking.
var (
	ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured, Message: "server URL is not configured"}
	ErrChatNotFound  = &ClientError{Type: ErrTypeNotFound, Message: "chat not found"}
)

// APIError is a non-2xx response. Message is the server's "error" field or
// the status text when the body has none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, serverMsg string) *APIError {
	if serverMsg == "" {
		serverMsg = fmt.Sprintf("API Error: %s", http.StatusText(status))
	}
	return &APIError{Status: status, Message: serverMsg}
}

// IsCanceled reports whether err comes from a cancelled turn rather than a
// real failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// wrapTransport converts an http.Client error into a ClientError, keeping
// cancellation recognizable with errors.Is.
func wrapTransport(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: op + " timed out", Cause: err}
	default:
		return &ClientError{Type: ErrTypeConnection, Message: op + " failed", Cause: err}
	}
}
