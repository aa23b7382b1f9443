// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// MatrixError is a structured error response from the homeserver.
// Callers use errors.As to extract it:
//
//	var matrixErr *messaging.MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == messaging.ErrCodeForbidden { ... }
//	}
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN").
	Code string `json:"errcode"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
	// RetryAfterMS is the server's backoff hint in milliseconds,
	// present on M_LIMIT_EXCEEDED (429) responses. Zero when absent.
	RetryAfterMS int64 `json:"retry_after_ms,omitempty"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// ErrSessionClosed is returned by session operations issued after
// Close. Teardown detaches session cleanup while worker goroutines
// may still be entering an operation; those late calls get this
// error rather than a read from released token memory.
var ErrSessionClosed = errors.New("messaging: session closed")

// Standard Matrix error codes.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeTooLarge      = "M_TOO_LARGE"
)

// IsMatrixError reports whether err is a *MatrixError with the given
// error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// IsRateLimited reports whether err is a 429 response, and if so the
// server's retry-after hint. A zero duration means the server sent no
// hint — the caller picks its own default.
func IsRateLimited(err error) (retryAfter time.Duration, ok bool) {
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		return 0, false
	}
	if matrixErr.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	return time.Duration(matrixErr.RetryAfterMS) * time.Millisecond, true
}
