// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "fmt"

// FailureKind classifies a user-visible failure. Every kind except
// FailureProfile lands in the session's single error slot; profile
// failures are logged and swallowed.
type FailureKind string

const (
	// FailureAuth: login rejected. Terminal for the attempt, no
	// automatic retry.
	FailureAuth FailureKind = "auth"

	// FailureConnect: a connect attempt failed for a reason other
	// than rejected credentials or rate limiting — network trouble, a
	// server error, or a failed initial sync. Terminal for the
	// attempt.
	FailureConnect FailureKind = "connect"

	// FailureRateLimit: the server asked us to back off. The retry
	// controller schedules exactly one reattempt.
	FailureRateLimit FailureKind = "rate-limit"

	// FailureStream: the live event stream died mid-session. No
	// automatic reconnect.
	FailureStream FailureKind = "stream"

	// FailureSend: a text or voice message send failed. For text the
	// draft is preserved.
	FailureSend FailureKind = "send"

	// FailureUpload: a voice payload upload failed. The recording is
	// discarded and no message is sent.
	FailureUpload FailureKind = "upload"

	// FailureProfile: a sender profile fetch failed. Logged only; the
	// sender stays unresolved for the rest of the session.
	FailureProfile FailureKind = "profile"
)

// Failure is a classified, user-visible error. It wraps the
// underlying cause for logging and errors.As inspection.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("chat: %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}
