// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the subset of the Matrix client-server API
// that nook's chat panel needs: password login, incremental /sync with
// long-polling, idempotent message sends, media upload, and profile
// lookup.
//
// [Client] is an unauthenticated client holding the homeserver URL and
// HTTP transport. [Client.Login] authenticates and returns a [Session],
// which performs all authenticated operations. The access token lives
// in mmap-backed secret memory (locked against swap, excluded from
// core dumps); callers must Close the session to release it.
//
// [Stream] turns the stateless /sync long-poll into a push
// subscription: it captures the current stream position, then delivers
// each new room-message event to a handler in server delivery order,
// never concurrently. Transient sync failures are retried a bounded
// number of times before the stream reports an error and ends.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code, the HTTP status, and — for 429 responses — the server's
// retry_after_ms hint. Request URLs are built by string concatenation
// rather than url.URL assembly to avoid double-encoding of
// already-escaped path segments.
package messaging
