// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small HTTP client helpers shared by the
// homeserver client.
package netutil

import (
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 64 MB. A sync
// response for a busy room is at most a few megabytes; the bound only
// exists so a pathological server cannot exhaust memory.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
