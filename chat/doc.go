// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the session core of nook: it owns the authenticated
// connection to the homeserver, the ordered deduplicated message log,
// asynchronous sender profile resolution, the outbound send path for
// text and voice, and rate-limit retry for the initial connect.
//
// Concurrency model: the [Manager] runs one loop goroutine that drains
// a command channel. Stream events, profile fetch completions, send
// completions, and user actions all execute as posted closures on that
// loop, so [Store], [Resolver], and [Dispatcher] state needs no
// locking. Network calls are the only suspension points; they run on
// short-lived goroutines and post their completions back to the loop.
package chat
