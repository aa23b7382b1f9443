// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for the Matrix
// client-server API: [UserID], [RoomID], [EventID], and [EventType].
//
// Raw strings from the wire are parsed into these types at the
// boundary (JSON deserialization uses the TextUnmarshaler
// implementations), so code past the boundary never handles an
// identifier with the wrong sigil or a missing server name. All types
// are immutable value types whose zero value is invalid; use IsZero
// to check.
//
// This package depends on no other nook packages.
package ref
