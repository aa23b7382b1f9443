// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package panelui is the terminal rendering layer for the chat panel:
// a bubbletea model showing the conversation as aligned message
// bubbles with a compose area, voice attach, an error banner, and the
// four-action row. It owns no session state — it pulls immutable
// snapshots from the chat manager and pushes user intents back.
package panelui
