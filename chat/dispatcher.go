// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/messaging"
)

// DispatcherConfig configures the outbound send path.
type DispatcherConfig struct {
	// RoomID is the one room messages go to.
	RoomID ref.RoomID

	// Session returns the live authenticated session, or nil when not
	// connected. Read on the manager loop at dispatch time.
	Session func() *messaging.Session

	// Post reschedules a completion onto the manager loop.
	Post func(func())

	// OnResult receives the outcome of each attempted send: a nil
	// failure clears the user-visible error slot, a non-nil failure
	// fills it. Runs on the manager loop.
	OnResult func(*Failure)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher validates and transmits user-composed text and voice
// payloads. It owns the outbound state: the preserved draft (kept
// across failed text sends so the user never loses composed text) and
// the single-slot voice in-flight flag.
//
// All methods must be called from the manager loop; network I/O runs
// on goroutines with completions posted back.
type Dispatcher struct {
	config DispatcherConfig

	draft         string
	voiceInFlight bool
}

// NewDispatcher creates an outbound dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Dispatcher{config: config}
}

// Draft returns the preserved draft: the text of the last failed or
// in-flight send, empty after a confirmed success.
func (d *Dispatcher) Draft() string {
	return d.draft
}

// VoiceInFlight reports whether a voice send is in progress. The
// caller gates further voice sends on this; the dispatcher holds one
// slot, not a queue.
func (d *Dispatcher) VoiceInFlight() bool {
	return d.voiceInFlight
}

// SendText transmits a text message. An empty or whitespace-only
// draft, or a disconnected session, is a silent no-op. On success the
// draft and any prior error are cleared; on failure the draft is
// preserved and a send failure fills the error slot.
func (d *Dispatcher) SendText(ctx context.Context, draft string) {
	if strings.TrimSpace(draft) == "" {
		return
	}
	session := d.config.Session()
	if session == nil {
		return
	}

	d.draft = draft
	go func() {
		_, err := session.SendMessage(ctx, d.config.RoomID, messaging.NewTextMessage(draft))
		d.config.Post(func() {
			if err != nil {
				d.config.Logger.Error("text send failed, draft preserved", "error", err)
				d.draft = draft
				d.config.OnResult(newFailure(FailureSend, err))
				return
			}
			// A newer send may have replaced the preserved draft while
			// this one was in flight; a success only clears its own.
			if d.draft == draft {
				d.draft = ""
			}
			d.config.OnResult(nil)
		})
	}()
}

// SendVoice uploads a completed voice recording and sends an m.audio
// message referencing it. mimeType may be empty; the payload is then
// sniffed. On upload failure no message is sent and the recording is
// discarded. The in-flight flag is reset on every completion path.
func (d *Dispatcher) SendVoice(ctx context.Context, payload []byte, mimeType string) {
	session := d.config.Session()
	if session == nil {
		return
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(payload).String()
	}

	d.voiceInFlight = true
	size := int64(len(payload))
	go func() {
		contentURI, err := session.UploadMedia(ctx, mimeType, bytes.NewReader(payload))
		if err != nil {
			d.config.Post(func() {
				d.voiceInFlight = false
				d.config.Logger.Error("voice upload failed, recording discarded", "error", err)
				d.config.OnResult(newFailure(FailureUpload, err))
			})
			return
		}

		content := messaging.NewAudioMessage("Voice message", contentURI, size, mimeType)
		_, err = session.SendMessage(ctx, d.config.RoomID, content)
		d.config.Post(func() {
			d.voiceInFlight = false
			if err != nil {
				d.config.Logger.Error("voice message send failed", "error", err)
				d.config.OnResult(newFailure(FailureSend, err))
				return
			}
			d.config.OnResult(nil)
		})
	}()
}
