// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nook-im/nook/lib/ref"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before the stream gives up and reports an error. Each retry uses a
// short server-side timeout, so the HTTP round-trip itself provides
// backoff.
const maxSyncRetries = 5

// longPollTimeout is the server-side long-poll hold in milliseconds
// for normal /sync calls. The server returns immediately when new
// events arrive. 30 seconds matches the client-server spec
// recommendation.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after
// a /sync error, short so the retry completes quickly.
const retryTimeout = 1000

// StreamConfig configures a live event stream.
type StreamConfig struct {
	// RoomID is the one room whose message events are delivered.
	RoomID ref.RoomID

	// OnEvent receives each m.room.message event for RoomID, in
	// server delivery order. Invocations never overlap; the next
	// /sync poll starts only after OnEvent returns.
	OnEvent func(Event)

	// OnError is invoked at most once, when the stream dies after
	// exhausting its sync retries. Not invoked on Stop. May be nil.
	OnError func(error)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stream is a live subscription to one room's message events, built
// on /sync long-polling. OpenStream captures the current stream
// position so only events arriving after the call are delivered.
// Stop cancels the stream and is idempotent.
type Stream struct {
	session *Session
	config  StreamConfig
	filter  string
	cancel  context.CancelFunc
	stopped sync.Once
	done    chan struct{}
}

// buildRoomFilter constructs the inline JSON /sync filter: timeline
// restricted to m.room.message events in the one configured room,
// state, presence, and account data suppressed entirely.
func buildRoomFilter(roomID ref.RoomID) string {
	top := map[string]any{
		"room": map[string]any{
			"rooms": []string{roomID.String()},
			"timeline": map[string]any{
				"types": []string{ref.EventTypeRoomMessage.String()},
			},
			"state": map[string]any{
				"types": []string{},
			},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}

// OpenStream starts a live subscription to the room's message events.
// It performs an immediate /sync (timeout=0) to capture the current
// stream position, then long-polls on a background goroutine,
// invoking config.OnEvent once per event. The returned Stream must be
// stopped by the caller; Stop is safe even if the stream has already
// died.
func OpenStream(ctx context.Context, session *Session, config StreamConfig) (*Stream, error) {
	if config.RoomID.IsZero() {
		return nil, fmt.Errorf("messaging: OpenStream requires a room ID")
	}
	if config.OnEvent == nil {
		return nil, fmt.Errorf("messaging: OpenStream requires an OnEvent handler")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	filter := buildRoomFilter(config.RoomID)
	response, err := session.Sync(ctx, SyncOptions{
		SetTimeout: true,
		Timeout:    0,
		Filter:     filter,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: initial sync for stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := &Stream{
		session: session,
		config:  config,
		filter:  filter,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go stream.run(streamCtx, response.NextBatch)
	return stream, nil
}

// Stop cancels the stream. Idempotent; does not wait for the poll
// goroutine to finish its in-flight request.
func (s *Stream) Stop() {
	s.stopped.Do(s.cancel)
}

// Done is closed when the poll goroutine has exited, whether from
// Stop or from a stream failure.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// run is the long-poll loop. Transient sync errors retry with a short
// server-side timeout; after maxSyncRetries consecutive failures the
// stream reports the error and exits.
func (s *Stream) run(ctx context.Context, sinceToken string) {
	defer close(s.done)

	var syncRetries int
	for {
		syncTimeout := longPollTimeout
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}

		response, err := s.session.Sync(ctx, SyncOptions{
			Since:      sinceToken,
			SetTimeout: true,
			Timeout:    syncTimeout,
			Filter:     s.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			syncRetries++
			// TCP-level errors (connection reset, EOF) often mean a
			// poisoned connection in the HTTP pool; drop idle
			// connections so the next attempt opens a fresh socket.
			s.session.CloseIdleConnections()
			if syncRetries > maxSyncRetries {
				s.config.Logger.Error("stream sync failed repeatedly, giving up",
					"room_id", s.config.RoomID,
					"attempts", syncRetries,
					"error", err,
				)
				if s.config.OnError != nil {
					s.config.OnError(fmt.Errorf("messaging: stream lost after %d sync failures: %w", syncRetries, err))
				}
				return
			}
			s.config.Logger.Debug("stream sync error, retrying",
				"room_id", s.config.RoomID,
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			continue
		}
		syncRetries = 0
		sinceToken = response.NextBatch

		joined, ok := response.Rooms.Join[s.config.RoomID]
		if !ok {
			continue
		}

		for _, event := range joined.Timeline.Events {
			// The filter already scopes to this room and event type;
			// the guard protects against servers that apply inline
			// filters loosely.
			if event.Type != ref.EventTypeRoomMessage {
				continue
			}
			if !event.RoomID.IsZero() && event.RoomID != s.config.RoomID {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.config.OnEvent(event)
		}
	}
}
