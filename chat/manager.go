// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nook-im/nook/lib/clock"
	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/lib/secret"
	"github.com/nook-im/nook/messaging"
)

// ConnState is the session's connection lifecycle state.
type ConnState int

const (
	// StateIdle: created, Start not yet called.
	StateIdle ConnState = iota
	// StateConnecting: a login attempt is in flight.
	StateConnecting
	// StateConnected: authenticated with a live event stream.
	StateConnected
	// StatePendingRetry: rate limited; one reconnect timer is armed.
	StatePendingRetry
	// StateFailed: the attempt (or the stream) failed terminally for
	// this session. No automatic recovery.
	StateFailed
	// StateClosed: torn down.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StatePendingRetry:
		return "pending-retry"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ManagerConfig configures a chat session manager.
type ManagerConfig struct {
	// Client is the unauthenticated homeserver client.
	Client *messaging.Client

	// UserID is the full Matrix ID to log in as; its localpart is the
	// login username.
	UserID ref.UserID

	// Password is read at login time. The manager does not close it;
	// the caller retains ownership.
	Password *secret.Buffer

	// RoomID is the single room this session streams and sends to.
	RoomID ref.RoomID

	// Clock drives the retry backoff timer. Defaults to clock.Real().
	Clock clock.Clock

	// DefaultBackoff is the reconnect delay when the server sends no
	// retry-after hint. Defaults to DefaultRetryBackoff.
	DefaultBackoff time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Snapshot is an immutable view of the session for rendering, rebuilt
// after every state change.
type Snapshot struct {
	State        ConnState
	SelfID       ref.UserID
	Messages     []Message
	Failure      *Failure
	Draft        string
	VoiceSending bool
	Notice       string
}

// Manager owns one chat session end to end: connect, stream, retry,
// outbound sends, and teardown. It is the single logical execution
// context of the core — a loop goroutine drains a command channel and
// everything that mutates session state runs as a closure on that
// loop.
type Manager struct {
	config     ManagerConfig
	store      *Store
	resolver   *Resolver
	dispatcher *Dispatcher
	retry      *RetryController

	commands chan func()
	updates  chan struct{}
	done     chan struct{}
	teardown sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	// Loop-owned state.
	session *messaging.Session
	stream  *messaging.Stream
	state   ConnState
	failure *Failure
	notice  string
	selfID  ref.UserID

	snapshotMu sync.Mutex
	snapshot   Snapshot
}

// NewManager creates a session manager. Call Start to begin
// connecting and Teardown when done.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("chat: ManagerConfig.Client is required")
	}
	if config.UserID.IsZero() {
		return nil, fmt.Errorf("chat: ManagerConfig.UserID is required")
	}
	if config.Password == nil {
		return nil, fmt.Errorf("chat: ManagerConfig.Password is required")
	}
	if config.RoomID.IsZero() {
		return nil, fmt.Errorf("chat: ManagerConfig.RoomID is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   config,
		store:    NewStore(),
		commands: make(chan func(), 64),
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
	m.resolver = NewResolver(
		func(ctx context.Context, userID ref.UserID) (*messaging.ProfileResponse, error) {
			return m.sessionForIO().GetProfile(ctx, userID)
		},
		m.post, m.store, config.Logger,
	)
	m.dispatcher = NewDispatcher(DispatcherConfig{
		RoomID:   config.RoomID,
		Session:  m.connectedSession,
		Post:     m.post,
		OnResult: func(failure *Failure) { m.failure = failure },
		Logger:   config.Logger,
	})
	m.retry = NewRetryController(config.Clock, config.DefaultBackoff, m.post, m.connect, config.Logger)
	return m, nil
}

// Start spawns the run loop and the first connect attempt.
func (m *Manager) Start() {
	go m.run()
	m.post(m.connect)
}

// Updates signals (coalesced) that a new Snapshot is available.
func (m *Manager) Updates() <-chan struct{} {
	return m.updates
}

// Snapshot returns the most recently published session view.
func (m *Manager) Snapshot() Snapshot {
	m.snapshotMu.Lock()
	defer m.snapshotMu.Unlock()
	return m.snapshot
}

// SendText transmits the draft as a text message. Whitespace-only
// drafts and disconnected sessions are silent no-ops; on failure the
// draft is preserved in the next Snapshot.
func (m *Manager) SendText(draft string) {
	m.post(func() { m.dispatcher.SendText(m.ctx, draft) })
}

// SendVoice uploads a completed voice recording and sends it as an
// audio message. mimeType may be empty (sniffed from the payload).
// The caller gates on Snapshot.VoiceSending; only one voice send may
// be in flight.
func (m *Manager) SendVoice(payload []byte, mimeType string) {
	m.post(func() { m.dispatcher.SendVoice(m.ctx, payload, mimeType) })
}

// Do routes a panel action. New-conversation resets the message log;
// the other actions are acknowledged with a notice and deliberately
// do nothing.
func (m *Manager) Do(action Action) {
	m.post(func() {
		switch action {
		case ActionNewConversation:
			m.store.Reset()
			m.notice = ""
		default:
			m.notice = fmt.Sprintf("%s is not available yet", action)
		}
	})
}

// Teardown shuts the session down: the pending retry is cancelled,
// the stream stopped, and in-flight network calls cancelled. It
// returns immediately; releasing the underlying session happens
// best-effort in the background. Idempotent, and safe even if connect
// never completed.
func (m *Manager) Teardown() {
	m.teardown.Do(func() {
		select {
		case m.commands <- m.shutdown:
		case <-m.done:
		}
	})
}

// Done is closed when the run loop has processed teardown.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// post schedules fn on the run loop. Posts after teardown are
// dropped.
func (m *Manager) post(fn func()) {
	select {
	case m.commands <- fn:
	case <-m.done:
	}
}

func (m *Manager) run() {
	for {
		select {
		case <-m.done:
			return
		case fn := <-m.commands:
			fn()
			m.publish()
		}
	}
}

// publish rebuilds the snapshot and wakes the renderer. The update
// channel holds one token; a renderer that is behind coalesces
// intermediate states.
func (m *Manager) publish() {
	snapshot := Snapshot{
		State:        m.state,
		SelfID:       m.selfID,
		Messages:     m.store.Messages(),
		Failure:      m.failure,
		Draft:        m.dispatcher.Draft(),
		VoiceSending: m.dispatcher.VoiceInFlight(),
		Notice:       m.notice,
	}
	m.snapshotMu.Lock()
	m.snapshot = snapshot
	m.snapshotMu.Unlock()

	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// connectedSession returns the live session, or nil when not
// connected. Loop-only.
func (m *Manager) connectedSession() *messaging.Session {
	if m.state != StateConnected {
		return nil
	}
	return m.session
}

// sessionForIO returns the session for an already-issued async
// operation (profile fetch). By the time such an operation was
// issued, the session existed; if teardown raced it, the cancelled
// context fails the call.
func (m *Manager) sessionForIO() *messaging.Session {
	return m.session
}

// connect starts a login attempt. Loop-only; entered from Start and
// from the retry timer.
func (m *Manager) connect() {
	if m.state == StateClosed {
		return
	}
	m.state = StateConnecting

	ctx := m.ctx
	go func() {
		session, err := m.config.Client.Login(ctx, m.config.UserID.Localpart(), m.config.Password)
		if err != nil {
			m.post(func() { m.connectFailed(err) })
			return
		}

		stream, err := messaging.OpenStream(ctx, session, messaging.StreamConfig{
			RoomID:  m.config.RoomID,
			OnEvent: m.handleStreamEvent,
			OnError: func(err error) {
				m.post(func() { m.streamLost(err) })
			},
			Logger: m.config.Logger,
		})
		if err != nil {
			go session.Close()
			m.post(func() { m.connectFailed(err) })
			return
		}

		m.post(func() { m.connected(session, stream) })
	}()
}

// connectFailed classifies a failed attempt. Rate limiting hands off
// to the retry controller; anything else is terminal for the session.
// Loop-only.
func (m *Manager) connectFailed(err error) {
	if m.state == StateClosed {
		return
	}
	if m.retry.HandleFailure(err) {
		m.state = StatePendingRetry
		m.failure = newFailure(FailureRateLimit, err)
		return
	}
	m.config.Logger.Error("connect failed", "error", err)
	m.state = StateFailed
	if isAuthRejection(err) {
		m.failure = newFailure(FailureAuth, err)
	} else {
		m.failure = newFailure(FailureConnect, err)
	}
}

// isAuthRejection reports whether a connect error is the homeserver
// rejecting the credentials, as opposed to network trouble or a
// failed initial sync.
func isAuthRejection(err error) bool {
	var matrixErr *messaging.MatrixError
	if !errors.As(err, &matrixErr) {
		return false
	}
	switch matrixErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return matrixErr.Code == messaging.ErrCodeForbidden || matrixErr.Code == messaging.ErrCodeUnknownToken
}

// connected installs the authenticated session and live stream.
// Loop-only.
func (m *Manager) connected(session *messaging.Session, stream *messaging.Stream) {
	if m.state == StateClosed {
		stream.Stop()
		closeSessionAfterStream(session, stream)
		return
	}
	m.session = session
	m.stream = stream
	m.selfID = session.UserID()
	m.state = StateConnected
	m.failure = nil
	m.config.Logger.Info("chat session connected",
		"user_id", m.selfID,
		"room_id", m.config.RoomID,
	)

	// Warm our own profile so outgoing messages render with a display
	// name immediately.
	m.resolver.Resolve(m.ctx, m.selfID)
}

// handleStreamEvent runs on the stream goroutine; admission and
// profile resolution are rescheduled onto the loop, preserving server
// delivery order.
func (m *Manager) handleStreamEvent(event messaging.Event) {
	m.post(func() {
		if m.state != StateConnected {
			return
		}
		if m.store.Admit(event) {
			m.resolver.Resolve(m.ctx, event.Sender)
		}
	})
}

// streamLost surfaces a dead event stream. No automatic reconnect
// beyond what the retry controller provides at initial connect.
// Loop-only.
func (m *Manager) streamLost(err error) {
	if m.state == StateClosed {
		return
	}
	m.config.Logger.Error("event stream lost", "error", err)
	m.state = StateFailed
	m.failure = newFailure(FailureStream, err)
}

// shutdown is the teardown command: cancel the retry, stop the
// stream, cancel in-flight I/O, and detach session cleanup. Loop-only;
// runs exactly once.
func (m *Manager) shutdown() {
	m.retry.Cancel()
	if m.stream != nil {
		m.stream.Stop()
	}
	m.cancel()
	m.state = StateClosed

	closeSessionAfterStream(m.session, m.stream)
	close(m.done)
}

// closeSessionAfterStream detaches session cleanup, deferred until
// the stream goroutine has drained so its in-flight sync never reads
// a released token. Worker goroutines on the dispatcher and resolver
// side that lose the same race get ErrSessionClosed from the session
// instead.
func closeSessionAfterStream(session *messaging.Session, stream *messaging.Stream) {
	if session == nil {
		return
	}
	go func() {
		if stream != nil {
			<-stream.Done()
		}
		session.Close()
	}()
}
