// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/lib/secret"
)

// Session is an authenticated Matrix session: a Client plus an access
// token. The token is stored in a secret.Buffer (mmap-backed, locked
// against swap, excluded from core dumps); call Close when the session
// is no longer needed.
type Session struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string

	// transactionCounter generates unique transaction IDs so message
	// sends are idempotent under retry.
	transactionCounter atomic.Int64
}

// SessionFromToken creates a Session from an existing access token.
// The token is moved into protected memory. The token is NOT
// validated — the first API call fails if it is invalid. Used by
// tests and by any future session persistence.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) (*Session, error) {
	tokenBuffer, err := secret.NewFromBytes([]byte(accessToken))
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &Session{
		client:      c,
		accessToken: tokenBuffer,
		userID:      userID,
	}, nil
}

// UserID returns the fully-qualified Matrix user ID of this session.
func (s *Session) UserID() ref.UserID {
	return s.userID
}

// DeviceID returns the device ID assigned at login.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// CloseIdleConnections drops idle HTTP connections in the shared
// transport pool. Call after a sync error to force a fresh TCP
// connection on the next request.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// Close releases the access token memory (zeros, unlocks, unmaps).
// Idempotent. Operations issued after Close, including from other
// goroutines mid-teardown, fail with ErrSessionClosed.
func (s *Session) Close() error {
	if s.accessToken != nil {
		return s.accessToken.Close()
	}
	return nil
}

// WhoAmI validates the access token and returns the user ID.
func (s *Session) WhoAmI(ctx context.Context) (ref.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// SendMessage sends an m.room.message event to a room using Matrix's
// idempotent PUT with a fresh transaction ID. Returns the event ID.
func (s *Session) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	transactionID := s.nextTransactionID()
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(transactionID),
	)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: send message to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// UploadMedia uploads content to the homeserver's media repository.
// Returns the MXC URI (e.g., "mxc://example.org/abc123").
func (s *Session) UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error) {
	responseBody, err := s.client.doRequestRaw(ctx, http.MethodPost,
		"/_matrix/media/v3/upload", s.accessToken, contentType, body)
	if err != nil {
		return "", fmt.Errorf("messaging: media upload failed: %w", err)
	}

	var response UploadResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

// GetProfile fetches a user's display metadata (avatar URL and
// display name). Users with no profile data set get an empty
// response, not an error.
func (s *Session) GetProfile(ctx context.Context, userID ref.UserID) (*ProfileResponse, error) {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(userID.String())
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get profile for %q failed: %w", userID, err)
	}

	var response ProfileResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse profile response: %w", err)
	}
	return &response, nil
}

// Sync performs an incremental sync with the homeserver. For the
// initial sync, leave options.Since empty. For long-polling, set
// options.Timeout to the desired hold in milliseconds.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// nextTransactionID generates a unique transaction ID for idempotent
// event sending. Format: "nook-<timestamp_ms>-<counter>" so IDs stay
// unique across process restarts.
func (s *Session) nextTransactionID() string {
	counter := s.transactionCounter.Add(1)
	return fmt.Sprintf("nook-%d-%d", time.Now().UnixMilli(), counter)
}
