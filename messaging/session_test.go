// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nook-im/nook/lib/ref"
)

// newTestSession creates a Session backed by an httptest server. The
// server and session are cleaned up when the test completes.
func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@alice:test.local"), "syt_test_token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestSendMessage(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:test.local")

	t.Run("text message", func(t *testing.T) {
		var seenPaths []string
		session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.Method != http.MethodPut {
				t.Errorf("expected PUT, got %s", request.Method)
			}
			if request.Header.Get("Authorization") != "Bearer syt_test_token" {
				t.Errorf("unexpected authorization header: %s", request.Header.Get("Authorization"))
			}
			seenPaths = append(seenPaths, request.URL.EscapedPath())

			var content MessageContent
			if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
				t.Fatalf("failed to decode content: %v", err)
			}
			if content.MsgType != "m.text" {
				t.Errorf("unexpected msgtype: %s", content.MsgType)
			}
			if content.Body != "hello there" {
				t.Errorf("unexpected body: %s", content.Body)
			}

			writer.Header().Set("Content-Type", "application/json")
			json.NewEncoder(writer).Encode(SendEventResponse{
				EventID: ref.MustParseEventID("$event1:test.local"),
			})
		})

		eventID, err := session.SendMessage(context.Background(), roomID, NewTextMessage("hello there"))
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if eventID.String() != "$event1:test.local" {
			t.Errorf("unexpected event ID: %s", eventID)
		}

		// PUT path: .../rooms/{roomId}/send/m.room.message/{txnId}.
		if len(seenPaths) != 1 {
			t.Fatalf("expected 1 request, got %d", len(seenPaths))
		}
		prefix := "/_matrix/client/v3/rooms/" + "%21room:test.local" + "/send/m.room.message/"
		if !strings.HasPrefix(seenPaths[0], prefix) {
			t.Errorf("unexpected send path: %s", seenPaths[0])
		}

		// A second send must use a fresh transaction ID.
		if _, err := session.SendMessage(context.Background(), roomID, NewTextMessage("hello there")); err != nil {
			t.Fatalf("second SendMessage failed: %v", err)
		}
		if seenPaths[0] == seenPaths[1] {
			t.Errorf("transaction ID reused across sends: %s", seenPaths[0])
		}
	})

	t.Run("audio message", func(t *testing.T) {
		session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
			var content MessageContent
			if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
				t.Fatalf("failed to decode content: %v", err)
			}
			if content.MsgType != "m.audio" {
				t.Errorf("unexpected msgtype: %s", content.MsgType)
			}
			if content.URL != "mxc://test.local/media123" {
				t.Errorf("unexpected content URL: %s", content.URL)
			}
			if content.Info == nil || content.Info.MimeType != "audio/ogg" || content.Info.Size != 2048 {
				t.Errorf("unexpected file info: %+v", content.Info)
			}

			writer.Header().Set("Content-Type", "application/json")
			json.NewEncoder(writer).Encode(SendEventResponse{
				EventID: ref.MustParseEventID("$event2:test.local"),
			})
		})

		content := NewAudioMessage("Voice message", "mxc://test.local/media123", 2048, "audio/ogg")
		if _, err := session.SendMessage(context.Background(), roomID, content); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		session := newTestSession(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(writer).Encode(MatrixError{
				Code:         ErrCodeLimitExceeded,
				Message:      "Too Many Requests",
				RetryAfterMS: 1200,
			})
		})

		_, err := session.SendMessage(context.Background(), roomID, NewTextMessage("hi"))
		if err == nil {
			t.Fatal("expected rate limit error")
		}
		if _, ok := IsRateLimited(err); !ok {
			t.Errorf("expected IsRateLimited to match, got: %v", err)
		}
	})
}

func TestUploadMedia(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", request.Method)
		}
		if request.URL.Path != "/_matrix/media/v3/upload" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if request.Header.Get("Content-Type") != "audio/ogg" {
			t.Errorf("unexpected content type: %s", request.Header.Get("Content-Type"))
		}
		payload, err := io.ReadAll(request.Body)
		if err != nil {
			t.Fatalf("failed to read upload body: %v", err)
		}
		if string(payload) != "OggS fake audio" {
			t.Errorf("unexpected upload payload: %q", payload)
		}

		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(UploadResponse{
			ContentURI: "mxc://test.local/uploaded456",
		})
	})

	contentURI, err := session.UploadMedia(context.Background(), "audio/ogg", strings.NewReader("OggS fake audio"))
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if contentURI != "mxc://test.local/uploaded456" {
		t.Errorf("unexpected content URI: %s", contentURI)
	}
}

func TestGetProfile(t *testing.T) {
	t.Run("full profile", func(t *testing.T) {
		session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/profile/@bob:test.local" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writer.Header().Set("Content-Type", "application/json")
			json.NewEncoder(writer).Encode(ProfileResponse{
				DisplayName: "Bob",
				AvatarURL:   "mxc://test.local/avatar",
			})
		})

		profile, err := session.GetProfile(context.Background(), ref.MustParseUserID("@bob:test.local"))
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile.DisplayName != "Bob" {
			t.Errorf("unexpected display name: %s", profile.DisplayName)
		}
		if profile.AvatarURL != "mxc://test.local/avatar" {
			t.Errorf("unexpected avatar URL: %s", profile.AvatarURL)
		}
	})

	t.Run("empty profile", func(t *testing.T) {
		session := newTestSession(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.Write([]byte("{}"))
		})

		profile, err := session.GetProfile(context.Background(), ref.MustParseUserID("@ghost:test.local"))
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile.DisplayName != "" || profile.AvatarURL != "" {
			t.Errorf("expected empty profile, got %+v", profile)
		}
	})

	t.Run("not found", func(t *testing.T) {
		session := newTestSession(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(MatrixError{
				Code:    ErrCodeNotFound,
				Message: "Profile was not found",
			})
		})

		_, err := session.GetProfile(context.Background(), ref.MustParseUserID("@gone:test.local"))
		if !IsMatrixError(err, ErrCodeNotFound) {
			t.Errorf("expected M_NOT_FOUND, got: %v", err)
		}
	})
}

func TestWhoAmI(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(WhoAmIResponse{
			UserID: ref.MustParseUserID("@alice:test.local"),
		})
	})

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if userID.String() != "@alice:test.local" {
		t.Errorf("unexpected user ID: %s", userID)
	}
}

func TestSync(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:test.local")

	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		if query.Get("since") != "s100" {
			t.Errorf("unexpected since token: %s", query.Get("since"))
		}
		if query.Get("timeout") != "30000" {
			t.Errorf("unexpected timeout: %s", query.Get("timeout"))
		}
		if query.Get("filter") == "" {
			t.Error("expected filter parameter")
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{
			"next_batch": "s101",
			"rooms": {
				"join": {
					"!room:test.local": {
						"timeline": {
							"events": [
								{
									"event_id": "$ev1:test.local",
									"type": "m.room.message",
									"sender": "@bob:test.local",
									"origin_server_ts": 1700000000000,
									"content": {"msgtype": "m.text", "body": "hi"}
								}
							]
						}
					}
				}
			}
		}`))
	})

	response, err := session.Sync(context.Background(), SyncOptions{
		Since:      "s100",
		SetTimeout: true,
		Timeout:    30000,
		Filter:     `{"room":{}}`,
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if response.NextBatch != "s101" {
		t.Errorf("unexpected next_batch: %s", response.NextBatch)
	}

	joined, ok := response.Rooms.Join[roomID]
	if !ok {
		t.Fatalf("expected joined room %s in response", roomID)
	}
	if len(joined.Timeline.Events) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(joined.Timeline.Events))
	}
	event := joined.Timeline.Events[0]
	if event.EventID.String() != "$ev1:test.local" {
		t.Errorf("unexpected event ID: %s", event.EventID)
	}
	if event.Sender.String() != "@bob:test.local" {
		t.Errorf("unexpected sender: %s", event.Sender)
	}
	if event.Body() != "hi" {
		t.Errorf("unexpected body: %s", event.Body())
	}
}

func TestSessionOperationsAfterClose(t *testing.T) {
	var requests int
	session := newTestSession(t, func(writer http.ResponseWriter, _ *http.Request) {
		requests++
		writer.Write([]byte(`{}`))
	})
	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Teardown detaches session cleanup while worker goroutines may
	// still be entering an operation; a late call must degrade to an
	// error, never a panic on the released token.
	_, err := session.GetProfile(context.Background(), ref.MustParseUserID("@bob:test.local"))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("GetProfile after Close: got %v, want ErrSessionClosed", err)
	}
	_, err = session.SendMessage(context.Background(), ref.MustParseRoomID("!room:test.local"), NewTextMessage("late"))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SendMessage after Close: got %v, want ErrSessionClosed", err)
	}
	_, err = session.UploadMedia(context.Background(), "audio/ogg", strings.NewReader("payload"))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("UploadMedia after Close: got %v, want ErrSessionClosed", err)
	}
	_, err = session.Sync(context.Background(), SyncOptions{})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Sync after Close: got %v, want ErrSessionClosed", err)
	}
	if requests != 0 {
		t.Errorf("closed session reached the network: %d requests", requests)
	}
}
