// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseUserID(t *testing.T) {
	valid := []string{
		"@alice:example.org",
		"@bob:localhost",
		"@a:b",
		"@service/bot:chat.example.org",
	}
	for _, raw := range valid {
		userID, err := ParseUserID(raw)
		if err != nil {
			t.Errorf("ParseUserID(%q) failed: %v", raw, err)
			continue
		}
		if userID.String() != raw {
			t.Errorf("ParseUserID(%q).String() = %q", raw, userID.String())
		}
		if userID.IsZero() {
			t.Errorf("ParseUserID(%q) returned zero value", raw)
		}
	}

	invalid := []string{
		"",
		"alice:example.org",
		"@alice",
		"@:example.org",
		"@alice:",
		"!room:example.org",
	}
	for _, raw := range invalid {
		if _, err := ParseUserID(raw); err == nil {
			t.Errorf("ParseUserID(%q) should have failed", raw)
		}
	}
}

func TestUserIDLocalpart(t *testing.T) {
	userID := MustParseUserID("@alice:example.org")
	if userID.Localpart() != "alice" {
		t.Errorf("Localpart = %q, want %q", userID.Localpart(), "alice")
	}
}

func TestParseRoomID(t *testing.T) {
	roomID, err := ParseRoomID("!abc123:example.org")
	if err != nil {
		t.Fatalf("ParseRoomID failed: %v", err)
	}
	if roomID.String() != "!abc123:example.org" {
		t.Errorf("unexpected room ID: %s", roomID)
	}

	invalid := []string{"", "abc:example.org", "!", "!:example.org", "!abc", "!abc:"}
	for _, raw := range invalid {
		if _, err := ParseRoomID(raw); err == nil {
			t.Errorf("ParseRoomID(%q) should have failed", raw)
		}
	}
}

func TestParseEventID(t *testing.T) {
	// Room v4+ style (no server suffix) and legacy style both parse.
	for _, raw := range []string{"$abc123xyz", "$legacy:example.org"} {
		eventID, err := ParseEventID(raw)
		if err != nil {
			t.Errorf("ParseEventID(%q) failed: %v", raw, err)
			continue
		}
		if eventID.String() != raw {
			t.Errorf("unexpected event ID: %s", eventID)
		}
	}

	for _, raw := range []string{"", "$", "abc123"} {
		if _, err := ParseEventID(raw); err == nil {
			t.Errorf("ParseEventID(%q) should have failed", raw)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		User  UserID  `json:"user"`
		Room  RoomID  `json:"room"`
		Event EventID `json:"event"`
	}

	original := payload{
		User:  MustParseUserID("@alice:example.org"),
		Room:  MustParseRoomID("!room:example.org"),
		Event: MustParseEventID("$evt1"),
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	var userID UserID
	if err := json.Unmarshal([]byte(`"not-a-user-id"`), &userID); err == nil {
		t.Error("expected unmarshal error for malformed user ID")
	}

	// Empty input is the zero value, not an error (optional fields).
	if err := json.Unmarshal([]byte(`""`), &userID); err != nil {
		t.Errorf("empty user ID should unmarshal to zero value: %v", err)
	}
	if !userID.IsZero() {
		t.Error("empty user ID should be zero value")
	}
}
