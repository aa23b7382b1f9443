// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// EventID is a validated Matrix event ID (e.g., "$abc123xyz").
//
// In room version 4+ event IDs are "$base64hash" with no ":server"
// suffix; older room versions use "$something:server". Both shapes are
// accepted — the only validation is the '$' sigil and non-empty
// content, and the ID is otherwise treated as opaque. Event IDs are
// the identity of a chat message: the message store's dedup guard is
// keyed on them.
type EventID struct {
	id string
}

// ParseEventID validates and wraps a raw Matrix event ID string.
func ParseEventID(raw string) (EventID, error) {
	if raw == "" {
		return EventID{}, fmt.Errorf("empty event ID")
	}
	if raw[0] != '$' {
		return EventID{}, fmt.Errorf("event ID must start with '$': %q", raw)
	}
	if len(raw) < 2 {
		return EventID{}, fmt.Errorf("event ID has no content after '$': %q", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID is like ParseEventID but panics on error. For
// tests and static initialization with known-valid input.
func MustParseEventID(raw string) EventID {
	e, err := ParseEventID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseEventID(%q): %v", raw, err))
	}
	return e
}

// String returns the full event ID string.
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is the zero value.
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) {
	if e.id == "" {
		return nil, nil
	}
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// format; empty input produces the zero value.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// EventType is a Matrix event type string (e.g., "m.room.message").
// Event types are namespaced dotted identifiers with no structural
// sigil, so this is a named string type rather than a validated
// wrapper.
type EventType string

// EventTypeRoomMessage is the timeline event type carrying chat
// messages. The stream filter admits only this type.
const EventTypeRoomMessage EventType = "m.room.message"

// String returns the event type string.
func (t EventType) String() string { return string(t) }
