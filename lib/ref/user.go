// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID is a validated Matrix user ID (e.g., "@alice:example.org").
//
// A user ID always starts with '@' and contains a ':' separating the
// localpart from the server name. Only the structural format is
// validated — any spec-shaped user ID from any homeserver is accepted.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := parseSigilID("user ID", '@', raw); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error. For tests
// and static initialization with known-valid input.
func MustParseUserID(raw string) UserID {
	u, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return u
}

// String returns the full user ID string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the localpart (without '@' or ':server').
// Panics on a zero-value UserID.
func (u UserID) Localpart() string {
	localpart, _, err := parseSigilID("user ID", '@', u.id)
	if err != nil {
		panic(fmt.Sprintf("UserID.Localpart on invalid value %q: %v", u.id, err))
	}
	return localpart
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	if u.id == "" {
		return []byte{}, nil
	}
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// format; empty input produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
