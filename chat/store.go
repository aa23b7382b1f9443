// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/messaging"
)

// Profile is a sender's display metadata, resolved out-of-band from
// the message stream. Both fields may be empty.
type Profile struct {
	AvatarURL   string
	DisplayName string
}

// Message is one entry in the conversation log. Identity is ID;
// AvatarURL and DisplayName are filled in lazily as profiles resolve.
type Message struct {
	ID              ref.EventID
	Body            string
	Sender          ref.UserID
	TimestampMillis int64
	AvatarURL       string
	DisplayName     string
}

// Store is the ordered, deduplicated in-memory message log. A seen
// set of event IDs gates admission; admission order is display order
// and entries are never re-sorted. Profiles installed via Enrich are
// cached so later admissions from the same sender arrive enriched.
//
// Store is not safe for concurrent use; the manager loop is its only
// mutator.
type Store struct {
	messages []Message
	seen     map[ref.EventID]struct{}
	profiles map[ref.UserID]Profile
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{
		seen:     make(map[ref.EventID]struct{}),
		profiles: make(map[ref.UserID]Profile),
	}
}

// Admit appends the event to the log unless its ID has been seen
// before. Returns true on admission, false for a duplicate (no-op).
// An already-resolved profile for the sender is applied immediately.
func (s *Store) Admit(event messaging.Event) bool {
	if _, dup := s.seen[event.EventID]; dup {
		return false
	}
	s.seen[event.EventID] = struct{}{}

	message := Message{
		ID:              event.EventID,
		Body:            event.Body(),
		Sender:          event.Sender,
		TimestampMillis: event.OriginServerTS,
	}
	if profile, ok := s.profiles[event.Sender]; ok {
		message.AvatarURL = profile.AvatarURL
		message.DisplayName = profile.DisplayName
	}
	s.messages = append(s.messages, message)
	return true
}

// Enrich installs the sender's profile and patches every stored
// message from that sender. Ordering and identity are unaffected;
// reapplying the same profile is an effective no-op. Calling Enrich
// before any message from the sender arrives is safe: the cached
// profile applies on later Admit.
func (s *Store) Enrich(userID ref.UserID, profile Profile) {
	s.profiles[userID] = profile
	for i := range s.messages {
		if s.messages[i].Sender == userID {
			s.messages[i].AvatarURL = profile.AvatarURL
			s.messages[i].DisplayName = profile.DisplayName
		}
	}
}

// HasProfile reports whether a profile has been installed for the
// user.
func (s *Store) HasProfile(userID ref.UserID) bool {
	_, ok := s.profiles[userID]
	return ok
}

// Reset starts a new conversation: it clears the displayed log AND
// the seen set. The two are scoped together, so a server redelivery
// of a pre-reset event is readmitted into the fresh conversation.
// Cached profiles survive; sender identity doesn't change across
// conversations.
func (s *Store) Reset() {
	s.messages = nil
	s.seen = make(map[ref.EventID]struct{})
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Messages returns a copy of the log in admission order.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
