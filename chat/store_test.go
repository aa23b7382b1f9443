// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/messaging"
)

func testEvent(id string, sender string, body string) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID("$" + id + ":test.local"),
		Type:           ref.EventTypeRoomMessage,
		Sender:         ref.MustParseUserID("@" + sender + ":test.local"),
		OriginServerTS: 1700000000000,
		Content:        map[string]any{"msgtype": "m.text", "body": body},
	}
}

func storeIDs(s *Store) []string {
	var ids []string
	for _, message := range s.Messages() {
		ids = append(ids, message.ID.String())
	}
	return ids
}

func TestStoreAdmitDeduplicates(t *testing.T) {
	store := NewStore()

	if !store.Admit(testEvent("a", "u1", "first")) {
		t.Error("first admit of $a should succeed")
	}
	if store.Admit(testEvent("a", "u1", "first again")) {
		t.Error("second admit of $a should be rejected")
	}
	if !store.Admit(testEvent("b", "u2", "second")) {
		t.Error("admit of $b should succeed")
	}

	ids := storeIDs(store)
	if len(ids) != 2 || ids[0] != "$a:test.local" || ids[1] != "$b:test.local" {
		t.Errorf("unexpected log: %v", ids)
	}
}

func TestStoreAdmitIdempotentUnderRedelivery(t *testing.T) {
	once := NewStore()
	once.Admit(testEvent("a", "u1", "hello"))

	twice := NewStore()
	twice.Admit(testEvent("a", "u1", "hello"))
	twice.Admit(testEvent("a", "u1", "hello"))

	if once.Len() != twice.Len() {
		t.Fatalf("redelivery changed store size: %d vs %d", once.Len(), twice.Len())
	}
	if fmt.Sprint(once.Messages()) != fmt.Sprint(twice.Messages()) {
		t.Errorf("redelivery changed store state:\n once: %v\ntwice: %v", once.Messages(), twice.Messages())
	}
}

// Property: whatever interleaving duplicates arrive in, the log holds
// each distinct ID exactly once, ordered by first occurrence.
func TestStoreOrderAndUniquenessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		distinct := 2 + rng.Intn(8)

		// A delivery sequence with every distinct event at least once
		// plus a pile of duplicates, shuffled.
		var sequence []int
		for i := 0; i < distinct; i++ {
			sequence = append(sequence, i)
		}
		for d := 0; d < 20; d++ {
			sequence = append(sequence, rng.Intn(distinct))
		}
		rng.Shuffle(len(sequence), func(i, j int) {
			sequence[i], sequence[j] = sequence[j], sequence[i]
		})

		store := NewStore()
		var firstOccurrence []string
		seen := make(map[int]bool)
		for _, n := range sequence {
			event := testEvent(fmt.Sprintf("e%d", n), "u1", "body")
			store.Admit(event)
			if !seen[n] {
				seen[n] = true
				firstOccurrence = append(firstOccurrence, event.EventID.String())
			}
		}

		ids := storeIDs(store)
		if len(ids) != distinct {
			t.Fatalf("trial %d: expected %d messages, got %d", trial, distinct, len(ids))
		}
		for i := range ids {
			if ids[i] != firstOccurrence[i] {
				t.Fatalf("trial %d: order mismatch at %d: got %v want %v", trial, i, ids, firstOccurrence)
			}
		}
	}
}

func TestStoreEnrich(t *testing.T) {
	t.Run("after messages stored updates all", func(t *testing.T) {
		store := NewStore()
		store.Admit(testEvent("a", "u1", "one"))
		store.Admit(testEvent("b", "u2", "two"))
		store.Admit(testEvent("c", "u1", "three"))

		store.Enrich(ref.MustParseUserID("@u1:test.local"), Profile{
			DisplayName: "User One",
			AvatarURL:   "mxc://test.local/u1",
		})

		messages := store.Messages()
		if messages[0].DisplayName != "User One" || messages[2].DisplayName != "User One" {
			t.Errorf("u1 messages not enriched: %+v", messages)
		}
		if messages[1].DisplayName != "" {
			t.Errorf("u2 message wrongly enriched: %+v", messages[1])
		}
	})

	t.Run("before arrival applies on later admit", func(t *testing.T) {
		store := NewStore()
		store.Enrich(ref.MustParseUserID("@u1:test.local"), Profile{DisplayName: "User One"})

		if store.Len() != 0 {
			t.Fatal("enrich before arrival should not create messages")
		}

		store.Admit(testEvent("a", "u1", "hello"))
		if got := store.Messages()[0].DisplayName; got != "User One" {
			t.Errorf("cached profile not applied on admit: %q", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		store := NewStore()
		store.Admit(testEvent("a", "u1", "hello"))
		profile := Profile{DisplayName: "User One"}
		store.Enrich(ref.MustParseUserID("@u1:test.local"), profile)
		before := fmt.Sprint(store.Messages())
		store.Enrich(ref.MustParseUserID("@u1:test.local"), profile)
		if after := fmt.Sprint(store.Messages()); after != before {
			t.Errorf("reapplying the same profile changed state:\nbefore: %s\n after: %s", before, after)
		}
	})
}

func TestStoreReset(t *testing.T) {
	store := NewStore()
	store.Admit(testEvent("a", "u1", "one"))
	store.Admit(testEvent("b", "u1", "two"))
	store.Enrich(ref.MustParseUserID("@u1:test.local"), Profile{DisplayName: "User One"})

	store.Reset()

	if store.Len() != 0 {
		t.Fatalf("reset did not clear messages: %d", store.Len())
	}

	// The seen set resets with the log: a redelivered pre-reset event
	// starts the new conversation.
	if !store.Admit(testEvent("a", "u1", "one")) {
		t.Error("pre-reset event should be readmitted after reset")
	}

	// Profiles survive the reset.
	if got := store.Messages()[0].DisplayName; got != "User One" {
		t.Errorf("profile cache lost on reset: %q", got)
	}
}
