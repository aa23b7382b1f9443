// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"

	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/messaging"
)

// ProfileFetcher fetches one user's display metadata. Satisfied by
// (*messaging.Session).GetProfile.
type ProfileFetcher func(ctx context.Context, userID ref.UserID) (*messaging.ProfileResponse, error)

// Resolver lazily resolves sender profiles. Each distinct sender is
// fetched at most once per session: a fetch is issued on the sender's
// first sighting, and a failed fetch leaves the sender permanently
// unresolved (logged, never retried). Resolved profiles are never
// refreshed, so a display name changed server-side mid-session stays
// stale until the next session.
//
// Resolve must be called from the manager loop. The fetch itself runs
// on a goroutine; its completion is delivered through post, which
// reschedules it onto the loop.
type Resolver struct {
	fetch     ProfileFetcher
	post      func(func())
	store     *Store
	logger    *slog.Logger
	requested map[ref.UserID]struct{}
}

// NewResolver creates a resolver feeding resolved profiles into the
// store.
func NewResolver(fetch ProfileFetcher, post func(func()), store *Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		fetch:     fetch,
		post:      post,
		store:     store,
		logger:    logger,
		requested: make(map[ref.UserID]struct{}),
	}
}

// Resolve triggers an asynchronous profile fetch for the user unless
// one was already issued this session. On success the profile is
// installed via Store.Enrich; on failure the error is logged and the
// user stays unresolved.
func (r *Resolver) Resolve(ctx context.Context, userID ref.UserID) {
	if _, issued := r.requested[userID]; issued {
		return
	}
	r.requested[userID] = struct{}{}

	go func() {
		response, err := r.fetch(ctx, userID)
		r.post(func() {
			if err != nil {
				r.logger.Warn("profile fetch failed, sender stays unresolved",
					"user_id", userID,
					"error", err,
				)
				return
			}
			r.store.Enrich(userID, Profile{
				AvatarURL:   response.AvatarURL,
				DisplayName: response.DisplayName,
			})
		})
	}()
}

// Requested reports whether a fetch has been issued for the user this
// session, regardless of outcome.
func (r *Resolver) Requested(userID ref.UserID) bool {
	_, ok := r.requested[userID]
	return ok
}
