// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"log/slog"
	"time"

	"github.com/nook-im/nook/lib/clock"
	"github.com/nook-im/nook/messaging"
)

// DefaultRetryBackoff is the reconnect delay used when a rate-limited
// server sends no retry-after hint.
const DefaultRetryBackoff = 5 * time.Second

// RetryController schedules the single pending reconnect after a
// rate-limited connect attempt. At most one timer exists at a time:
// the only arming site is HandleFailure, which the manager calls only
// from the connecting state, and the slot is cleared before the retry
// callback runs and on Cancel. Non-rate-limit failures never arm a
// timer; those attempts are terminal.
//
// Methods must be called from the manager loop. The timer callback
// fires elsewhere, so retry delivers through a post function that
// reschedules onto the loop.
type RetryController struct {
	clock          clock.Clock
	defaultBackoff time.Duration
	post           func(func())
	retry          func()
	logger         *slog.Logger

	timer *clock.Timer
}

// NewRetryController creates a controller that invokes retry on the
// manager loop when a scheduled backoff elapses. defaultBackoff of 0
// means DefaultRetryBackoff.
func NewRetryController(clk clock.Clock, defaultBackoff time.Duration, post func(func()), retry func(), logger *slog.Logger) *RetryController {
	if defaultBackoff <= 0 {
		defaultBackoff = DefaultRetryBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryController{
		clock:          clk,
		defaultBackoff: defaultBackoff,
		post:           post,
		retry:          retry,
		logger:         logger,
	}
}

// HandleFailure inspects a connect failure. A rate-limited failure
// arms the retry timer with the server's hint (or the default when the
// hint is absent) and returns true. Any other failure returns false;
// the attempt is terminal.
func (r *RetryController) HandleFailure(err error) bool {
	hint, rateLimited := messaging.IsRateLimited(err)
	if !rateLimited {
		return false
	}

	delay := hint
	if delay <= 0 {
		delay = r.defaultBackoff
	}
	r.logger.Info("rate limited, scheduling reconnect",
		"delay", delay,
		"server_hint", hint > 0,
	)
	r.timer = r.clock.AfterFunc(delay, func() {
		r.post(func() {
			r.timer = nil
			r.retry()
		})
	})
	return true
}

// Pending reports whether a retry timer is armed.
func (r *RetryController) Pending() bool {
	return r.timer != nil
}

// Cancel stops the pending retry, if any. Idempotent; called on
// teardown and on successful connect.
func (r *RetryController) Cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
