// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects [Real]; tests inject [Fake] and drive it with Advance.
//
// Any production code that would call time.Now, time.After,
// time.AfterFunc, or time.Sleep takes a Clock instead (usually as a
// field on its config struct). This is what makes the retry
// controller's backoff timers assertable in tests without real
// waiting.
package clock

import "time"

// Clock is the time source interface.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d elapses. If d <= 0, the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for duration d, then calls f. The returned
	// Timer cancels the pending call with Stop. If d <= 0, f runs
	// immediately (in a new goroutine for the real clock,
	// synchronously for the fake).
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Timer is a scheduled call created by AfterFunc.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns true if the call
// stopped the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
