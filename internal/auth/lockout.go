// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"sync"
	"time"
)

// Limiter rate-limits login attempts per handle: after K failures within a
// window W minutes, further attempts fail with LockedOut until the window
// clears (spec §4.4).
type Limiter struct {
	mu         sync.Mutex
	maxAttempts int
	window      time.Duration
	failures    map[string][]time.Time
	now         func() time.Time
}

// NewLimiter builds a Limiter with the given K/W policy.
func NewLimiter(maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		failures:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allowed reports whether handle may attempt a login right now.
func (l *Limiter) Allowed(handleLower string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(handleLower)) < l.maxAttempts
}

// RecordFailure registers a failed login attempt for handle.
func (l *Limiter) RecordFailure(handleLower string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempts := l.prune(handleLower)
	l.failures[handleLower] = append(attempts, l.now())
}

// Reset clears the failure history for handle, called on successful login.
func (l *Limiter) Reset(handleLower string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, handleLower)
}

// prune drops attempts older than the window and returns the live slice.
// Caller must hold l.mu.
func (l *Limiter) prune(handleLower string) []time.Time {
	cutoff := l.now().Add(-l.window)
	attempts := l.failures[handleLower]
	live := attempts[:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	l.failures[handleLower] = live
	return live
}
