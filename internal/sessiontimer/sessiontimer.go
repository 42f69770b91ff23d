// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessiontimer is the per-session Timer: an independent
// cooperative goroutine that counts down available minutes and emits
// control frames, grounded on the teacher's ticker-plus-stop-channel
// pattern in internal/events/memory.go's history pruner (spec §4.7).
package sessiontimer

import (
	"sync/atomic"
	"time"
)

// Tick is one timer control-frame payload: {type:"timer", remaining, has_mail}.
type Tick struct {
	Remaining int
	HasMail   bool
}

// Emitter is whatever the Session gives the Timer to deliver ticks on
// — the Transport Adapter's control-message writer in production.
type Emitter func(Tick)

// UnreadChecker reports whether the session's owner has unread mail;
// storage errors on this auxiliary path are the caller's problem to
// swallow, per spec §7.
type UnreadChecker func() bool

// Timer owns two flags read by the Session: Expired and LowTime.
// Expiry is never acted on inside the timer goroutine itself — it
// only raises the flag and emits one final tick; the Session observes
// it at the next input boundary.
type Timer struct {
	remaining    int64 // minutes, atomic
	expired      atomic.Bool
	lowTime      atomic.Bool
	lowThreshold int

	coarseInterval time.Duration
	fineInterval   time.Duration

	emit    Emitter
	hasMail UnreadChecker
	stop    chan struct{}
	done    chan struct{}
}

// New builds a Timer with the given starting budget in minutes,
// ticking once per real minute and once per real second during the
// final minute. Call Run in its own goroutine to start counting down.
func New(availableMinutes, lowThreshold int, emit Emitter, hasMail UnreadChecker) *Timer {
	return NewWithIntervals(availableMinutes, lowThreshold, time.Minute, time.Second, emit, hasMail)
}

// NewWithIntervals builds a Timer with overridden tick intervals, for
// tests that cannot afford to wait on real wall-clock minutes.
func NewWithIntervals(availableMinutes, lowThreshold int, coarseInterval, fineInterval time.Duration, emit Emitter, hasMail UnreadChecker) *Timer {
	t := &Timer{
		lowThreshold:   lowThreshold,
		coarseInterval: coarseInterval,
		fineInterval:   fineInterval,
		emit:           emit,
		hasMail:        hasMail,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	atomic.StoreInt64(&t.remaining, int64(availableMinutes))
	return t
}

// Expired reports whether the countdown has reached zero.
func (t *Timer) Expired() bool { return t.expired.Load() }

// LowTime reports whether the low-time flag is set. Every tick at or
// below the threshold sets it; AddMinutes clears it once remaining is
// back above the threshold.
func (t *Timer) LowTime() bool { return t.lowTime.Load() }

// AcknowledgeLowTime clears the low-time flag; the next tick at or
// below the threshold sets it again.
func (t *Timer) AcknowledgeLowTime() { t.lowTime.Store(false) }

// Remaining returns the minutes left on the countdown.
func (t *Timer) Remaining() int { return int(atomic.LoadInt64(&t.remaining)) }

// AddMinutes adjusts the remaining budget, used after a bank
// withdrawal increases available time mid-session.
func (t *Timer) AddMinutes(n int) {
	atomic.AddInt64(&t.remaining, int64(n))
	if t.Remaining() > t.lowThreshold {
		t.lowTime.Store(false)
	}
}

// Run wakes once per minute, switching to once-per-second during the
// final minute, until remaining reaches zero or Cancel is called.
// Exits within one tick of cancellation.
func (t *Timer) Run() {
	defer close(t.done)

	coarse := time.NewTicker(t.coarseInterval)
	defer coarse.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-coarse.C:
			if t.tickMinute() {
				t.fineCountdown()
				return
			}
		}
	}
}

// tickMinute decrements by one minute and emits a tick. Returns true
// once the final minute has begun, handing off to fineCountdown.
func (t *Timer) tickMinute() bool {
	remaining := atomic.AddInt64(&t.remaining, -1)
	if remaining <= 0 {
		atomic.StoreInt64(&t.remaining, 0)
		t.expired.Store(true)
		t.emitTick(0)
		return true
	}
	if int(remaining) <= t.lowThreshold {
		t.lowTime.Store(true)
	}
	t.emitTick(int(remaining))
	return int(remaining) == 1
}

// fineCountdown ticks once per second through the final minute.
func (t *Timer) fineCountdown() {
	if t.Remaining() <= 0 {
		return
	}
	fine := time.NewTicker(t.fineInterval)
	defer fine.Stop()

	secondsLeft := 60
	for {
		select {
		case <-t.stop:
			return
		case <-fine.C:
			secondsLeft--
			if secondsLeft <= 0 {
				atomic.StoreInt64(&t.remaining, 0)
				t.expired.Store(true)
				t.emitTick(0)
				return
			}
			t.lowTime.Store(true)
		}
	}
}

func (t *Timer) emitTick(remainingMinutes int) {
	if t.emit == nil {
		return
	}
	hasMail := false
	if t.hasMail != nil {
		hasMail = t.hasMail()
	}
	t.emit(Tick{Remaining: remainingMinutes, HasMail: hasMail})
}

// Cancel stops the timer goroutine; it exits within one tick. Safe to
// call multiple times.
func (t *Timer) Cancel() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

// Wait blocks until Run has returned.
func (t *Timer) Wait() {
	<-t.done
}
