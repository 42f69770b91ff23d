// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessiontimer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_CountsDownAndExpires(t *testing.T) {
	var mu sync.Mutex
	var ticks []Tick

	timer := NewWithIntervals(2, 1, 5*time.Millisecond, 2*time.Millisecond,
		func(tk Tick) {
			mu.Lock()
			ticks = append(ticks, tk)
			mu.Unlock()
		},
		func() bool { return false },
	)

	go timer.Run()
	timer.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, ticks)
	last := ticks[len(ticks)-1]
	assert.Equal(t, 0, last.Remaining)
	assert.True(t, timer.Expired())
}

func TestTimer_LowTimeFlagSetsAtThreshold(t *testing.T) {
	timer := NewWithIntervals(3, 2, 3*time.Millisecond, 2*time.Millisecond, func(Tick) {}, nil)
	go timer.Run()
	timer.Wait()

	assert.True(t, timer.LowTime())
	assert.True(t, timer.Expired())
}

func TestTimer_CancelStopsWithinOneTick(t *testing.T) {
	timer := NewWithIntervals(100, 5, time.Hour, time.Second, func(Tick) {}, nil)
	go timer.Run()

	timer.Cancel()

	done := make(chan struct{})
	go func() {
		timer.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not exit after Cancel")
	}
	assert.False(t, timer.Expired())
}

func TestTimer_HasMailReflectedInTick(t *testing.T) {
	var mu sync.Mutex
	var sawMail bool

	timer := NewWithIntervals(1, 1, 2*time.Millisecond, 2*time.Millisecond,
		func(tk Tick) {
			mu.Lock()
			if tk.HasMail {
				sawMail = true
			}
			mu.Unlock()
		},
		func() bool { return true },
	)
	go timer.Run()
	timer.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawMail)
}

func TestTimer_AddMinutesClearsLowTimeWhenAboveThreshold(t *testing.T) {
	timer := NewWithIntervals(100, 5, time.Hour, time.Second, func(Tick) {}, nil)
	defer timer.Cancel()

	timer.lowTime.Store(true)
	timer.AddMinutes(10)
	assert.False(t, timer.LowTime())
}
