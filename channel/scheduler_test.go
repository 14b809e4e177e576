// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testScheduler is a Scheduler driven by Advance instead of the wall clock.
type testScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*testTimer
}

type testTimer struct {
	s       *testScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *testTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *testScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &testTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d, running every timer which is due in
// order. Timers scheduled by the callbacks run as well when they're due.
func (s *testScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *testTimer
		for _, t := range s.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.mu.Unlock()
		next.f()
	}
}

// Pending returns the number of timers which haven't run or been stopped.
func (s *testScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func TestDefaultScheduler(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	ran := make(chan struct{})
	DefaultScheduler.AfterFunc(time.Millisecond, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		assert.Fail("scheduled func didn't run")
	}

	tm := DefaultScheduler.AfterFunc(time.Hour, func() {})
	assert.True(tm.Stop())
	assert.False(tm.Stop())
}
