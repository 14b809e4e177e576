// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWindow struct {
	mu     sync.Mutex
	closed bool
	closes int
}

func (w *testWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *testWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.closes++
	return nil
}

// userClose simulates the user closing the window.
func (w *testWindow) userClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNewInteractive(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c, err := NewInteractive(nil)
	assert.ErrorIs(err, ErrNilParameter)
	assert.Nil(c)
}

func TestInteractive_Open(t *testing.T) {
	t.Parallel()
	t.Run("blocked", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewInteractive(WindowOpenerFunc(func(context.Context, string, int, int) (Window, error) {
			return nil, errors.New("no popups for you")
		}))
		require.NoError(err)
		err = c.Open(context.Background(), "https://as.example.com/authorize")
		assert.ErrorIs(err, ErrPopupBlocked)
		c.Teardown()
	})
	t.Run("nil-window", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewInteractive(WindowOpenerFunc(func(context.Context, string, int, int) (Window, error) {
			return nil, nil
		}))
		require.NoError(err)
		assert.ErrorIs(c.Open(context.Background(), "https://as.example.com/authorize"), ErrPopupBlocked)
	})
	t.Run("size-and-url", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		var gotURL string
		var gotW, gotH int
		sched := &testScheduler{}
		c, err := NewInteractive(WindowOpenerFunc(func(_ context.Context, url string, w, h int) (Window, error) {
			gotURL, gotW, gotH = url, w, h
			return &testWindow{}, nil
		}), WithWindowSize(400, 300), WithScheduler(sched))
		require.NoError(err)
		require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))
		assert.Equal("https://as.example.com/authorize", gotURL)
		assert.Equal(400, gotW)
		assert.Equal(300, gotH)

		assert.ErrorIs(c.Open(context.Background(), "https://as.example.com/authorize"), ErrAlreadyOpened)
		c.Teardown()
		assert.Equal(0, sched.Pending())
	})
	t.Run("torn-down", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewInteractive(WindowOpenerFunc(func(context.Context, string, int, int) (Window, error) {
			return &testWindow{}, nil
		}))
		require.NoError(err)
		c.Teardown()
		assert.ErrorIs(c.Open(context.Background(), "https://as.example.com/authorize"), ErrInvalidParameter)
	})
}

func TestInteractive_Closed(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	w := &testWindow{}
	sched := &testScheduler{}
	c, err := NewInteractive(WindowOpenerFunc(func(context.Context, string, int, int) (Window, error) {
		return w, nil
	}), WithPollInterval(10*time.Millisecond), WithScheduler(sched))
	require.NoError(err)
	require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))

	sched.Advance(100 * time.Millisecond)
	assert.False(isClosed(c.Closed()))
	assert.Equal(1, sched.Pending())

	w.userClose()
	sched.Advance(9 * time.Millisecond)
	assert.False(isClosed(c.Closed()))
	sched.Advance(time.Millisecond)
	assert.True(isClosed(c.Closed()))
	assert.Equal(0, sched.Pending())

	// the window is already closed
	c.Teardown()
	c.Teardown()
	assert.Equal(0, w.closes)
}

func TestInteractive_Teardown(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	w := &testWindow{}
	sched := &testScheduler{}
	c, err := NewInteractive(WindowOpenerFunc(func(context.Context, string, int, int) (Window, error) {
		return w, nil
	}), WithScheduler(sched))
	require.NoError(err)
	require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))

	c.Teardown()
	c.Teardown()
	assert.Equal(1, w.closes)
	assert.Equal(0, sched.Pending())

	// a late poll is a no-op
	sched.Advance(time.Second)
	assert.False(isClosed(c.Closed()))
}
