// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/cli/browser"
)

// Window is a user facing browsing context. Its location can't be read, so
// the only thing known about it is whether it has been closed.
type Window interface {
	Closed() bool
	Close() error
}

// WindowOpener opens a Window of the given size at url.
type WindowOpener interface {
	Open(ctx context.Context, url string, width, height int) (Window, error)
}

// WindowOpenerFunc adapts an ordinary function to a WindowOpener.
type WindowOpenerFunc func(ctx context.Context, url string, width, height int) (Window, error)

// Open implements WindowOpener.
func (fn WindowOpenerFunc) Open(ctx context.Context, url string, width, height int) (Window, error) {
	return fn(ctx, url, width, height)
}

// Interactive supervises a user facing window opened for an authorization
// request. It is single-use.
type Interactive struct {
	opener WindowOpener
	opts   channelOptions

	mu       sync.Mutex
	window   Window
	timer    Timer
	opened   bool
	tornDown bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewInteractive creates a new Interactive channel.
// Supported options: WithPollInterval, WithWindowSize, WithScheduler,
// WithLogger
func NewInteractive(opener WindowOpener, opt ...Option) (*Interactive, error) {
	const op = "channel.NewInteractive"
	if opener == nil {
		return nil, fmt.Errorf("%s: window opener is nil: %w", op, ErrNilParameter)
	}
	return &Interactive{
		opener: opener,
		opts:   getChannelOpts(opt...),
		closed: make(chan struct{}),
	}, nil
}

// Open opens the window at url and starts polling it. ErrPopupBlocked is
// returned when the opener refused to open it.
func (c *Interactive) Open(ctx context.Context, url string) error {
	const op = "Interactive.Open"
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.opened:
		return fmt.Errorf("%s: %w", op, ErrAlreadyOpened)
	case c.tornDown:
		return fmt.Errorf("%s: channel is torn down: %w", op, ErrInvalidParameter)
	}
	c.opened = true

	w, err := c.opener.Open(ctx, url, c.opts.withWidth, c.opts.withHeight)
	switch {
	case err != nil:
		return fmt.Errorf("%s: %w: %w", op, ErrPopupBlocked, err)
	case w == nil:
		return fmt.Errorf("%s: opener returned no window: %w", op, ErrPopupBlocked)
	}
	c.window = w
	c.opts.withLogger.Debug("interactive window opened", "poll_interval", c.opts.withPollInterval)
	c.schedule()
	return nil
}

// Closed is closed when the user closed the window.
func (c *Interactive) Closed() <-chan struct{} { return c.closed }

// Teardown closes the window if it's still open and stops polling. It's safe
// to call more than once.
func (c *Interactive) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.tornDown = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.window != nil && !c.window.Closed() {
		if err := c.window.Close(); err != nil {
			c.opts.withLogger.Debug("unable to close interactive window", "error", err)
		}
	}
}

// schedule requires the lock to be held.
func (c *Interactive) schedule() {
	c.timer = c.opts.withScheduler.AfterFunc(c.opts.withPollInterval, c.poll)
}

func (c *Interactive) poll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown || c.window == nil {
		return
	}
	if c.window.Closed() {
		c.timer = nil
		c.closeOnce.Do(func() { close(c.closed) })
		return
	}
	c.schedule()
}

// BrowserOpener opens the system browser. The system browser doesn't report
// being closed, so its Window never does either.
type BrowserOpener struct{}

// ensure that BrowserOpener implements the WindowOpener interface
var _ WindowOpener = BrowserOpener{}

// Open implements WindowOpener.
func (BrowserOpener) Open(_ context.Context, url string, _, _ int) (Window, error) {
	if err := browser.OpenURL(url); err != nil {
		return nil, err
	}
	return &browserWindow{}, nil
}

type browserWindow struct{}

func (*browserWindow) Closed() bool { return false }

func (*browserWindow) Close() error { return nil }
