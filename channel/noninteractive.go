// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
)

// Frame is a hidden, zero-size browsing context.
type Frame interface {
	// Detach removes the frame and stops any navigation in progress.
	Detach()
}

// FrameLoader loads url into a new Frame. loaded must be called after every
// load completion, including the loads caused by redirects.
type FrameLoader interface {
	Load(ctx context.Context, url string, loaded func()) (Frame, error)
}

// NonInteractive loads an authorization request in a hidden frame. There is
// no reliable signal that the frame is stuck, so every load restarts an
// exponential timer and TimedOut is closed when the timer reaches its
// ceiling without another load. It is single-use.
type NonInteractive struct {
	loader FrameLoader
	opts   channelOptions

	mu       sync.Mutex
	frame    Frame
	timer    *frameTimer
	opened   bool
	tornDown bool

	timedOut chan struct{}
	once     sync.Once
}

// NewNonInteractive creates a new NonInteractive channel.
// Supported options: WithFrameTimeout, WithScheduler, WithLogger
func NewNonInteractive(loader FrameLoader, opt ...Option) (*NonInteractive, error) {
	const op = "channel.NewNonInteractive"
	if loader == nil {
		return nil, fmt.Errorf("%s: frame loader is nil: %w", op, ErrNilParameter)
	}
	c := &NonInteractive{
		loader:   loader,
		opts:     getChannelOpts(opt...),
		timedOut: make(chan struct{}),
	}
	c.timer = newFrameTimer(c.opts.withScheduler, c.opts.withFrameTimeout, c.timeout)
	return c, nil
}

// Open loads url into a hidden frame.
func (c *NonInteractive) Open(ctx context.Context, url string) error {
	const op = "NonInteractive.Open"
	c.mu.Lock()
	switch {
	case c.opened:
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrAlreadyOpened)
	case c.tornDown:
		c.mu.Unlock()
		return fmt.Errorf("%s: channel is torn down: %w", op, ErrInvalidParameter)
	}
	c.opened = true
	c.mu.Unlock()

	// the loader may report a load before returning, so the lock can't be
	// held while it runs.
	f, err := c.loader.Load(ctx, url, c.loaded)
	if err != nil {
		return fmt.Errorf("%s: unable to load frame: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		if f != nil {
			f.Detach()
		}
		return nil
	}
	c.frame = f
	c.opts.withLogger.Debug("non-interactive frame attached", "timeout", c.opts.withFrameTimeout)
	return nil
}

// TimedOut is closed when the frame's timer reached its ceiling.
func (c *NonInteractive) TimedOut() <-chan struct{} { return c.timedOut }

// Teardown cancels the pending timer and detaches the frame. It's safe to
// call more than once.
func (c *NonInteractive) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.tornDown = true
	c.timer.stop()
	if c.frame != nil {
		c.frame.Detach()
		c.frame = nil
	}
}

func (c *NonInteractive) loaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.opts.withLogger.Trace("non-interactive frame loaded")
	c.timer.restart()
}

func (c *NonInteractive) timeout() {
	c.once.Do(func() {
		c.opts.withLogger.Debug("non-interactive frame timed out", "timeout", c.opts.withFrameTimeout)
		close(c.timedOut)
	})
}

// frameTimer is the exponential timer state machine: every tick adds the
// current interval to elapsed and doubles the interval; fire runs once when
// elapsed reaches the ceiling. restart resets elapsed and the interval.
type frameTimer struct {
	sched     Scheduler
	ceiling   time.Duration
	intervals *backoff.ExponentialBackOff
	fire      func()

	mu         sync.Mutex
	elapsed    time.Duration
	current    time.Duration
	pending    Timer
	generation uint64
	fired      bool
}

func newFrameTimer(s Scheduler, ceiling time.Duration, fire func()) *frameTimer {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initialFrameInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         2 * ceiling,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return &frameTimer{
		sched:     s,
		ceiling:   ceiling,
		intervals: b,
		fire:      fire,
	}
}

func (t *frameTimer) restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return
	}
	t.cancelLocked()
	t.intervals.Reset()
	t.elapsed = 0
	t.scheduleLocked()
}

func (t *frameTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *frameTimer) cancelLocked() {
	t.generation++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *frameTimer) scheduleLocked() {
	t.current = t.intervals.NextBackOff()
	gen := t.generation
	t.pending = t.sched.AfterFunc(t.current, func() { t.tick(gen) })
}

func (t *frameTimer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.fired {
		t.mu.Unlock()
		return
	}
	t.elapsed += t.current
	if t.elapsed < t.ceiling {
		t.scheduleLocked()
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.fired = true
	t.mu.Unlock()
	t.fire()
}

// DefaultLoadTimeout is the HTTPFrameLoader's default ceiling for a load.
const DefaultLoadTimeout = 30 * time.Second

// HTTPFrameLoader loads a frame by following the URL's redirects with an
// http.Client. Every redirect hop and the final response count as a load, as
// does a request which failed or ran out of time.
//
// A URL fragment never reaches a server and there is no page script to
// relay it, so a redirect to a location with a fragment is published to
// Publisher as a Message and isn't followed.
type HTTPFrameLoader struct {
	// Client is optional; a cleanhttp client is used when nil.
	Client *http.Client

	// Publisher is optional. Without one, fragment redirects are followed
	// like any other.
	Publisher Publisher

	// MaxRedirects is optional and defaults to 10.
	MaxRedirects int

	// LoadTimeout is optional and defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// ensure that HTTPFrameLoader implements the FrameLoader interface
var _ FrameLoader = (*HTTPFrameLoader)(nil)

// Load implements FrameLoader. The request runs in the background until it
// completes or the returned Frame is detached.
func (l *HTTPFrameLoader) Load(ctx context.Context, url string, loaded func()) (Frame, error) {
	const op = "HTTPFrameLoader.Load"
	if loaded == nil {
		return nil, fmt.Errorf("%s: load func is nil: %w", op, ErrNilParameter)
	}
	base := l.Client
	if base == nil {
		base = cleanhttp.DefaultClient()
	}
	maxRedirects := l.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	client := *base
	client.Timeout = l.LoadTimeout
	if client.Timeout <= 0 {
		client.Timeout = DefaultLoadTimeout
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		loaded()
		if req.URL.Fragment != "" && l.Publisher != nil {
			l.Publisher.Publish(Message{
				Data:   "#" + req.URL.EscapedFragment(),
				Origin: req.URL.Scheme + "://" + req.URL.Host,
			})
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return errors.New("stopped after too many redirects")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	go func() {
		resp, err := client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
		}
		// an error page is still a load
		if ctx.Err() == nil {
			loaded()
		}
	}()
	return frameFunc(cancel), nil
}

type frameFunc context.CancelFunc

func (f frameFunc) Detach() { f() }
