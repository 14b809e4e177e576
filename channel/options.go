// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultPollInterval is how often an interactive window is checked for
	// being closed.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultWindowWidth and DefaultWindowHeight are the size of an
	// interactive window.
	DefaultWindowWidth  = 800
	DefaultWindowHeight = 600

	// DefaultFrameTimeout is the ceiling of the non-interactive exponential
	// timer.
	DefaultFrameTimeout = 1020 * time.Millisecond

	// initialFrameInterval is the first tick of the non-interactive timer.
	initialFrameInterval = 8 * time.Millisecond
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// channelOptions is the set of available options for Interactive and
// NonInteractive.
type channelOptions struct {
	withPollInterval time.Duration
	withWidth        int
	withHeight       int
	withFrameTimeout time.Duration
	withScheduler    Scheduler
	withLogger       hclog.Logger
}

func channelDefaults() channelOptions {
	return channelOptions{
		withPollInterval: DefaultPollInterval,
		withWidth:        DefaultWindowWidth,
		withHeight:       DefaultWindowHeight,
		withFrameTimeout: DefaultFrameTimeout,
		withScheduler:    DefaultScheduler,
		withLogger:       hclog.NewNullLogger(),
	}
}

func getChannelOpts(opt ...Option) channelOptions {
	opts := channelDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPollInterval provides an optional interval for polling an interactive
// window's closed flag. Values <= 0 are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok && d > 0 {
			o.withPollInterval = d
		}
	}
}

// WithWindowSize provides an optional size for the interactive window.
func WithWindowSize(width, height int) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok && width > 0 && height > 0 {
			o.withWidth = width
			o.withHeight = height
		}
	}
}

// WithFrameTimeout provides an optional ceiling for the non-interactive
// timer. Values <= 0 are ignored.
func WithFrameTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok && d > 0 {
			o.withFrameTimeout = d
		}
	}
}

// WithScheduler provides an optional Scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok && s != nil {
			o.withScheduler = s
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
