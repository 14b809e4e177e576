// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"net/http"
	"time"

	"github.com/hashicorp/cap-authz/channel"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
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

// Serializer produces a signed assertion. *assertion.JWT implements it.
type Serializer interface {
	Serialize() (string, error)
}

// authzOptions is the set of available options for an Authorizer and its
// TokenClient.
type authzOptions struct {
	withPollInterval  time.Duration
	withWindowWidth   int
	withWindowHeight  int
	withFrameTimeout  time.Duration
	withMessageSource channel.MessageSource
	withTokenProxy    string
	withProxyEncoding bool
	withLogger        hclog.Logger
	withHTTPClient    *http.Client
	withWindowOpener  channel.WindowOpener
	withFrameLoader   channel.FrameLoader
	withScheduler     channel.Scheduler
	withAssertion     Serializer
	withNowFunc       func() time.Time
}

// authzDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func authzDefaults() authzOptions {
	return authzOptions{
		withPollInterval: channel.DefaultPollInterval,
		withWindowWidth:  channel.DefaultWindowWidth,
		withWindowHeight: channel.DefaultWindowHeight,
		withFrameTimeout: channel.DefaultFrameTimeout,
		withLogger:       hclog.NewNullLogger(),
		withWindowOpener: channel.BrowserOpener{},
		withScheduler:    channel.DefaultScheduler,
		withNowFunc:      time.Now,
	}
}

// getAuthzOpts gets the defaults and applies the opt overrides passed in.
func getAuthzOpts(opt ...Option) authzOptions {
	opts := authzDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withHTTPClient == nil {
		opts.withHTTPClient = cleanhttp.DefaultPooledClient()
	}
	if opts.withFrameLoader == nil {
		l := &channel.HTTPFrameLoader{Client: opts.withHTTPClient}
		if p, ok := opts.withMessageSource.(channel.Publisher); ok {
			l.Publisher = p
		}
		opts.withFrameLoader = l
	}
	return opts
}

// channelOpts are the channel options derived from the authz options.
func (o authzOptions) channelOpts() []channel.Option {
	return []channel.Option{
		channel.WithPollInterval(o.withPollInterval),
		channel.WithWindowSize(o.withWindowWidth, o.withWindowHeight),
		channel.WithFrameTimeout(o.withFrameTimeout),
		channel.WithScheduler(o.withScheduler),
		channel.WithLogger(o.withLogger.Named("channel")),
	}
}

// WithPopupPollInterval provides an optional interval for checking whether
// the interactive window was closed.
//
// Valid for: Authorizer
func WithPopupPollInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && d > 0 {
			o.withPollInterval = d
		}
	}
}

// WithPopupSize provides an optional size of the interactive window.
//
// Valid for: Authorizer
func WithPopupSize(width, height int) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && width > 0 && height > 0 {
			o.withWindowWidth = width
			o.withWindowHeight = height
		}
	}
}

// WithFrameTimeout provides an optional ceiling for the non-interactive
// frame's timer.
//
// Valid for: Authorizer
func WithFrameTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && d > 0 {
			o.withFrameTimeout = d
		}
	}
}

// WithMessageSource provides the source of the redirect messages. It's
// required for the implicit and authorization_code grants. When it's also a
// channel.Publisher, the default frame loader publishes the fragment
// responses it sees to it.
//
// Valid for: Authorizer
func WithMessageSource(s channel.MessageSource) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok {
			o.withMessageSource = s
		}
	}
}

// WithTokenProxy provides an optional prefix prepended to the token
// endpoint, for environments which must proxy back-channel requests.
//
// Valid for: Authorizer and TokenClient
func WithTokenProxy(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok {
			o.withTokenProxy = prefix
		}
	}
}

// WithProxyEncoding specifies the token endpoint is URL encoded before it's
// appended to the token proxy prefix.
//
// Valid for: Authorizer and TokenClient
func WithProxyEncoding() Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok {
			o.withProxyEncoding = true
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Authorizer and TokenClient
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional http client for back-channel requests
// and the default frame loader. See HTTPClient(...) for a client using a
// custom CA.
//
// Valid for: Authorizer and TokenClient
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && c != nil {
			o.withHTTPClient = c
		}
	}
}

// WithWindowOpener provides an optional opener for interactive windows. The
// default opens the system browser.
//
// Valid for: Authorizer
func WithWindowOpener(w channel.WindowOpener) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && w != nil {
			o.withWindowOpener = w
		}
	}
}

// WithFrameLoader provides an optional loader for non-interactive frames.
//
// Valid for: Authorizer
func WithFrameLoader(l channel.FrameLoader) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && l != nil {
			o.withFrameLoader = l
		}
	}
}

// WithScheduler provides an optional scheduler for the channels' timers.
//
// Valid for: Authorizer
func WithScheduler(s channel.Scheduler) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && s != nil {
			o.withScheduler = s
		}
	}
}

// WithAssertionSigner provides an optional signer for the jwt-bearer grant's
// assertion, used when the Config has no Assertion.
//
// Valid for: Authorizer
func WithAssertionSigner(s Serializer) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && s != nil {
			o.withAssertion = s
		}
	}
}

// WithNow provides an optional func for determining the current time.
//
// Valid for: Authorizer and TokenClient
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*authzOptions); ok && now != nil {
			o.withNowFunc = now
		}
	}
}
