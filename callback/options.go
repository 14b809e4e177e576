// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/hashicorp/go-hclog"
)

// DefaultPath is the path of the Server's redirect handler.
const DefaultPath = "/callback"

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

// callbackOptions is the set of available options for Relay and Server.
type callbackOptions struct {
	withSuccess ResponseFunc
	withLogger  hclog.Logger
	withPort    int
	withPath    string
}

func callbackDefaults() callbackOptions {
	return callbackOptions{
		withSuccess: DefaultSuccessResponse,
		withLogger:  hclog.NewNullLogger(),
		withPath:    DefaultPath,
	}
}

func getCallbackOpts(opt ...Option) callbackOptions {
	opts := callbackDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithSuccessResponse provides an optional response written after the
// redirect parameters were published.
//
// Valid for: Relay and Server
func WithSuccessResponse(fn ResponseFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*callbackOptions); ok && fn != nil {
			o.withSuccess = fn
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Relay and Server
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*callbackOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithPort provides an optional port for the Server. By default a free port
// is chosen.
//
// Valid for: Server
func WithPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*callbackOptions); ok && port > 0 {
			o.withPort = port
		}
	}
}

// WithPath provides an optional path for the Server's redirect handler.
//
// Valid for: Server
func WithPath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*callbackOptions); ok && path != "" {
			if path[0] != '/' {
				path = "/" + path
			}
			o.withPath = path
		}
	}
}
