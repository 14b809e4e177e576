// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Authorizer drives the grant of its Config. It holds at most one pending
// attempt at a time; attempts don't share redirect data.
type Authorizer struct {
	cfg    *Config
	opts   authzOptions
	client *TokenClient
	logger hclog.Logger

	mu       sync.Mutex
	state    string
	verifier *CodeVerifier
	pending  bool
}

// NewAuthorizer creates a new Authorizer for a copy of the Config; changes to
// c after the call have no effect.
//
// Supported options: WithPopupPollInterval, WithPopupSize, WithFrameTimeout,
// WithMessageSource, WithTokenProxy, WithProxyEncoding, WithLogger,
// WithHTTPClient, WithWindowOpener, WithFrameLoader, WithScheduler,
// WithAssertionSigner, WithNow
func NewAuthorizer(c *Config, opt ...Option) (*Authorizer, error) {
	const op = "authz.NewAuthorizer"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.GrantType == "" {
		return nil, fmt.Errorf("%s: grant type is empty: %w", op, ErrInvalidParameter)
	}
	opts := getAuthzOpts(opt...)
	logger := opts.withLogger.Named("authz")
	opts.withLogger = logger
	return &Authorizer{
		cfg:    c.Clone(),
		opts:   opts,
		client: newTokenClient(opts),
		logger: logger,
	}, nil
}

// Config returns a copy of the Authorizer's Config.
func (a *Authorizer) Config() *Config { return a.cfg.Clone() }

// ResponseType returns the effective response type of the redirect grants.
func (a *Authorizer) ResponseType() string { return a.cfg.EffectiveResponseType() }

// Interactive reports whether the redirect grants use an interactive window.
func (a *Authorizer) Interactive() bool { return a.cfg.IsInteractive() }

// TokenClient returns the Authorizer's TokenClient.
func (a *Authorizer) TokenClient() *TokenClient { return a.client }

// Logger returns the Authorizer's logger.
func (a *Authorizer) Logger() hclog.Logger { return a.logger }

// Now returns the current time of the Authorizer's clock.
func (a *Authorizer) Now() time.Time { return a.opts.withNowFunc() }

// State returns the Authorizer's state. It's the Config's State when set,
// otherwise it's generated on first use and reused after that.
func (a *Authorizer) State() (string, error) {
	const op = "Authorizer.State"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != "" {
		return a.state, nil
	}
	if a.cfg.State != "" {
		a.state = a.cfg.State
		return a.state, nil
	}
	id, err := NewID("")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	a.state = id
	return a.state, nil
}

// CheckConfig validates the endpoints required by the grant. It has no side
// effects and is called by Authorize before anything else.
func (a *Authorizer) CheckConfig() error {
	const op = "Authorizer.CheckConfig"
	if err := a.cfg.checkEndpoints(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if a.cfg.GrantType.Redirect() && a.opts.withMessageSource == nil {
		return fmt.Errorf("%s: message source is required for the %s grant: %w", op, a.cfg.GrantType, ErrInvalidParameter)
	}
	return nil
}

// Authorize runs the grant and returns its token. Protocol, channel and token
// endpoint failures are returned as an *AuthorizationError. Only one
// Authorize may run at a time; a concurrent call returns
// ErrAuthorizationPending.
func (a *Authorizer) Authorize(ctx context.Context) (*Token, error) {
	const op = "Authorizer.Authorize"
	if err := a.CheckConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	release, err := a.Begin()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	a.logger.Debug("authorizing", "grant_type", a.cfg.GrantType)
	if a.cfg.GrantType.Redirect() {
		return a.authorizeRedirect(ctx)
	}
	return a.authorizeToken(ctx)
}

// Begin marks an attempt as pending and returns the func which settles it.
// It returns ErrAuthorizationPending when an attempt is already pending.
// Authorize calls it; callers composing an Authorizer's steps use it to
// guard their own attempts.
func (a *Authorizer) Begin() (func(), error) {
	const op = "Authorizer.Begin"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthorizationPending)
	}
	a.pending = true
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.pending = false
		})
	}, nil
}

// NewError returns an *AuthorizationError with the Authorizer's state.
func (a *Authorizer) NewError(code, msg string, interactive bool, wrapped error) error {
	state, err := a.State()
	if err != nil {
		wrapped = errors.Join(wrapped, err)
	}
	return &AuthorizationError{
		Message:     msg,
		Code:        code,
		State:       state,
		Interactive: interactive,
		Wrapped:     wrapped,
	}
}

// exchangeError re-wraps a TokenClient failure as an *AuthorizationError.
func (a *Authorizer) exchangeError(err error, interactive bool) error {
	var exchErr *CodeExchangeError
	if errors.As(err, &exchErr) {
		return a.NewError(exchErr.Code, exchErr.Message, interactive, err)
	}
	return a.NewError(CodeRequestError, err.Error(), interactive, err)
}
