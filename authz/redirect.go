// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/cap-authz/channel"
	"golang.org/x/oauth2"
)

// IsAuthorizationResponse reports whether the redirect parameters look like
// an authorization response: one of state, error, access_token or code is
// present.
func IsAuthorizationResponse(params url.Values) bool {
	for _, k := range []string{"state", "error", "access_token", "code"} {
		if params.Has(k) {
			return true
		}
	}
	return false
}

// HasResponseType reports whether the space separated response type includes
// want.
func HasResponseType(responseType, want string) bool {
	for _, rt := range strings.Fields(responseType) {
		if rt == want {
			return true
		}
	}
	return false
}

// AuthorizationURL returns the authorization request URL. A new PKCE verifier
// is created for every call when the Config requests PKCE and the response
// type includes code. The client secret is never included. Any extra
// parameters are added last.
func (a *Authorizer) AuthorizationURL(extra ...url.Values) (string, error) {
	const op = "Authorizer.AuthorizationURL"
	if err := checkHTTPURI("authorization URI", a.cfg.AuthorizationURI); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	state, err := a.State()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	rt := a.ResponseType()

	oc := oauth2.Config{
		ClientID:    a.cfg.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: a.cfg.AuthorizationURI},
		RedirectURL: a.cfg.RedirectURI,
		Scopes:      a.cfg.Scopes,
	}
	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", rt),
	}

	var verifier *CodeVerifier
	if a.cfg.PKCE && HasResponseType(rt, "code") {
		if verifier, err = NewCodeVerifier(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		authOpts = append(authOpts, oauth2.S256ChallengeOption(verifier.Verifier()))
	}
	a.mu.Lock()
	a.verifier = verifier
	a.mu.Unlock()

	if a.cfg.IncludeGrantedScopes {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("include_granted_scopes", "true"))
	}
	if a.cfg.LoginHint != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("login_hint", a.cfg.LoginHint))
	}
	if len(a.cfg.UILocales) > 0 {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(localeStrings(a.cfg.UILocales), " ")))
	}
	if !a.Interactive() {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", "none"))
	}
	authURL := oc.AuthCodeURL(state, authOpts...)

	custom := a.cfg.CustomData.Auth.Parameters
	if len(custom) == 0 && len(extra) == 0 {
		return authURL, nil
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse authorization url: %w", op, err)
	}
	q := u.Query()
	for _, p := range custom {
		q.Add(p.Name, p.Value)
	}
	for _, e := range extra {
		for k, vs := range e {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// closedGracePeriod is how long a response may trail the closing of the
// interactive window.
const closedGracePeriod = 100 * time.Millisecond

// redirectChannel is the part shared by channel.Interactive and
// channel.NonInteractive.
type redirectChannel interface {
	Open(ctx context.Context, url string) error
	Teardown()
}

// AwaitRedirect opens authURL in the interactive or non-interactive channel
// and waits for the first redirect message accepted by accept
// (IsAuthorizationResponse when nil). The response's state and error are
// validated before its parameters are returned. The message listener and the
// channel are torn down before it returns. Callers which don't go through
// Authorize should hold Begin while it runs.
func (a *Authorizer) AwaitRedirect(ctx context.Context, authURL string, accept func(url.Values) bool) (url.Values, error) {
	const op = "Authorizer.AwaitRedirect"
	if a.opts.withMessageSource == nil {
		return nil, fmt.Errorf("%s: message source is nil: %w", op, ErrNilParameter)
	}
	if accept == nil {
		accept = IsAuthorizationResponse
	}
	if _, err := a.State(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	interactive := a.Interactive()

	done := make(chan struct{})
	inbound := make(chan url.Values, 1)
	remove := a.opts.withMessageSource.Listen(func(m channel.Message) {
		params, err := m.Values()
		if err != nil {
			a.logger.Trace("ignoring unparsable message", "error", err)
			return
		}
		if !accept(params) {
			a.logger.Trace("ignoring message which is not an authorization response")
			return
		}
		select {
		case inbound <- params:
		case <-done:
		}
	})

	var (
		ch       redirectChannel
		closed   <-chan struct{}
		timedOut <-chan struct{}
	)
	if interactive {
		c, err := channel.NewInteractive(a.opts.withWindowOpener, a.opts.channelOpts()...)
		if err != nil {
			remove()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, closed = c, c.Closed()
	} else {
		c, err := channel.NewNonInteractive(a.opts.withFrameLoader, a.opts.channelOpts()...)
		if err != nil {
			remove()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, timedOut = c, c.TimedOut()
	}
	teardown := sync.OnceFunc(func() {
		close(done)
		remove()
		ch.Teardown()
	})
	defer teardown()

	a.logger.Debug("opening authorization channel", "interactive", interactive)
	if err := ch.Open(ctx, authURL); err != nil {
		if interactive {
			if errors.Is(err, channel.ErrPopupBlocked) {
				return nil, a.NewError(CodePopupBlocked, "Authorization popup is being blocked.", true, err)
			}
			return nil, a.NewError(CodeNoResponse, err.Error(), true, err)
		}
		return nil, a.NewError(CodeFrameLoad, "Non-interactive authorization failed.", false, err)
	}

	var params url.Values
	select {
	case params = <-inbound:
	case <-closed:
		// the window may close while its response is still being relayed
		grace := time.NewTimer(closedGracePeriod)
		defer grace.Stop()
		select {
		case params = <-inbound:
		case <-grace.C:
			a.logger.Debug("authorization window closed without a response")
			return nil, a.NewError(CodeNoResponse, "No response has been recorded.", interactive, ErrNoResponse)
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
	case <-timedOut:
		a.logger.Debug("non-interactive authorization timed out")
		return nil, a.NewError(CodeFrameLoad, "Non-interactive authorization failed.", false, ErrFrameTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}
	teardown()
	return a.checkResponse(params, interactive)
}

// checkResponse validates the response's state and reports its error.
func (a *Authorizer) checkResponse(params url.Values, interactive bool) (url.Values, error) {
	state, err := a.State()
	if err != nil {
		return nil, err
	}
	got := params.Get("state")
	switch {
	case got == "":
		a.logger.Warn("authorization response has no state")
		return nil, a.NewError(CodeNoState, "Server did not return the state parameter.", interactive, ErrResponseStateInvalid)
	case subtle.ConstantTimeCompare([]byte(got), []byte(state)) != 1:
		a.logger.Warn("authorization response state does not match")
		return nil, a.NewError(CodeInvalidState, "The state value returned by the authorization server is invalid", interactive, ErrResponseStateInvalid)
	}
	if code := params.Get("error"); code != "" {
		return nil, a.NewError(code, ErrorMessage(code, params.Get("error_description")), interactive, nil)
	}
	return params, nil
}

func (a *Authorizer) authorizeRedirect(ctx context.Context) (*Token, error) {
	const op = "Authorizer.authorizeRedirect"
	authURL, err := a.AuthorizationURL()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	params, err := a.AwaitRedirect(ctx, authURL, IsAuthorizationResponse)
	if err != nil {
		return nil, err
	}
	state, err := a.State()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.cfg.GrantType == GrantImplicit || a.ResponseType() == "id_token" {
		tk := NewToken(CamelCaseValues(params), a.cfg.Scopes, a.opts.withNowFunc())
		tk.State = state
		return tk, nil
	}
	code := params.Get("code")
	if code == "" {
		return nil, a.NewError(CodeNoCode, "The authorization server did not return the code.", a.Interactive(), nil)
	}
	return a.ExchangeCode(ctx, code)
}

// ExchangeCode exchanges an authorization code for a token. The PKCE
// verifier of the last authorization URL, if any, is sent and consumed.
func (a *Authorizer) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	const op = "Authorizer.ExchangeCode"
	if code == "" {
		return nil, fmt.Errorf("%s: code is empty: %w", op, ErrInvalidParameter)
	}
	state, err := a.State()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.mu.Lock()
	verifier := a.verifier
	a.verifier = nil
	a.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", string(GrantAuthorizationCode))
	form.Set("client_id", a.cfg.ClientID)
	form.Set("code", code)
	if a.cfg.RedirectURI != "" {
		form.Set("redirect_uri", a.cfg.RedirectURI)
	}
	// client_secret is sent even when empty
	form.Set("client_secret", string(a.cfg.ClientSecret))
	if verifier != nil {
		form.Set("code_verifier", verifier.Verifier())
	}

	fields, err := a.client.Request(ctx, a.cfg.AccessTokenURI, form, nil, &a.cfg.CustomData.Token)
	if err != nil {
		return nil, a.exchangeError(err, a.Interactive())
	}
	tk := NewToken(fields, a.cfg.Scopes, a.opts.withNowFunc())
	if tk.State == "" {
		tk.State = state
	}
	return tk, nil
}
