// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/cap-authz/authz"
)

// Authorizer is an authz.Authorizer which requests OpenID Connect response
// types and returns one Token per requested type.
type Authorizer struct {
	base *authz.Authorizer
	opts oidcOptions

	mu    sync.Mutex
	nonce string
}

// NewAuthorizer creates a new Authorizer. The options are passed along to the
// underlying authz.Authorizer.
//
// Supported options: WithVerifier and the options of authz.NewAuthorizer
func NewAuthorizer(c *authz.Config, opt ...authz.Option) (*Authorizer, error) {
	const op = "oidc.NewAuthorizer"
	base, err := authz.NewAuthorizer(c, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Authorizer{
		base: base,
		opts: getOIDCOpts(opt...),
	}, nil
}

// Base returns the underlying authz.Authorizer.
func (a *Authorizer) Base() *authz.Authorizer { return a.base }

// Nonce returns the Authorizer's nonce, which is generated on first use.
func (a *Authorizer) Nonce() (string, error) {
	const op = "Authorizer.Nonce"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nonce != "" {
		return a.nonce, nil
	}
	n, err := authz.NewID("n_")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	a.nonce = n
	return a.nonce, nil
}

// IsAuthorizationResponse reports whether the redirect parameters look like
// an authorization response, which includes responses carrying only an
// id_token.
func IsAuthorizationResponse(params url.Values) bool {
	return authz.IsAuthorizationResponse(params) || params.Has("id_token")
}

// AuthorizationURL returns the authorization request URL. It includes the
// nonce when an id_token is requested.
func (a *Authorizer) AuthorizationURL() (string, error) {
	const op = "Authorizer.AuthorizationURL"
	var extra url.Values
	if authz.HasResponseType(a.base.ResponseType(), "id_token") {
		nonce, err := a.Nonce()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		extra = url.Values{"nonce": {nonce}}
	}
	u, err := a.base.AuthorizationURL(extra)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Authorize runs the grant. Redirect grants return one Token per requested
// response type, in request order; a Token which couldn't be obtained has
// its Err set and doesn't affect the others. Other grants return a single
// Token with the "token" response type. Configuration, state and channel
// failures are returned as an error, like authz.Authorizer.Authorize.
func (a *Authorizer) Authorize(ctx context.Context) ([]*Token, error) {
	const op = "Authorizer.Authorize"
	cfg := a.base.Config()
	if !cfg.GrantType.Redirect() {
		tk, err := a.base.Authorize(ctx)
		if err != nil {
			return nil, err
		}
		t := &Token{ResponseType: "token", State: tk.State, Time: a.base.Now()}
		t.fromAuthzToken(tk)
		return []*Token{t}, nil
	}

	if err := a.base.CheckConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	release, err := a.base.Begin()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	authURL, err := a.AuthorizationURL()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	params, err := a.base.AwaitRedirect(ctx, authURL, IsAuthorizationResponse)
	if err != nil {
		return nil, err
	}
	state, err := a.base.State()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var nonce string
	rt := a.base.ResponseType()
	if authz.HasResponseType(rt, "id_token") {
		if nonce, err = a.Nonce(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	now := a.base.Now()
	var tokens []*Token
	for _, responseType := range strings.Fields(rt) {
		t := &Token{ResponseType: responseType, State: state, Time: now}
		switch responseType {
		case "code":
			a.exchange(ctx, t, params.Get("code"), nonce)
		case "id_token":
			t.IDToken = authz.IDToken(params.Get("id_token"))
			if t.IDToken == "" {
				t.fail(CodeNoIDToken, "The authorization server did not return the id_token.")
				break
			}
			checkIDToken(ctx, t, a.opts.withVerifier, nonce)
		case "token":
			tk := authz.NewToken(authz.CamelCaseValues(params), cfg.Scopes, now)
			t.fromAuthzToken(tk)
			t.IDToken = ""
			delete(t.Extra, "code")
			if t.AccessToken == "" {
				t.fail(CodeNoAccessToken, "The authorization server did not return the access_token.")
			}
		default:
			a.base.Logger().Debug("ignoring unknown response type", "response_type", responseType)
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// exchange completes a code Token with the code exchange's result.
func (a *Authorizer) exchange(ctx context.Context, t *Token, code, nonce string) {
	if code == "" {
		t.fail(authz.CodeNoCode, "The authorization server did not return the code.")
		return
	}
	t.Code = code
	tk, err := a.base.ExchangeCode(ctx, code)
	if err != nil {
		var authzErr *authz.AuthorizationError
		if errors.As(err, &authzErr) {
			t.fail(authzErr.Code, authzErr.Message)
			return
		}
		t.fail(authz.CodeRequestError, err.Error())
		return
	}
	t.fromAuthzToken(tk)
	checkIDToken(ctx, t, a.opts.withVerifier, nonce)
}
