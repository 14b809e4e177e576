// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/cap-authz/authz"
)

// Token is the result for one requested response type. Err is set when that
// token couldn't be obtained; the other fields are then only partially set.
type Token struct {
	ResponseType   string                 `json:"responseType"`
	State          string                 `json:"state"`
	Time           time.Time              `json:"time"`
	Code           string                 `json:"code,omitempty"`
	AccessToken    authz.AccessToken      `json:"accessToken,omitempty"`
	IDToken        authz.IDToken          `json:"idToken,omitempty"`
	RefreshToken   authz.RefreshToken     `json:"refreshToken,omitempty"`
	TokenType      string                 `json:"tokenType,omitempty"`
	Scopes         []string               `json:"scope,omitempty"`
	ExpiresIn      int64                  `json:"expiresIn,omitempty"`
	ExpiresAssumed bool                   `json:"expiresAssumed,omitempty"`
	ExpiresAt      time.Time              `json:"expiresAt,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
	Err            *TokenError            `json:"error,omitempty"`
}

// fromAuthzToken copies the fields of an authz.Token into t.
func (t *Token) fromAuthzToken(tk *authz.Token) {
	t.AccessToken = tk.AccessToken
	t.IDToken = tk.IDToken
	t.RefreshToken = tk.RefreshToken
	t.TokenType = tk.TokenType
	t.Scopes = tk.Scopes
	t.ExpiresIn = tk.ExpiresIn
	t.ExpiresAssumed = tk.ExpiresAssumed
	t.ExpiresAt = tk.ExpiresAt
	t.Extra = tk.Extra
}

// fail sets t's error.
func (t *Token) fail(code, desc string) {
	t.Err = &TokenError{
		ResponseType: t.ResponseType,
		State:        t.State,
		Code:         code,
		Description:  desc,
	}
}

// Failed reports whether the token couldn't be obtained.
func (t *Token) Failed() bool { return t.Err != nil }
