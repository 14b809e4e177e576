// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrDiscoveryFailed  = errors.New("provider discovery failed")
)

// Error codes of TokenErrors reported by the Authorizer itself.
const (
	CodeInvalidNonce   = "invalid_nonce"
	CodeInvalidIDToken = "invalid_id_token"
	CodeNoIDToken      = "no_id_token"
	CodeNoAccessToken  = "no_access_token"
)

// TokenError is the failure of a single requested token. It doesn't affect
// the other tokens of the same authorization.
type TokenError struct {
	ResponseType string `json:"responseType"`
	State        string `json:"state"`
	Code         string `json:"error"`
	Description  string `json:"errorDescription"`
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.ResponseType, e.Code, e.Description)
}
