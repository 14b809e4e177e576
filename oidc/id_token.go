// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// supportedAlgorithms are the id_token signing algorithms accepted when
// reading an id_token's claims without a verifier.
var supportedAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.EdDSA,
}

// idTokenNonce returns the nonce claim of the id_token. When v isn't nil the
// id_token is verified first; otherwise its claims are read without
// verifying its signature.
func idTokenNonce(ctx context.Context, v *oidc.IDTokenVerifier, raw string) (string, error) {
	const op = "oidc.idTokenNonce"
	if v != nil {
		tk, err := v.Verify(ctx, raw)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return tk.Nonce, nil
	}
	tk, err := jwt.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse id_token: %w", op, err)
	}
	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := tk.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return "", fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}
	return claims.Nonce, nil
}

// checkIDToken degrades t when its id_token can't be read or doesn't carry
// the nonce which was sent. An empty nonce means none was sent.
func checkIDToken(ctx context.Context, t *Token, v *oidc.IDTokenVerifier, nonce string) {
	if t.IDToken == "" {
		return
	}
	got, err := idTokenNonce(ctx, v, string(t.IDToken))
	if err != nil {
		t.fail(CodeInvalidIDToken, err.Error())
		return
	}
	if nonce == "" {
		return
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(nonce)) != 1 {
		t.fail(CodeInvalidNonce, "The id_token nonce does not match the nonce of the request.")
	}
}
