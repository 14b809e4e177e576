// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"fmt"

	"golang.org/x/oauth2"
)

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

const (
	// S256 is the only challenge method supported.
	S256 ChallengeMethod = "S256"
)

// CodeVerifier is a PKCE code verifier and its derived challenge. A verifier
// belongs to one authorization attempt.
type CodeVerifier struct {
	verifier  string
	challenge string
	method    ChallengeMethod
}

// NewCodeVerifier generates a random verifier (43 characters) and its S256
// challenge.
func NewCodeVerifier() (*CodeVerifier, error) {
	const op = "authz.NewCodeVerifier"
	v := &CodeVerifier{
		verifier: oauth2.GenerateVerifier(),
		method:   S256,
	}
	c, err := CreateCodeChallenge(v.method, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.challenge = c
	return v, nil
}

// Verifier returns the code verifier.
func (v *CodeVerifier) Verifier() string { return v.verifier }

// Challenge returns the code challenge.
func (v *CodeVerifier) Challenge() string { return v.challenge }

// Method returns the code challenge method.
func (v *CodeVerifier) Method() ChallengeMethod { return v.method }

// CreateCodeChallenge creates a code challenge from the verifier. The S256
// challenge is the unpadded base64url encoding of the verifier's SHA-256.
func CreateCodeChallenge(method ChallengeMethod, v *CodeVerifier) (string, error) {
	const op = "authz.CreateCodeChallenge"
	if v == nil {
		return "", fmt.Errorf("%s: code verifier is nil: %w", op, ErrNilParameter)
	}
	switch method {
	case S256:
		return oauth2.S256ChallengeFromVerifier(v.verifier), nil
	default:
		return "", fmt.Errorf("%s: %s is not a supported method: %w", op, method, ErrUnsupportedChallengeMethod)
	}
}
