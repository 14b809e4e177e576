// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package assertion

import "errors"

var (
	ErrMissingIssuer        = errors.New("issuer is empty")
	ErrMissingAudience      = errors.New("audience is empty")
	ErrMissingKeyOrSecret   = errors.New("no signing key or client secret")
	ErrBothKeyAndSecret     = errors.New("only one signing key or client secret may be used")
	ErrInvalidExpiry        = errors.New("expiry must be positive")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidSecretLength  = errors.New("client secret is too short")
	ErrNilPrivateKey        = errors.New("private key is nil")

	// ErrNotInitialized is returned by a JWT which wasn't created with NewJWT.
	ErrNotInitialized = errors.New("signer is not initialized")
)
