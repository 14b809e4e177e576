// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package assertion

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// HSAlgorithm signs with a client secret, RSAlgorithm with an RSA key and
// ESAlgorithm with an ECDSA key. See RFC 7518 section 3.1.
type (
	HSAlgorithm string
	RSAlgorithm string
	ESAlgorithm string
)

const (
	HS256 HSAlgorithm = "HS256"
	HS384 HSAlgorithm = "HS384"
	HS512 HSAlgorithm = "HS512"

	RS256 RSAlgorithm = "RS256"
	RS384 RSAlgorithm = "RS384"
	RS512 RSAlgorithm = "RS512"

	ES256 ESAlgorithm = "ES256"
	ES384 ESAlgorithm = "ES384"
	ES512 ESAlgorithm = "ES512"
)

// hmacKeyLen is the shortest secret, in bytes, accepted for each algorithm:
// the size of its hash.
var hmacKeyLen = map[HSAlgorithm]int{
	HS256: 32,
	HS384: 48,
	HS512: 64,
}

// ecdsaCurves is the curve each algorithm requires.
var ecdsaCurves = map[ESAlgorithm]elliptic.Curve{
	ES256: elliptic.P256(),
	ES384: elliptic.P384(),
	ES512: elliptic.P521(),
}

func (a HSAlgorithm) signingKey(secret string) (jose.SigningKey, error) {
	want, ok := hmacKeyLen[a]
	switch {
	case !ok:
		return jose.SigningKey{}, fmt.Errorf("%w: %q can't be used with a client secret", ErrUnsupportedAlgorithm, a)
	case len(secret) < want:
		return jose.SigningKey{}, fmt.Errorf("%w: %s needs at least %d bytes, got %d", ErrInvalidSecretLength, a, want, len(secret))
	}
	return jose.SigningKey{Algorithm: jose.SignatureAlgorithm(a), Key: []byte(secret)}, nil
}

func (a RSAlgorithm) signingKey(key *rsa.PrivateKey) (jose.SigningKey, error) {
	if key == nil {
		return jose.SigningKey{}, ErrNilPrivateKey
	}
	switch a {
	case RS256, RS384, RS512:
	default:
		return jose.SigningKey{}, fmt.Errorf("%w: %q can't be used with an RSA key", ErrUnsupportedAlgorithm, a)
	}
	if err := key.Validate(); err != nil {
		return jose.SigningKey{}, fmt.Errorf("invalid RSA key: %w", err)
	}
	return jose.SigningKey{Algorithm: jose.SignatureAlgorithm(a), Key: key}, nil
}

func (a ESAlgorithm) signingKey(key *ecdsa.PrivateKey) (jose.SigningKey, error) {
	if key == nil {
		return jose.SigningKey{}, ErrNilPrivateKey
	}
	curve, ok := ecdsaCurves[a]
	switch {
	case !ok:
		return jose.SigningKey{}, fmt.Errorf("%w: %q can't be used with an ECDSA key", ErrUnsupportedAlgorithm, a)
	case key.Curve != curve:
		return jose.SigningKey{}, fmt.Errorf("%w: %s requires the %s curve", ErrUnsupportedAlgorithm, a, curve.Params().Name)
	}
	return jose.SigningKey{Algorithm: jose.SignatureAlgorithm(a), Key: key}, nil
}
