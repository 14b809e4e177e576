// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package assertion

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// Option configures a JWT.
type Option func(*jwtOptions) error

type jwtOptions struct {
	withKeys    []jose.SigningKey
	withHeaders map[jose.HeaderKey]interface{}
	withSubject string
	withClaims  map[string]interface{}
	withExpiry  time.Duration
}

func jwtDefaults() jwtOptions {
	return jwtOptions{
		withHeaders: map[jose.HeaderKey]interface{}{},
		withClaims:  map[string]interface{}{},
		withExpiry:  DefaultExpiry,
	}
}

// WithClientSecret signs with an HMAC of the client secret.
func WithClientSecret(secret string, alg HSAlgorithm) Option {
	const op = "WithClientSecret"
	return func(o *jwtOptions) error {
		k, err := alg.signingKey(secret)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		o.withKeys = append(o.withKeys, k)
		return nil
	}
}

// WithRSAKey signs with an RSA private key.
func WithRSAKey(key *rsa.PrivateKey, alg RSAlgorithm) Option {
	const op = "WithRSAKey"
	return func(o *jwtOptions) error {
		k, err := alg.signingKey(key)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		o.withKeys = append(o.withKeys, k)
		return nil
	}
}

// WithECDSAKey signs with an ECDSA private key on the algorithm's curve.
func WithECDSAKey(key *ecdsa.PrivateKey, alg ESAlgorithm) Option {
	const op = "WithECDSAKey"
	return func(o *jwtOptions) error {
		k, err := alg.signingKey(key)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		o.withKeys = append(o.withKeys, k)
		return nil
	}
}

// WithKeyID sets the "kid" header, which the authorization server uses to
// find the key that verifies the assertion.
func WithKeyID(keyID string) Option {
	return func(o *jwtOptions) error {
		o.withHeaders["kid"] = keyID
		return nil
	}
}

// WithHeaders sets extra protected headers.
func WithHeaders(h map[string]string) Option {
	return func(o *jwtOptions) error {
		for k, v := range h {
			o.withHeaders[jose.HeaderKey(k)] = v
		}
		return nil
	}
}

// WithSubject sets the "sub" claim: the resource owner of the jwt-bearer
// grant. It defaults to the issuer, which is what a client assertion
// requires.
func WithSubject(sub string) Option {
	return func(o *jwtOptions) error {
		o.withSubject = sub
		return nil
	}
}

// WithClaims adds private claims. The registered claims can't be replaced.
func WithClaims(claims map[string]interface{}) Option {
	return func(o *jwtOptions) error {
		for k, v := range claims {
			o.withClaims[k] = v
		}
		return nil
	}
}

// WithExpiry sets the lifetime of each assertion; DefaultExpiry otherwise.
func WithExpiry(d time.Duration) Option {
	const op = "WithExpiry"
	return func(o *jwtOptions) error {
		if d <= 0 {
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidExpiry, d)
		}
		o.withExpiry = d
		return nil
	}
}
